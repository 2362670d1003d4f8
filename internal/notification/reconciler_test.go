package notification_test

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/notification"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/internal/testutil"
	"github.com/jonnytest1/commercetools-payone-integration/pkg/retry"
)

func lookupConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		RetryIf: func(err error) bool {
			return stderrors.Is(err, domainErrors.ErrPaymentNotFound)
		},
	}
}

func newReconcilerFixture(t *testing.T) (*notification.Reconciler, *testutil.MockPaymentStore, *payment.Payment) {
	t.Helper()

	store := testutil.NewMockPaymentStore()
	cache := platform.NewTypeCache(testutil.StaticTypeResolver{})
	require.NoError(t, cache.Warm(context.Background()))

	p := testutil.NewTestPayment(payment.MethodCreditCard, payment.TransactionAuthorization, 4999, "EUR")
	p.InterfaceID = "txid-1"
	p.Transactions[0].State = payment.StatePending
	p.Transactions[0].InteractionID = "1"
	store.Put(p)

	return notification.NewReconciler(store, cache, lookupConfig(), zerolog.Nop()), store, p
}

func appointed(seq string) *notification.Notification {
	return &notification.Notification{
		TxAction:          notification.ActionAppointed,
		TransactionStatus: notification.StatusCompleted,
		TxID:              "txid-1",
		SequenceNumber:    seq,
	}
}

func TestReconcile_AdvancesTransaction(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	require.NoError(t, r.Reconcile(context.Background(), appointed("1")))

	stored, _ := store.GetPayment(context.Background(), p.ID)
	assert.Equal(t, payment.StateSuccess, stored.Transactions[0].State)

	notifications := stored.InteractionsOfKind(payment.InteractionNotification)
	require.Len(t, notifications, 1)
	assert.Equal(t, "1", notifications[0].SequenceNumber)
	assert.Equal(t, "appointed", notifications[0].TxAction)
}

func TestReconcile_DuplicateAppendsWithoutStateChange(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	require.NoError(t, r.Reconcile(context.Background(), appointed("1")))
	require.NoError(t, r.Reconcile(context.Background(), appointed("1")))

	stored, _ := store.GetPayment(context.Background(), p.ID)
	assert.Equal(t, payment.StateSuccess, stored.Transactions[0].State)
	assert.Len(t, stored.InteractionsOfKind(payment.InteractionNotification), 2,
		"every delivery lands on the audit trail")
}

func TestReconcile_SameSequenceDifferentActionIsNotADuplicate(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	appointedPending := appointed("1")
	appointedPending.TransactionStatus = ""
	require.NoError(t, r.Reconcile(context.Background(), appointedPending))

	paid := &notification.Notification{
		TxAction:       notification.ActionPaid,
		TxID:           "txid-1",
		SequenceNumber: "1",
	}
	require.NoError(t, r.Reconcile(context.Background(), paid))

	stored, _ := store.GetPayment(context.Background(), p.ID)
	assert.Equal(t, payment.StateSuccess, stored.Transactions[0].State)
}

func TestReconcile_TerminalTransactionIsNotRegressed(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	require.NoError(t, r.Reconcile(context.Background(), appointed("1")))

	failed := &notification.Notification{
		TxAction:       notification.ActionFailed,
		TxID:           "txid-1",
		SequenceNumber: "1",
	}
	require.NoError(t, r.Reconcile(context.Background(), failed))

	stored, _ := store.GetPayment(context.Background(), p.ID)
	assert.Equal(t, payment.StateSuccess, stored.Transactions[0].State,
		"out-of-order failure after success must not regress the state")
}

func TestReconcile_UnknownActionRejected(t *testing.T) {
	r, _, _ := newReconcilerFixture(t)

	err := r.Reconcile(context.Background(), &notification.Notification{
		TxAction:       "vsettlement",
		TxID:           "txid-1",
		SequenceNumber: "1",
	})
	assert.Error(t, err)
}

func TestReconcile_RetriesPaymentLookup(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	var calls atomic.Int32
	store.GetPaymentByInterfaceIDFunc = func(ctx context.Context, interfaceID string) (*payment.Payment, error) {
		if calls.Add(1) < 3 {
			return nil, domainErrors.ErrPaymentNotFound
		}
		store.GetPaymentByInterfaceIDFunc = nil
		return store.GetPaymentByInterfaceID(ctx, interfaceID)
	}

	require.NoError(t, r.Reconcile(context.Background(), appointed("1")))
	assert.Equal(t, int32(3), calls.Load())

	stored, _ := store.GetPayment(context.Background(), p.ID)
	assert.Equal(t, payment.StateSuccess, stored.Transactions[0].State)
}

func TestReconcile_LookupExhaustionFails(t *testing.T) {
	r, store, _ := newReconcilerFixture(t)

	store.GetPaymentByInterfaceIDFunc = func(ctx context.Context, interfaceID string) (*payment.Payment, error) {
		return nil, domainErrors.ErrPaymentNotFound
	}

	err := r.Reconcile(context.Background(), appointed("1"))
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestReconcile_SingleTransactionFallback(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	// The gateway reports sequence 0 for an appointed that precedes the first
	// recorded request; with exactly one transaction the target is unambiguous.
	require.NoError(t, r.Reconcile(context.Background(), appointed("0")))

	stored, _ := store.GetPayment(context.Background(), p.ID)
	assert.Equal(t, payment.StateSuccess, stored.Transactions[0].State)
}

func TestReconcile_UnmatchedSequenceWithMultipleTransactions(t *testing.T) {
	r, store, p := newReconcilerFixture(t)

	fresh, _ := store.GetPayment(context.Background(), p.ID)
	fresh.Transactions = append(fresh.Transactions, payment.Transaction{
		ID:    "tx-2",
		Type:  payment.TransactionCharge,
		State: payment.StateInitial,
	})
	store.Put(fresh)

	err := r.Reconcile(context.Background(), appointed("9"))
	assert.ErrorIs(t, err, domainErrors.ErrTransactionNotFound)
}
