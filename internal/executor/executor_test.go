package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/executor"
	"github.com/jonnytest1/commercetools-payone-integration/internal/gateway"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/internal/testutil"
)

func testCreds() gateway.Credentials {
	return gateway.Credentials{MerchantID: "m", PortalID: "p", SubAccountID: "a", Key: "k", Mode: "test"}
}

func newExecutorFixture(t *testing.T, builder executor.RequestBuilder, post *testutil.MockPostClient) (*executor.Executor, *testutil.MockPaymentStore, *payment.PaymentWithCart) {
	t.Helper()

	store := testutil.NewMockPaymentStore()
	cache := platform.NewTypeCache(testutil.StaticTypeResolver{})
	require.NoError(t, cache.Warm(context.Background()))

	p := testutil.NewTestPayment(payment.MethodCreditCard, payment.TransactionAuthorization, 4999, "EUR")
	store.Put(p)

	pwc := &payment.PaymentWithCart{Payment: p, Cart: testutil.NewTestCart(4999, "EUR")}
	return executor.New(store, cache, post, builder, zerolog.Nop()), store, pwc
}

func TestWasExecuted(t *testing.T) {
	post := &testutil.MockPostClient{}
	exec, _, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)
	tx := &pwc.Payment.Transactions[0]

	assert.False(t, exec.WasExecuted(pwc, tx))

	pwc.Payment.Interactions = []payment.Interaction{
		{Kind: payment.InteractionRequest, TransactionID: tx.ID},
	}
	assert.True(t, exec.WasExecuted(pwc, tx))
}

func TestWasExecuted_ByNotificationSequence(t *testing.T) {
	post := &testutil.MockPostClient{}
	exec, _, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)
	tx := &pwc.Payment.Transactions[0]
	tx.InteractionID = "1"

	pwc.Payment.Interactions = []payment.Interaction{
		{Kind: payment.InteractionNotification, SequenceNumber: "1", TxAction: "appointed"},
	}
	assert.True(t, exec.WasExecuted(pwc, tx))

	// A notification for a different sequence does not count.
	tx.InteractionID = "2"
	assert.False(t, exec.WasExecuted(pwc, tx))
}

func TestExecute_Approved(t *testing.T) {
	post := &testutil.MockPostClient{
		Responses: []map[string]string{{
			gateway.FieldStatus: string(gateway.StatusApproved),
			gateway.FieldTxID:   "txid-1",
		}},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)
	tx := &pwc.Payment.Transactions[0]

	updated, err := exec.Execute(context.Background(), pwc, tx)
	require.NoError(t, err)

	p, err := store.GetPayment(context.Background(), pwc.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StateSuccess, p.Transactions[0].State)
	assert.Equal(t, "1", p.Transactions[0].InteractionID)
	assert.Equal(t, int64(3), p.Version, "request append plus outcome update")

	requests := p.InteractionsOfKind(payment.InteractionRequest)
	require.Len(t, requests, 1)
	assert.Equal(t, "1", requests[0].SequenceNumber)
	assert.Contains(t, requests[0].Request, "key=****", "portal key must be masked in the ledger")

	responses := p.InteractionsOfKind(payment.InteractionResponse)
	require.Len(t, responses, 1)
	var recorded map[string]string
	require.NoError(t, json.Unmarshal([]byte(responses[0].Response), &recorded))
	assert.Equal(t, "APPROVED", recorded[gateway.FieldStatus])

	assert.Equal(t, "APPROVED", updated.Payment.StatusCode)
	assert.Equal(t, 1, post.CallCount())
}

func TestExecute_Redirect(t *testing.T) {
	post := &testutil.MockPostClient{
		Responses: []map[string]string{{
			gateway.FieldStatus:      string(gateway.StatusRedirect),
			gateway.FieldRedirectURL: "https://gateway.test/3ds",
		}},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)
	tx := &pwc.Payment.Transactions[0]

	_, err := exec.Execute(context.Background(), pwc, tx)
	require.NoError(t, err)

	p, err := store.GetPayment(context.Background(), pwc.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatePending, p.Transactions[0].State)

	redirects := p.InteractionsOfKind(payment.InteractionRedirect)
	require.Len(t, redirects, 1)
	assert.Equal(t, "https://gateway.test/3ds", redirects[0].RedirectURL)
}

func TestExecute_Pending(t *testing.T) {
	post := &testutil.MockPostClient{
		Responses: []map[string]string{{gateway.FieldStatus: string(gateway.StatusPending)}},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)

	_, err := exec.Execute(context.Background(), pwc, &pwc.Payment.Transactions[0])
	require.NoError(t, err)

	p, _ := store.GetPayment(context.Background(), pwc.Payment.ID)
	assert.Equal(t, payment.StatePending, p.Transactions[0].State)
}

func TestExecute_BusinessError(t *testing.T) {
	post := &testutil.MockPostClient{
		Responses: []map[string]string{{
			gateway.FieldStatus:       string(gateway.StatusError),
			gateway.FieldErrorCode:    "917",
			gateway.FieldErrorMessage: "Refund limit exceeded",
		}},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)

	_, err := exec.Execute(context.Background(), pwc, &pwc.Payment.Transactions[0])
	require.NoError(t, err)

	p, _ := store.GetPayment(context.Background(), pwc.Payment.ID)
	assert.Equal(t, payment.StateFailure, p.Transactions[0].State)
	assert.Equal(t, "917", p.StatusCode)
	assert.Equal(t, "Refund limit exceeded", p.StatusText)
}

func TestExecute_TransportFailureRecordedAsFailure(t *testing.T) {
	post := &testutil.MockPostClient{
		Errs: []error{&gateway.Error{Op: "preauthorization", Err: errors.New("connection refused")}},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)

	_, err := exec.Execute(context.Background(), pwc, &pwc.Payment.Transactions[0])
	require.NoError(t, err, "a gateway failure is an outcome, not an error")

	p, _ := store.GetPayment(context.Background(), pwc.Payment.ID)
	assert.Equal(t, payment.StateFailure, p.Transactions[0].State)

	responses := p.InteractionsOfKind(payment.InteractionResponse)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Response, "connection refused")
}

func TestExecute_UnknownStatusIsFatal(t *testing.T) {
	post := &testutil.MockPostClient{
		Responses: []map[string]string{{gateway.FieldStatus: "WEIRD"}},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)

	_, err := exec.Execute(context.Background(), pwc, &pwc.Payment.Transactions[0])

	var unknownErr *gateway.UnknownStatusError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "WEIRD", unknownErr.Status)

	// The request stays on the ledger, but the transaction state is untouched.
	p, _ := store.GetPayment(context.Background(), pwc.Payment.ID)
	assert.Equal(t, payment.StateInitial, p.Transactions[0].State)
	assert.Len(t, p.InteractionsOfKind(payment.InteractionResponse), 0)
}

func TestExecute_ConcurrentModificationAbandonsBeforeGatewayCall(t *testing.T) {
	post := &testutil.MockPostClient{}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)

	// Another process advanced the payment after our read.
	_, err := store.UpdatePayment(context.Background(), pwc.Payment.ID, pwc.Payment.Version,
		[]platform.UpdateAction{platform.SetStatusInterfaceCode{Code: "X"}})
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), pwc, &pwc.Payment.Transactions[0])
	assert.ErrorIs(t, err, domainErrors.ErrConcurrentModification)
	assert.Equal(t, 0, post.CallCount(), "no gateway call without a durable request record")
}

func TestExecute_SequenceNumbersIncrease(t *testing.T) {
	post := &testutil.MockPostClient{
		Responses: []map[string]string{
			{gateway.FieldStatus: string(gateway.StatusPending)},
			{gateway.FieldStatus: string(gateway.StatusApproved)},
		},
	}
	exec, store, pwc := newExecutorFixture(t, executor.PreauthorizationBuilder{Credentials: testCreds()}, post)

	updated, err := exec.Execute(context.Background(), pwc, &pwc.Payment.Transactions[0])
	require.NoError(t, err)

	// A second transaction on the same payment gets the next sequence number.
	second := payment.Transaction{ID: "tx-second", Type: payment.TransactionCharge, State: payment.StateInitial}
	updated.Payment.Transactions = append(updated.Payment.Transactions, second)
	store.Put(updated.Payment)

	_, err = exec.Execute(context.Background(), updated, &updated.Payment.Transactions[1])
	require.NoError(t, err)

	p, _ := store.GetPayment(context.Background(), pwc.Payment.ID)
	requests := p.InteractionsOfKind(payment.InteractionRequest)
	require.Len(t, requests, 2)
	assert.Equal(t, "1", requests[0].SequenceNumber)
	assert.Equal(t, "2", requests[1].SequenceNumber)
}

func TestRefundBuilder(t *testing.T) {
	p := testutil.NewTestPayment(payment.MethodCreditCard, payment.TransactionRefund, 4999, "EUR")
	p.InterfaceID = "txid-original"
	p.Interactions = []payment.Interaction{{Kind: payment.InteractionRequest, SequenceNumber: "1"}}
	pwc := &payment.PaymentWithCart{Payment: p, Cart: testutil.NewTestCart(4999, "EUR")}

	req, err := executor.RefundBuilder{Credentials: testCreds()}.BuildRequest(pwc, &p.Transactions[0])
	require.NoError(t, err)
	assert.Equal(t, gateway.RequestRefund, req.RequestType)
	assert.Equal(t, "txid-original", req.TxID)
	assert.Equal(t, "2", req.SequenceNumber)
	assert.Equal(t, int64(-4999), req.AmountCents)
}

func TestRefundBuilder_RequiresInterfaceID(t *testing.T) {
	p := testutil.NewTestPayment(payment.MethodCreditCard, payment.TransactionRefund, 4999, "EUR")
	pwc := &payment.PaymentWithCart{Payment: p, Cart: testutil.NewTestCart(4999, "EUR")}

	_, err := executor.RefundBuilder{Credentials: testCreds()}.BuildRequest(pwc, &p.Transactions[0])
	assert.Error(t, err)
}

func TestBuilders_MethodParams(t *testing.T) {
	cases := []struct {
		method   payment.Method
		clearing string
		param    string
		value    string
	}{
		{payment.MethodCreditCard, gateway.ClearingCreditCard, "", ""},
		{payment.MethodPaypal, gateway.ClearingWallet, "wallettype", "PPE"},
		{payment.MethodSofort, gateway.ClearingBankTransfer, "onlinebanktransfertype", "PNT"},
	}

	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			p := testutil.NewTestPayment(tc.method, payment.TransactionAuthorization, 1000, "EUR")
			pwc := &payment.PaymentWithCart{Payment: p, Cart: testutil.NewTestCart(1000, "EUR")}

			req, err := executor.AuthorizationBuilder{Credentials: testCreds()}.BuildRequest(pwc, &p.Transactions[0])
			require.NoError(t, err)
			assert.Equal(t, tc.clearing, req.ClearingType)
			if tc.param != "" {
				assert.Equal(t, tc.value, req.Params[tc.param])
			}
		})
	}
}

func TestBuilders_UnknownMethod(t *testing.T) {
	p := testutil.NewTestPayment(payment.Method("GIROPAY"), payment.TransactionAuthorization, 1000, "EUR")
	pwc := &payment.PaymentWithCart{Payment: p, Cart: testutil.NewTestCart(1000, "EUR")}

	_, err := executor.PreauthorizationBuilder{Credentials: testCreds()}.BuildRequest(pwc, &p.Transactions[0])
	assert.ErrorIs(t, err, domainErrors.ErrNoExecutor)
}
