package notification

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/pkg/retry"
)

// Reconciler maps inbound gateway notifications onto the affected payment and
// transaction, guarding against duplicate and out-of-order delivery.
type Reconciler struct {
	store     platform.PaymentStore
	typeCache *platform.TypeCache
	lookup    retry.Config
	logger    zerolog.Logger
}

// NewReconciler creates a reconciler. The lookup retry config bounds how long
// a notification waits for upstream payment propagation before the delivery
// is failed (and redelivered by the gateway later).
func NewReconciler(store platform.PaymentStore, typeCache *platform.TypeCache, lookup retry.Config, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		typeCache: typeCache,
		lookup:    lookup,
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// Reconcile correlates the notification to a payment via the gateway txid and
// to a transaction via the sequence number, appends the NOTIFICATION
// interaction for audit completeness, and advances the transaction state when
// the delivery is not a duplicate. Redelivery of an already-recorded sequence
// number appends the audit record but performs no state transition.
func (r *Reconciler) Reconcile(ctx context.Context, n *Notification) error {
	logger := r.logger.With().
		Str("txid", n.TxID).
		Str("txaction", string(n.TxAction)).
		Str("sequencenumber", n.SequenceNumber).
		Logger()

	target, err := n.TargetState()
	if err != nil {
		return err
	}

	// The payment may not have propagated yet when the gateway notifies
	// quickly after submission; retry the lookup briefly before giving up.
	p, err := retry.DoWithResult(ctx, r.lookup, func() (*payment.Payment, error) {
		return r.store.GetPaymentByInterfaceID(ctx, n.TxID)
	})
	if err != nil {
		return fmt.Errorf("correlate notification txid %s: %w", n.TxID, err)
	}

	tx, err := p.TransactionByInteractionID(n.SequenceNumber)
	if stderrors.Is(err, domainErrors.ErrTransactionNotFound) && len(p.Transactions) == 1 {
		// Sequence numbers can outrun the recorded interaction id when the
		// gateway collapses steps; with a single transaction the correlation
		// is still unambiguous.
		tx = &p.Transactions[0]
		err = nil
	}
	if err != nil {
		return fmt.Errorf("correlate notification sequence %s on payment %s: %w", n.SequenceNumber, p.ID, err)
	}

	duplicate := p.HasNotificationWithSequence(n.SequenceNumber, string(n.TxAction))

	typeID, err := r.typeCache.TypeID(ctx, payment.InteractionNotification)
	if err != nil {
		return err
	}

	// Audit append happens unconditionally, and before any state decision is
	// visible: the ledger is the idempotency source of truth.
	actions := []platform.UpdateAction{
		platform.AddInterfaceInteraction{Interaction: payment.Interaction{
			ID:             uuid.New().String(),
			Kind:           payment.InteractionNotification,
			TypeID:         typeID,
			TransactionID:  tx.ID,
			Timestamp:      time.Now(),
			Notification:   n.RawJSON(),
			SequenceNumber: n.SequenceNumber,
			TxAction:       string(n.TxAction),
		}},
	}

	switch {
	case duplicate:
		logger.Info().Str("payment_id", p.ID).Msg("duplicate notification, recording without state transition")
	case tx.State == target:
		// Idempotent redelivery through a different path; nothing to change.
	case tx.State.IsTerminal():
		logger.Warn().
			Str("payment_id", p.ID).
			Str("state", string(tx.State)).
			Str("target", string(target)).
			Msg("notification for terminal transaction, recording without state transition")
	default:
		actions = append(actions, platform.ChangeTransactionState{TransactionID: tx.ID, State: target})
	}

	if _, err := r.store.UpdatePayment(ctx, p.ID, p.Version, actions); err != nil {
		// A version conflict means a concurrent dispatch or notification won;
		// the gateway redelivers and the next attempt sees the fresh version.
		return fmt.Errorf("apply notification to payment %s: %w", p.ID, err)
	}

	logger.Info().Str("payment_id", p.ID).Str("transaction_id", tx.ID).Msg("notification reconciled")
	return nil
}
