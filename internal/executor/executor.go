// Package executor performs idempotent, audited gateway calls for a single
// payment transaction and reconciles the outcome onto the payment record.
package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/gateway"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
)

// RequestBuilder is the per-transaction-type strategy: it knows how to turn a
// payment plus its cart context into a concrete gateway request. The
// surrounding orchestration (idempotency gate, sequencing, reconciliation) is
// shared and lives in Executor.
type RequestBuilder interface {
	// Name identifies the strategy in logs (preauthorization, authorization, refund).
	Name() string
	// BuildRequest assembles the outgoing gateway request.
	BuildRequest(pwc *payment.PaymentWithCart, tx *payment.Transaction) (gateway.Request, error)
}

// Executor runs one transaction against the gateway. It is stateless and safe
// for concurrent use; all shared state lives in the platform store, guarded
// by optimistic concurrency.
type Executor struct {
	store     platform.PaymentStore
	typeCache *platform.TypeCache
	post      gateway.PostClient
	builder   RequestBuilder
	logger    zerolog.Logger
}

// New creates an executor around the given request-building strategy.
func New(
	store platform.PaymentStore,
	typeCache *platform.TypeCache,
	post gateway.PostClient,
	builder RequestBuilder,
	logger zerolog.Logger,
) *Executor {
	return &Executor{
		store:     store,
		typeCache: typeCache,
		post:      post,
		builder:   builder,
		logger:    logger.With().Str("executor", builder.Name()).Logger(),
	}
}

// WasExecuted is the single idempotency gate of the system. It returns true
// if any REQUEST, RESPONSE or REDIRECT interaction on the payment references
// the transaction's id, or if a NOTIFICATION interaction carries the same
// sequence number as the transaction's interaction id (submit-then-notify
// flow). It must be consulted immediately before issuing any gateway call.
func (e *Executor) WasExecuted(pwc *payment.PaymentWithCart, tx *payment.Transaction) bool {
	p := pwc.Payment
	if p.HasInteractionForTransaction(tx.ID,
		payment.InteractionRequest,
		payment.InteractionResponse,
		payment.InteractionRedirect) {
		return true
	}
	return tx.InteractionID != "" && p.HasNotificationWithSequence(tx.InteractionID, "")
}

// Execute performs the audited gateway call for the transaction:
//
//  1. compute the next sequence number and build the request,
//  2. durably record the REQUEST interaction and the transaction's
//     interaction id in one versioned update — a conflict here means another
//     process got there first and this attempt must be abandoned,
//  3. issue the gateway call without holding any lock,
//  4. record the terminal outcome (RESPONSE or REDIRECT) and the new
//     transaction state against the version from step 2.
//
// A *gateway.Error is reconciled as a FAILURE outcome, not returned; the
// audit trail carries the failure detail. An unknown gateway status is
// returned as *gateway.UnknownStatusError and performs no state change.
func (e *Executor) Execute(ctx context.Context, pwc *payment.PaymentWithCart, tx *payment.Transaction) (*payment.PaymentWithCart, error) {
	p := pwc.Payment
	logger := e.logger.With().
		Str("payment_id", p.ID).
		Str("transaction_id", tx.ID).
		Logger()

	sequenceNumber := p.NextSequenceNumber()

	req, err := e.builder.BuildRequest(pwc, tx)
	if err != nil {
		return nil, fmt.Errorf("build %s request for payment %s: %w", e.builder.Name(), p.ID, err)
	}

	requestTypeID, err := e.typeCache.TypeID(ctx, payment.InteractionRequest)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.UpdatePayment(ctx, p.ID, p.Version, []platform.UpdateAction{
		platform.AddInterfaceInteraction{Interaction: payment.Interaction{
			ID:             uuid.New().String(),
			Kind:           payment.InteractionRequest,
			TypeID:         requestTypeID,
			TransactionID:  tx.ID,
			Timestamp:      time.Now(),
			Request:        req.AuditString(),
			SequenceNumber: sequenceNumber,
		}},
		platform.ChangeTransactionInteractionID{TransactionID: tx.ID, InteractionID: sequenceNumber},
	})
	if err != nil {
		if stderrors.Is(err, domainErrors.ErrConcurrentModification) {
			// Another poller or notification won the race. Abandoning here is
			// what prevents double submission; the next sweep re-evaluates.
			logger.Info().Msg("payment advanced concurrently before request append, abandoning attempt")
		}
		return nil, fmt.Errorf("record request interaction: %w", err)
	}

	response, err := e.post.ExecutePost(ctx, req)
	if err != nil {
		var gwErr *gateway.Error
		if stderrors.As(err, &gwErr) {
			logger.Error().Err(gwErr).Msg("gateway request failed, recording transaction failure")
			return e.recordFailure(ctx, pwc, updated, tx.ID, gwErr)
		}
		return nil, err
	}

	return e.reconcile(ctx, logger, pwc, updated, tx.ID, response)
}

// reconcile maps the gateway response status onto the transaction state and
// appends the terminal interaction, conditioned on the version produced by
// the request append.
func (e *Executor) reconcile(
	ctx context.Context,
	logger zerolog.Logger,
	pwc *payment.PaymentWithCart,
	current *payment.Payment,
	transactionID string,
	response map[string]string,
) (*payment.PaymentWithCart, error) {
	status := response[gateway.FieldStatus]

	switch gateway.Status(status) {
	case gateway.StatusRedirect:
		redirectTypeID, err := e.typeCache.TypeID(ctx, payment.InteractionRedirect)
		if err != nil {
			return nil, err
		}
		actions := []platform.UpdateAction{
			platform.AddInterfaceInteraction{Interaction: payment.Interaction{
				ID:            uuid.New().String(),
				Kind:          payment.InteractionRedirect,
				TypeID:        redirectTypeID,
				TransactionID: transactionID,
				Timestamp:     time.Now(),
				Response:      gateway.ResponseToJSON(response),
				RedirectURL:   response[gateway.FieldRedirectURL],
			}},
			platform.ChangeTransactionState{TransactionID: transactionID, State: payment.StatePending},
		}
		actions = append(actions, statusInterfaceActions(response)...)
		logger.Info().Str("redirect_url", response[gateway.FieldRedirectURL]).Msg("gateway requested redirect")
		return e.update(ctx, pwc, current, actions)

	case gateway.StatusApproved:
		return e.terminalResponse(ctx, pwc, current, transactionID, response, payment.StateSuccess)

	case gateway.StatusPending:
		// Final confirmation arrives via notification.
		return e.terminalResponse(ctx, pwc, current, transactionID, response, payment.StatePending)

	case gateway.StatusError:
		return e.terminalResponse(ctx, pwc, current, transactionID, response, payment.StateFailure)

	default:
		// The gateway contract cannot be interpreted; surfacing this loudly
		// beats silently guessing a state for real money.
		return nil, &gateway.UnknownStatusError{Status: status}
	}
}

func (e *Executor) terminalResponse(
	ctx context.Context,
	pwc *payment.PaymentWithCart,
	current *payment.Payment,
	transactionID string,
	response map[string]string,
	state payment.TransactionState,
) (*payment.PaymentWithCart, error) {
	responseTypeID, err := e.typeCache.TypeID(ctx, payment.InteractionResponse)
	if err != nil {
		return nil, err
	}
	actions := []platform.UpdateAction{
		platform.AddInterfaceInteraction{Interaction: payment.Interaction{
			ID:            uuid.New().String(),
			Kind:          payment.InteractionResponse,
			TypeID:        responseTypeID,
			TransactionID: transactionID,
			Timestamp:     time.Now(),
			Response:      gateway.ResponseToJSON(response),
		}},
		platform.ChangeTransactionState{TransactionID: transactionID, State: state},
	}
	actions = append(actions, statusInterfaceActions(response)...)
	return e.update(ctx, pwc, current, actions)
}

func (e *Executor) recordFailure(
	ctx context.Context,
	pwc *payment.PaymentWithCart,
	current *payment.Payment,
	transactionID string,
	gwErr *gateway.Error,
) (*payment.PaymentWithCart, error) {
	responseTypeID, err := e.typeCache.TypeID(ctx, payment.InteractionResponse)
	if err != nil {
		return nil, err
	}
	return e.update(ctx, pwc, current, []platform.UpdateAction{
		platform.AddInterfaceInteraction{Interaction: payment.Interaction{
			ID:            uuid.New().String(),
			Kind:          payment.InteractionResponse,
			TypeID:        responseTypeID,
			TransactionID: transactionID,
			Timestamp:     time.Now(),
			Response:      gateway.ErrorToJSON(gwErr),
		}},
		platform.ChangeTransactionState{TransactionID: transactionID, State: payment.StateFailure},
	})
}

func (e *Executor) update(
	ctx context.Context,
	pwc *payment.PaymentWithCart,
	current *payment.Payment,
	actions []platform.UpdateAction,
) (*payment.PaymentWithCart, error) {
	updated, err := e.store.UpdatePayment(ctx, current.ID, current.Version, actions)
	if err != nil {
		return nil, fmt.Errorf("record gateway outcome: %w", err)
	}
	return pwc.WithPayment(updated), nil
}

// statusInterfaceActions mirrors the gateway's status fields on the payment.
func statusInterfaceActions(response map[string]string) []platform.UpdateAction {
	var actions []platform.UpdateAction
	if code, ok := response[gateway.FieldErrorCode]; ok && code != "" {
		actions = append(actions, platform.SetStatusInterfaceCode{Code: code})
	} else if status, ok := response[gateway.FieldStatus]; ok {
		actions = append(actions, platform.SetStatusInterfaceCode{Code: status})
	}
	if text, ok := response[gateway.FieldErrorMessage]; ok && text != "" {
		actions = append(actions, platform.SetStatusInterfaceText{Text: text})
	}
	return actions
}
