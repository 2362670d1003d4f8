// Package dispatcher routes a payment's pending transactions to the executor
// registered for the (payment method, transaction type) pair.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/executor"
)

// Key selects an executor. The table is static per tenant, populated at
// startup; an unmapped combination is a configuration error, not a runtime
// retry case.
type Key struct {
	Method payment.Method
	Type   payment.TransactionType
}

// Dispatcher holds one tenant's executor table.
type Dispatcher struct {
	executors map[Key]*executor.Executor
	logger    zerolog.Logger
}

// New creates a dispatcher over the given executor table.
func New(executors map[Key]*executor.Executor, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		executors: executors,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Validate checks that every transaction type is mapped for each of the given
// payment methods. Called at startup; a gap is fatal then rather than a
// per-payment runtime condition.
func (d *Dispatcher) Validate(methods []payment.Method) error {
	types := []payment.TransactionType{
		payment.TransactionAuthorization,
		payment.TransactionCharge,
		payment.TransactionRefund,
	}
	var errs []error
	for _, m := range methods {
		for _, t := range types {
			if _, ok := d.executors[Key{Method: m, Type: t}]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s/%s", domainErrors.ErrNoExecutor, m, t))
			}
		}
	}
	return errors.Join(errs...)
}

// Dispatch routes each still-eligible transaction of the payment to its
// executor. Executors are skipped when the idempotency gate says the action
// already happened. An error from one transaction never prevents attempting
// the next, but every error is reported to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, pwc *payment.PaymentWithCart) error {
	logger := d.logger.With().Str("payment_id", pwc.Payment.ID).Logger()

	var errs []error
	for _, tx := range pwc.Payment.PendingTransactions() {
		exec, ok := d.executors[Key{Method: pwc.Payment.Method, Type: tx.Type}]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s/%s", domainErrors.ErrNoExecutor, pwc.Payment.Method, tx.Type))
			continue
		}

		// Re-resolve against the freshest payment we hold; a previous
		// iteration may have replaced it.
		current, err := pwc.Payment.Transaction(tx.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if exec.WasExecuted(pwc, current) {
			logger.Debug().
				Str("transaction_id", current.ID).
				Msg("transaction already submitted, skipping")
			continue
		}

		updated, err := exec.Execute(ctx, pwc, current)
		if err != nil {
			errs = append(errs, fmt.Errorf("transaction %s: %w", current.ID, err))
			continue
		}
		pwc = updated
	}

	return errors.Join(errs...)
}
