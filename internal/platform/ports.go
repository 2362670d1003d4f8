// Package platform defines the ports to the order-management platform store.
// The core depends only on these capabilities: read-by-id, optimistic
// update-by-version, cart lookup, the change-event feed, and the interaction
// type registry. Concrete adapters live in internal/repository.
package platform

import (
	"context"
	"time"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// PaymentStore provides versioned access to payment aggregates.
type PaymentStore interface {
	// GetPayment returns the current version of a payment, or ErrPaymentNotFound.
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)

	// GetPaymentByInterfaceID returns the payment whose gateway interface id
	// (PAYONE txid) matches, or ErrPaymentNotFound.
	GetPaymentByInterfaceID(ctx context.Context, interfaceID string) (*payment.Payment, error)

	// UpdatePayment applies the action batch against the given version and
	// returns the new payment. A version mismatch, meaning another process
	// advanced the payment since it was read, yields ErrConcurrentModification
	// and no mutation.
	UpdatePayment(ctx context.Context, id string, version int64, actions []UpdateAction) (*payment.Payment, error)
}

// CartStore resolves the commercial context linked to a payment.
type CartStore interface {
	// CartForPayment returns the cart or order the payment belongs to, or
	// ErrNoCartLike when upstream propagation has not caught up yet.
	CartForPayment(ctx context.Context, paymentID string) (*payment.CartLike, error)
}

// ChangeEvent is one entry of the platform's change-event feed.
type ChangeEvent struct {
	PaymentID  string
	Type       string
	OccurredAt time.Time
}

// Feed event types.
const (
	EventPaymentCreated   = "PaymentCreated"
	EventTransactionAdded = "PaymentTransactionAdded"
)

// ChangeFeed queries the platform's change-event feed with a "since" lower
// bound. Results are ordered by occurrence time.
type ChangeFeed interface {
	PaymentCreated(ctx context.Context, since time.Time) ([]ChangeEvent, error)
	TransactionAdded(ctx context.Context, since time.Time) ([]ChangeEvent, error)
}

// TypeResolver resolves a logical interaction kind to the store-specific
// schema id used when appending interface interactions. A missing kind is
// ErrTypeNotFound.
type TypeResolver interface {
	TypeID(ctx context.Context, kind payment.InteractionKind) (string, error)
}
