package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// NewTestPayment builds a payment with a single transaction in the initial
// state, the shape the change-feed poller picks up.
func NewTestPayment(method payment.Method, txType payment.TransactionType, amountCents int64, currency string) *payment.Payment {
	now := time.Now()
	return &payment.Payment{
		ID:            uuid.New().String(),
		Version:       1,
		Method:        method,
		Reference:     "order-" + uuid.New().String()[:8],
		AmountPlanned: payment.Amount{ValueCents: amountCents, Currency: currency},
		Transactions: []payment.Transaction{
			{
				ID:        uuid.New().String(),
				Type:      txType,
				State:     payment.StateInitial,
				Amount:    payment.Amount{ValueCents: amountCents, Currency: currency},
				Timestamp: now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestCart builds the cart the payment belongs to.
func NewTestCart(totalCents int64, currency string) *payment.CartLike {
	return &payment.CartLike{
		ID:        uuid.New().String(),
		Reference: "order-" + uuid.New().String()[:8],
		Country:   "DE",
		Total:     payment.Amount{ValueCents: totalCents, Currency: currency},
	}
}

// ClonePayment deep-copies a payment so stored state and caller state never
// alias each other's slices.
func ClonePayment(p *payment.Payment) *payment.Payment {
	clone := *p
	clone.Transactions = make([]payment.Transaction, len(p.Transactions))
	copy(clone.Transactions, p.Transactions)
	clone.Interactions = make([]payment.Interaction, len(p.Interactions))
	copy(clone.Interactions, p.Interactions)
	return &clone
}
