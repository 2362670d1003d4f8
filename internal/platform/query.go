package platform

import (
	"context"
	"fmt"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// QueryExecutor joins a payment with its commercial context for dispatching.
type QueryExecutor struct {
	store PaymentStore
	carts CartStore
}

// NewQueryExecutor creates a new QueryExecutor.
func NewQueryExecutor(store PaymentStore, carts CartStore) *QueryExecutor {
	return &QueryExecutor{store: store, carts: carts}
}

// PaymentWithCart fetches the current payment version together with its
// cart-like context. ErrNoCartLike from the cart store propagates unchanged
// so the poller can treat it as an expected upstream propagation race.
func (q *QueryExecutor) PaymentWithCart(ctx context.Context, paymentID string) (*payment.PaymentWithCart, error) {
	p, err := q.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
	}
	cart, err := q.carts.CartForPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &payment.PaymentWithCart{Payment: p, Cart: cart}, nil
}
