package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// CartStore implements platform.CartStore on PostgreSQL. The cart rows are
// written by the order platform; a payment without a cart row is an expected
// propagation race, reported as ErrNoCartLike.
type CartStore struct {
	pool   *pgxpool.Pool
	tenant string
}

// NewCartStore creates a store scoped to one tenant.
func NewCartStore(pool *pgxpool.Pool, tenant string) *CartStore {
	return &CartStore{pool: pool, tenant: tenant}
}

// CartForPayment implements platform.CartStore.
func (s *CartStore) CartForPayment(ctx context.Context, paymentID string) (*payment.CartLike, error) {
	var cart payment.CartLike
	err := ConnFromCtx(ctx, s.pool).QueryRow(ctx,
		`SELECT id, reference, country, total_cents, currency
		 FROM carts WHERE tenant = $1 AND payment_id = $2`,
		s.tenant, paymentID,
	).Scan(&cart.ID, &cart.Reference, &cart.Country, &cart.Total.ValueCents, &cart.Total.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", paymentID, domainErrors.ErrNoCartLike)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart for payment %s: %w", paymentID, err)
	}
	return &cart, nil
}
