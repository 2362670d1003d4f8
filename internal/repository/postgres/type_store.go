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

// TypeStore implements platform.TypeResolver over the interaction_types
// registry. The rows are seeded by the migration; the in-process TypeCache
// sits in front of this store.
type TypeStore struct {
	pool *pgxpool.Pool
}

// NewTypeStore creates a resolver over the registry table.
func NewTypeStore(pool *pgxpool.Pool) *TypeStore {
	return &TypeStore{pool: pool}
}

// TypeID implements platform.TypeResolver.
func (s *TypeStore) TypeID(ctx context.Context, kind payment.InteractionKind) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT type_id FROM interaction_types WHERE key = $1`, string(kind),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("interaction kind %s: %w", kind, domainErrors.ErrTypeNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve interaction kind %s: %w", kind, err)
	}
	return id, nil
}
