package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
)

// PaymentStore implements platform.PaymentStore on PostgreSQL. Payments are
// stored as versioned document rows scoped by tenant; updates are conditioned
// on the version column so concurrent writers surface as
// ErrConcurrentModification instead of lost updates.
type PaymentStore struct {
	pool   *pgxpool.Pool
	txm    *TxManager
	tenant string
}

// NewPaymentStore creates a store scoped to one tenant.
func NewPaymentStore(pool *pgxpool.Pool, tenant string) *PaymentStore {
	return &PaymentStore{pool: pool, txm: NewTxManager(pool), tenant: tenant}
}

func (s *PaymentStore) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, s.pool)
}

const paymentColumns = `id, version, method, interface_id, reference,
	amount_cents, currency, status_code, status_text,
	transactions, interactions, created_at, updated_at`

// GetPayment implements platform.PaymentStore.
func (s *PaymentStore) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.scanPayment(s.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE tenant = $1 AND id = $2`,
		s.tenant, id))
}

// GetPaymentByInterfaceID implements platform.PaymentStore.
func (s *PaymentStore) GetPaymentByInterfaceID(ctx context.Context, interfaceID string) (*payment.Payment, error) {
	return s.scanPayment(s.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE tenant = $1 AND interface_id = $2`,
		s.tenant, interfaceID))
}

// UpdatePayment applies the action batch against the expected version. The
// read-apply-write runs in one database transaction; the conditional UPDATE
// on the version column is the optimistic-concurrency gate.
func (s *PaymentStore) UpdatePayment(ctx context.Context, id string, version int64, actions []platform.UpdateAction) (*payment.Payment, error) {
	var updated *payment.Payment

	err := s.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.GetPayment(txCtx, id)
		if err != nil {
			return err
		}
		if p.Version != version {
			return fmt.Errorf("payment %s at version %d, expected %d: %w",
				id, p.Version, version, domainErrors.ErrConcurrentModification)
		}

		if err := platform.ApplyAll(p, actions); err != nil {
			return err
		}

		transactions, err := json.Marshal(p.Transactions)
		if err != nil {
			return fmt.Errorf("marshal transactions: %w", err)
		}
		interactions, err := json.Marshal(p.Interactions)
		if err != nil {
			return fmt.Errorf("marshal interactions: %w", err)
		}

		tag, err := s.db(txCtx).Exec(txCtx,
			`UPDATE payments SET
			   version=$1, interface_id=$2, status_code=$3, status_text=$4,
			   transactions=$5, interactions=$6, updated_at=$7
			 WHERE tenant=$8 AND id=$9 AND version=$10`,
			p.Version, p.InterfaceID, p.StatusCode, p.StatusText,
			transactions, interactions, p.UpdatedAt,
			s.tenant, id, version,
		)
		if err != nil {
			return fmt.Errorf("update payment %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("payment %s: %w", id, domainErrors.ErrConcurrentModification)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PaymentStore) scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p            payment.Payment
		transactions []byte
		interactions []byte
	)
	err := row.Scan(
		&p.ID, &p.Version, &p.Method, &p.InterfaceID, &p.Reference,
		&p.AmountPlanned.ValueCents, &p.AmountPlanned.Currency,
		&p.StatusCode, &p.StatusText,
		&transactions, &interactions, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if err := json.Unmarshal(transactions, &p.Transactions); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}
	if err := json.Unmarshal(interactions, &p.Interactions); err != nil {
		return nil, fmt.Errorf("unmarshal interactions: %w", err)
	}
	return &p, nil
}
