package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
)

// ChangeFeed implements platform.ChangeFeed over the payment_events table the
// order platform appends to on every payment write.
type ChangeFeed struct {
	pool   *pgxpool.Pool
	tenant string
}

// NewChangeFeed creates a feed scoped to one tenant.
func NewChangeFeed(pool *pgxpool.Pool, tenant string) *ChangeFeed {
	return &ChangeFeed{pool: pool, tenant: tenant}
}

// PaymentCreated implements platform.ChangeFeed.
func (f *ChangeFeed) PaymentCreated(ctx context.Context, since time.Time) ([]platform.ChangeEvent, error) {
	return f.query(ctx, platform.EventPaymentCreated, since)
}

// TransactionAdded implements platform.ChangeFeed.
func (f *ChangeFeed) TransactionAdded(ctx context.Context, since time.Time) ([]platform.ChangeEvent, error) {
	return f.query(ctx, platform.EventTransactionAdded, since)
}

func (f *ChangeFeed) query(ctx context.Context, eventType string, since time.Time) ([]platform.ChangeEvent, error) {
	rows, err := ConnFromCtx(ctx, f.pool).Query(ctx,
		`SELECT payment_id, event_type, occurred_at
		 FROM payment_events
		 WHERE tenant = $1 AND event_type = $2 AND occurred_at >= $3
		 ORDER BY occurred_at`,
		f.tenant, eventType, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s events: %w", eventType, err)
	}
	defer rows.Close()

	var events []platform.ChangeEvent
	for rows.Next() {
		var ev platform.ChangeEvent
		if err := rows.Scan(&ev.PaymentID, &ev.Type, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan %s event: %w", eventType, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
