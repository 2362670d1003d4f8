// Package poller periodically sweeps the platform's change-event feed and
// feeds discovered payments into each tenant's dispatcher.
package poller

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/infrastructure/observability"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/internal/tenant"
)

// WatermarkStore persists the monotonically non-decreasing "since" instant
// per tenant so restarts and overlapping processes do not replay or skip feed
// windows.
type WatermarkStore interface {
	// Since returns the stored watermark, or fallback when none is stored.
	Since(ctx context.Context, tenantName string, fallback time.Time) (time.Time, error)
	// Advance moves the watermark forward; it never moves it back.
	Advance(ctx context.Context, tenantName string, to time.Time) error
}

// SweepLocker serializes sweeps for one tenant across process instances.
type SweepLocker interface {
	// TryLock attempts to acquire the tenant sweep lock without blocking.
	// When acquired, release must be called to free it.
	TryLock(ctx context.Context, tenantName string) (release func(), acquired bool, err error)
}

// Poller runs the scheduled sweep. Overlapping ticks for the same tenant are
// skipped, not serialized: in-process via singleflight, across processes via
// the sweep lock.
type Poller struct {
	tenants    []*tenant.Tenant
	interval   time.Duration
	lookback   time.Duration
	watermarks WatermarkStore
	locker     SweepLocker
	metrics    *observability.Metrics
	logger     zerolog.Logger

	sf singleflight.Group
}

// New creates a poller over the configured tenants.
func New(
	tenants []*tenant.Tenant,
	interval, lookback time.Duration,
	watermarks WatermarkStore,
	locker SweepLocker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Poller {
	return &Poller{
		tenants:    tenants,
		interval:   interval,
		lookback:   lookback,
		watermarks: watermarks,
		locker:     locker,
		metrics:    metrics,
		logger:     logger.With().Str("component", "poller").Logger(),
	}
}

// Run sweeps immediately and then on every tick until the context ends.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep starts one sweep per tenant. A tenant whose previous sweep is still
// running is skipped this round: the singleflight join deduplicates the call
// and nobody waits on the shared result.
func (p *Poller) Sweep(ctx context.Context) {
	for _, t := range p.tenants {
		t := t
		ch := p.sf.DoChan(t.Name, func() (any, error) {
			p.sweepTenant(ctx, t)
			return nil, nil
		})
		// Drain asynchronously so a slow tenant does not block the others.
		go func() { <-ch }()
	}
}

// sweepTenant queries both feed event types since the watermark and
// dispatches every distinct payment, isolating failures per payment. The
// reliability contract is best-effort sweep, self-healing on the next tick.
func (p *Poller) sweepTenant(ctx context.Context, t *tenant.Tenant) {
	logger := p.logger.With().Str("tenant", t.Name).Logger()

	release, acquired, err := p.locker.TryLock(ctx, t.Name)
	if err != nil {
		logger.Error().Err(err).Msg("sweep lock unavailable")
		p.metrics.PollerSweeps.WithLabelValues(t.Name, "lock_error").Inc()
		return
	}
	if !acquired {
		logger.Debug().Msg("sweep already running elsewhere, skipping")
		p.metrics.PollerSweeps.WithLabelValues(t.Name, "skipped").Inc()
		return
	}
	defer release()

	start := time.Now()
	since, err := p.watermarks.Since(ctx, t.Name, start.Add(-p.lookback))
	if err != nil {
		logger.Error().Err(err).Msg("watermark unavailable, using lookback window")
		since = start.Add(-p.lookback)
	}

	created, err := t.Feed.PaymentCreated(ctx, since)
	if err != nil {
		logger.Error().Err(err).Msg("query payment-created events")
		p.metrics.PollerSweeps.WithLabelValues(t.Name, "feed_error").Inc()
		return
	}
	added, err := t.Feed.TransactionAdded(ctx, since)
	if err != nil {
		logger.Error().Err(err).Msg("query transaction-added events")
		p.metrics.PollerSweeps.WithLabelValues(t.Name, "feed_error").Inc()
		return
	}

	// Payments that fail for a recoverable reason (cart not propagated yet,
	// concurrent modification) must be re-seen on the next sweep. The
	// watermark therefore only advances past an event once its payment has
	// been dispatched: on a recoverable failure it is held at the oldest
	// affected event. A payment that never recovers ages out once the
	// lookback fallback in Since overtakes its event.
	advanceTo := start
	held := false
	for _, ev := range distinctPaymentEvents(created, added) {
		if retry := p.dispatchOne(ctx, logger, t, ev.PaymentID); retry && !held {
			advanceTo, held = ev.OccurredAt, true
		}
	}

	if err := p.watermarks.Advance(ctx, t.Name, advanceTo); err != nil {
		logger.Warn().Err(err).Msg("advance watermark")
	}

	p.metrics.PollerSweeps.WithLabelValues(t.Name, "ok").Inc()
	p.metrics.PollerSweepDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
}

// dispatchOne delivers a single payment to the tenant's dispatcher with the
// error triage of the reliability contract: expected races are logged quietly
// and skipped, anything else is logged loudly and still skipped. It reports
// whether the payment must be retried on a later sweep.
func (p *Poller) dispatchOne(ctx context.Context, logger zerolog.Logger, t *tenant.Tenant, paymentID string) bool {
	pwc, err := t.Query.PaymentWithCart(ctx, paymentID)
	if err == nil {
		err = t.Dispatcher.Dispatch(ctx, pwc)
	}

	switch {
	case err == nil:
		p.metrics.PaymentsDispatched.WithLabelValues(t.Name, "ok").Inc()
	case stderrors.Is(err, domainErrors.ErrNoCartLike):
		// Upstream write propagation has not caught up yet; the next sweep
		// will see the cart.
		logger.Debug().Str("payment_id", paymentID).Err(err).Msg("payment has no cart yet, skipping")
		p.metrics.PaymentsDispatched.WithLabelValues(t.Name, "no_cart").Inc()
		return true
	case stderrors.Is(err, domainErrors.ErrConcurrentModification):
		logger.Info().Str("payment_id", paymentID).Msg("payment is being processed by someone else, skipping")
		p.metrics.PaymentsDispatched.WithLabelValues(t.Name, "conflict").Inc()
		return true
	default:
		logger.Error().Str("payment_id", paymentID).Err(err).Msg("dispatch payment")
		p.metrics.PaymentsDispatched.WithLabelValues(t.Name, "error").Inc()
	}
	return false
}

// distinctPaymentEvents merges both event streams into one time-ordered list,
// de-duplicated by payment id keeping the earliest event, so a payment created
// and extended within one window is dispatched once.
func distinctPaymentEvents(eventLists ...[]platform.ChangeEvent) []platform.ChangeEvent {
	var all []platform.ChangeEvent
	for _, events := range eventLists {
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OccurredAt.Before(all[j].OccurredAt)
	})

	seen := make(map[string]struct{}, len(all))
	var distinct []platform.ChangeEvent
	for _, ev := range all {
		if _, ok := seen[ev.PaymentID]; ok {
			continue
		}
		seen[ev.PaymentID] = struct{}{}
		distinct = append(distinct, ev)
	}
	return distinct
}
