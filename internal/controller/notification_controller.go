package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/infrastructure/observability"
	"github.com/jonnytest1/commercetools-payone-integration/internal/notification"
	"github.com/jonnytest1/commercetools-payone-integration/internal/tenant"
	"github.com/rs/zerolog"
)

// NotificationController receives PAYONE transaction status notifications.
// The gateway redelivers a notification until it is answered with the body
// "TSOK", so every failure to persist one must map to a non-2xx status.
type NotificationController struct {
	tenants map[string]*tenant.Tenant
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewNotificationController(tenants map[string]*tenant.Tenant, metrics *observability.Metrics, logger zerolog.Logger) *NotificationController {
	return &NotificationController{
		tenants: tenants,
		metrics: metrics,
		logger:  logger.With().Str("component", "notification_controller").Logger(),
	}
}

func (c *NotificationController) Receive(w http.ResponseWriter, r *http.Request) {
	tenantName := chi.URLParam(r, "tenant")
	t, ok := c.tenants[tenantName]
	if !ok {
		c.metrics.NotificationsTotal.WithLabelValues("unknown", "unknown_tenant").Inc()
		writeError(w, domainErrors.ErrNoTenant)
		return
	}

	if err := r.ParseForm(); err != nil {
		c.metrics.NotificationsTotal.WithLabelValues("unknown", "bad_form").Inc()
		writeError(w, domainErrors.NewValidationError("body", "invalid form encoding: "+err.Error()))
		return
	}

	n, err := notification.ParseForm(r.PostForm)
	if err != nil {
		c.metrics.NotificationsTotal.WithLabelValues("unknown", "invalid").Inc()
		writeError(w, domainErrors.NewValidationError("notification", err.Error()))
		return
	}

	if err := t.Reconciler.Reconcile(r.Context(), n); err != nil {
		result := "error"
		if errors.Is(err, domainErrors.ErrConcurrentModification) {
			result = "conflict"
		}
		c.metrics.NotificationsTotal.WithLabelValues(string(n.TxAction), result).Inc()
		c.logger.Error().Err(err).
			Str("tenant", tenantName).
			Str("txid", n.TxID).
			Str("txaction", string(n.TxAction)).
			Msg("notification processing failed")
		writeError(w, err)
		return
	}

	c.metrics.NotificationsTotal.WithLabelValues(string(n.TxAction), "ok").Inc()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("TSOK"))
}
