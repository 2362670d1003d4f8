// Package tenant assembles the per-merchant processing context: store
// access, gateway credentials, the executor table, and the reconciler.
package tenant

import (
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jonnytest1/commercetools-payone-integration/internal/dispatcher"
	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/executor"
	"github.com/jonnytest1/commercetools-payone-integration/internal/gateway"
	"github.com/jonnytest1/commercetools-payone-integration/internal/infrastructure/config"
	"github.com/jonnytest1/commercetools-payone-integration/internal/notification"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/pkg/retry"
)

// Tenant is one merchant account served by this process.
type Tenant struct {
	Name       string
	Store      platform.PaymentStore
	Feed       platform.ChangeFeed
	Query      *platform.QueryExecutor
	Dispatcher *dispatcher.Dispatcher
	Reconciler *notification.Reconciler
}

// Stores groups the platform adapters a tenant operates on.
type Stores struct {
	Payments platform.PaymentStore
	Carts    platform.CartStore
	Feed     platform.ChangeFeed
}

// New builds a tenant from its configuration. The executor table is validated
// for completeness here: a missing (method, transaction type) mapping fails
// startup instead of surfacing per payment at runtime.
func New(
	cfg config.TenantConfig,
	stores Stores,
	typeCache *platform.TypeCache,
	post gateway.PostClient,
	logger zerolog.Logger,
) (*Tenant, error) {
	logger = logger.With().Str("tenant", cfg.Name).Logger()

	methods, err := parseMethods(cfg.Methods)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", cfg.Name, err)
	}

	creds := gateway.Credentials{
		MerchantID:   cfg.MerchantID,
		PortalID:     cfg.PortalID,
		SubAccountID: cfg.SubAccountID,
		Key:          cfg.Key,
		Mode:         cfg.Mode,
	}

	executors := make(map[dispatcher.Key]*executor.Executor)
	for _, method := range methods {
		builders := map[payment.TransactionType]executor.RequestBuilder{
			payment.TransactionAuthorization: executor.PreauthorizationBuilder{Credentials: creds},
			payment.TransactionCharge:        executor.AuthorizationBuilder{Credentials: creds},
			payment.TransactionRefund:        executor.RefundBuilder{Credentials: creds},
		}
		for txType, builder := range builders {
			executors[dispatcher.Key{Method: method, Type: txType}] =
				executor.New(stores.Payments, typeCache, post, builder, logger)
		}
	}

	d := dispatcher.New(executors, logger)
	if err := d.Validate(methods); err != nil {
		return nil, fmt.Errorf("tenant %s executor table: %w", cfg.Name, err)
	}

	lookup := retry.Config{
		MaxAttempts:  3,
		InitialDelay: retry.DefaultConfig().InitialDelay,
		MaxDelay:     retry.DefaultConfig().MaxDelay,
		RetryIf: func(err error) bool {
			return stderrors.Is(err, domainErrors.ErrPaymentNotFound)
		},
	}

	return &Tenant{
		Name:       cfg.Name,
		Store:      stores.Payments,
		Feed:       stores.Feed,
		Query:      platform.NewQueryExecutor(stores.Payments, stores.Carts),
		Dispatcher: d,
		Reconciler: notification.NewReconciler(stores.Payments, typeCache, lookup, logger),
	}, nil
}

func parseMethods(names []string) ([]payment.Method, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no payment methods configured: %w", domainErrors.ErrInvalidInput)
	}
	var methods []payment.Method
	for _, name := range names {
		method := payment.Method(name)
		known := false
		for _, m := range payment.KnownMethods {
			if m == method {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unsupported payment method %q: %w", name, domainErrors.ErrInvalidInput)
		}
		methods = append(methods, method)
	}
	return methods, nil
}
