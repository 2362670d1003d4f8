package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/jonnytest1/commercetools-payone-integration/internal/domain/errors"
	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
	"github.com/jonnytest1/commercetools-payone-integration/internal/gateway"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
)

// --- Payment Store Mock ---

// MockPaymentStore is an in-memory platform.PaymentStore with real versioned
// update semantics, so optimistic-concurrency paths behave as in production.
type MockPaymentStore struct {
	mu       sync.Mutex
	payments map[string]*payment.Payment

	GetPaymentFunc              func(ctx context.Context, id string) (*payment.Payment, error)
	GetPaymentByInterfaceIDFunc func(ctx context.Context, interfaceID string) (*payment.Payment, error)
	UpdatePaymentFunc           func(ctx context.Context, id string, version int64, actions []platform.UpdateAction) (*payment.Payment, error)
}

func NewMockPaymentStore() *MockPaymentStore {
	return &MockPaymentStore{payments: make(map[string]*payment.Payment)}
}

// Put seeds a payment. The stored copy is independent of the argument.
func (m *MockPaymentStore) Put(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = ClonePayment(p)
}

func (m *MockPaymentStore) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return ClonePayment(p), nil
}

func (m *MockPaymentStore) GetPaymentByInterfaceID(ctx context.Context, interfaceID string) (*payment.Payment, error) {
	if m.GetPaymentByInterfaceIDFunc != nil {
		return m.GetPaymentByInterfaceIDFunc(ctx, interfaceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.InterfaceID == interfaceID && interfaceID != "" {
			return ClonePayment(p), nil
		}
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (m *MockPaymentStore) UpdatePayment(ctx context.Context, id string, version int64, actions []platform.UpdateAction) (*payment.Payment, error) {
	if m.UpdatePaymentFunc != nil {
		return m.UpdatePaymentFunc(ctx, id, version, actions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	if p.Version != version {
		return nil, domainErrors.ErrConcurrentModification
	}
	updated := ClonePayment(p)
	if err := platform.ApplyAll(updated, actions); err != nil {
		return nil, err
	}
	m.payments[id] = updated
	return ClonePayment(updated), nil
}

// --- Cart Store Mock ---

type MockCartStore struct {
	mu    sync.Mutex
	carts map[string]*payment.CartLike

	CartForPaymentFunc func(ctx context.Context, paymentID string) (*payment.CartLike, error)
}

func NewMockCartStore() *MockCartStore {
	return &MockCartStore{carts: make(map[string]*payment.CartLike)}
}

func (m *MockCartStore) Put(paymentID string, cart *payment.CartLike) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[paymentID] = cart
}

func (m *MockCartStore) CartForPayment(ctx context.Context, paymentID string) (*payment.CartLike, error) {
	if m.CartForPaymentFunc != nil {
		return m.CartForPaymentFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[paymentID]
	if !ok {
		return nil, domainErrors.ErrNoCartLike
	}
	return cart, nil
}

// --- Change Feed Mock ---

type MockChangeFeed struct {
	Created []platform.ChangeEvent
	Added   []platform.ChangeEvent

	PaymentCreatedFunc   func(ctx context.Context, since time.Time) ([]platform.ChangeEvent, error)
	TransactionAddedFunc func(ctx context.Context, since time.Time) ([]platform.ChangeEvent, error)
}

func (m *MockChangeFeed) PaymentCreated(ctx context.Context, since time.Time) ([]platform.ChangeEvent, error) {
	if m.PaymentCreatedFunc != nil {
		return m.PaymentCreatedFunc(ctx, since)
	}
	return filterSince(m.Created, since), nil
}

func (m *MockChangeFeed) TransactionAdded(ctx context.Context, since time.Time) ([]platform.ChangeEvent, error) {
	if m.TransactionAddedFunc != nil {
		return m.TransactionAddedFunc(ctx, since)
	}
	return filterSince(m.Added, since), nil
}

func filterSince(events []platform.ChangeEvent, since time.Time) []platform.ChangeEvent {
	var out []platform.ChangeEvent
	for _, e := range events {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// --- Gateway Post Client Mock ---

// MockPostClient replays scripted responses in order and records requests.
type MockPostClient struct {
	mu        sync.Mutex
	Responses []map[string]string
	Errs      []error
	Requests  []gateway.Request

	ExecutePostFunc func(ctx context.Context, req gateway.Request) (map[string]string, error)
}

func (m *MockPostClient) ExecutePost(ctx context.Context, req gateway.Request) (map[string]string, error) {
	if m.ExecutePostFunc != nil {
		return m.ExecutePostFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	i := len(m.Requests) - 1
	var err error
	if i < len(m.Errs) {
		err = m.Errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(m.Responses) {
		return m.Responses[i], nil
	}
	return map[string]string{gateway.FieldStatus: string(gateway.StatusApproved)}, nil
}

func (m *MockPostClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// --- Type Resolver ---

// StaticTypeResolver maps every interaction kind to a fixed id, the way the
// platform's custom-type registry would after provisioning.
type StaticTypeResolver struct{}

func (StaticTypeResolver) TypeID(ctx context.Context, kind payment.InteractionKind) (string, error) {
	return "type-" + string(kind), nil
}
