package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonnytest1/commercetools-payone-integration/internal/domain/payment"
)

// TypeCache memoizes interaction-kind to schema-id lookups for the lifetime
// of the process. It is constructed explicitly at startup and passed to every
// component that appends interactions; there is no global instance.
type TypeCache struct {
	resolver TypeResolver

	mu  sync.RWMutex
	ids map[payment.InteractionKind]string
}

// NewTypeCache creates a cache over the given resolver.
func NewTypeCache(resolver TypeResolver) *TypeCache {
	return &TypeCache{
		resolver: resolver,
		ids:      make(map[payment.InteractionKind]string),
	}
}

// TypeID returns the schema id for the kind, loading and caching it on first
// use. Failed lookups are not cached.
func (c *TypeCache) TypeID(ctx context.Context, kind payment.InteractionKind) (string, error) {
	c.mu.RLock()
	id, ok := c.ids[kind]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := c.resolver.TypeID(ctx, kind)
	if err != nil {
		return "", fmt.Errorf("resolve interaction type %q: %w", kind, err)
	}

	c.mu.Lock()
	c.ids[kind] = id
	c.mu.Unlock()
	return id, nil
}

// Warm resolves every interaction kind the service appends, so a missing
// type definition fails startup instead of the first dispatch.
func (c *TypeCache) Warm(ctx context.Context) error {
	for _, kind := range payment.InteractionKinds {
		if _, err := c.TypeID(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}
