package cashier

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
)

// VendorFactory opens a session with a billing backend.
type VendorFactory func(ctx context.Context, log *zap.Logger) (iap.Vendor, error)

// Registry maps vendor IDs to the factories that open them.
type Registry struct {
	mu        sync.RWMutex
	factories map[iap.VendorID]VendorFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[iap.VendorID]VendorFactory{}}
}

// Register installs factory for id, replacing any previous one.
func (r *Registry) Register(id iap.VendorID, factory VendorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[id] = factory
}

func (r *Registry) Lookup(id iap.VendorID) (VendorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[id]
	return factory, ok
}

// Vendors returns the registered IDs in sorted order.
func (r *Registry) Vendors() []iap.VendorID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]iap.VendorID, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
