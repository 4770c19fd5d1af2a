package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// Registry manages adapter factories keyed by provider kind.
type Registry interface {
	Register(kind domain.ProviderKind, factory Factory) error
	Create(ctx context.Context, conn domain.Connection) (Adapter, error)
	Kinds() []domain.ProviderKind
}

type registry struct {
	mu        sync.RWMutex
	factories map[domain.ProviderKind]Factory
}

func NewRegistry() Registry {
	return &registry{
		factories: make(map[domain.ProviderKind]Factory),
	}
}

func (r *registry) Register(kind domain.ProviderKind, factory Factory) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown provider kind %q", kind)
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("provider %q is already registered", kind)
	}

	r.factories[kind] = factory
	return nil
}

func (r *registry) Create(ctx context.Context, conn domain.Connection) (Adapter, error) {
	r.mu.RLock()
	factory, exists := r.factories[conn.Provider]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider %q is not registered", conn.Provider)
	}

	return factory(ctx, conn)
}

func (r *registry) Kinds() []domain.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.ProviderKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
