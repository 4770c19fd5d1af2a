package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

const dailyPlaces = 6

var ErrUnsupported = errors.New("no billing source for provider")

// Source reads what a provider actually charged over a period.
type Source interface {
	Name() string
	// Actual returns the bill normalized to a per-day amount.
	Actual(ctx context.Context, period domain.TimePeriod) (domain.ActualBill, error)
}

type Factory func(ctx context.Context, conn domain.Connection) (Source, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[domain.ProviderKind]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.ProviderKind]Factory)}
}

func (r *Registry) Register(kind domain.ProviderKind, factory Factory) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown provider kind %q", kind)
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("billing source for %q is already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

func (r *Registry) Create(ctx context.Context, conn domain.Connection) (Source, error) {
	r.mu.RLock()
	factory, exists := r.factories[conn.Provider]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, conn.Provider)
	}
	return factory(ctx, conn)
}

// Fetch creates the source for conn, reads the bill and releases the source.
func (r *Registry) Fetch(ctx context.Context, conn domain.Connection, period domain.TimePeriod) (domain.ActualBill, error) {
	src, err := r.Create(ctx, conn)
	if err != nil {
		return domain.ActualBill{}, err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	bill, err := src.Actual(ctx, period)
	if err != nil {
		return domain.ActualBill{}, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return bill, nil
}

// Daily divides period totals by the number of days in the period so they
// compare with a snapshot's daily estimate.
func Daily(
	source string,
	period domain.TimePeriod,
	currency string,
	total decimal.Decimal,
	byType map[domain.ResourceType]decimal.Decimal,
) domain.ActualBill {
	days := decimal.NewFromInt(int64(period.Days()))

	bill := domain.ActualBill{
		Amount:   total.DivRound(days, dailyPlaces),
		Period:   period,
		Currency: currency,
		Source:   source,
	}
	if len(byType) > 0 {
		bill.ByType = make(map[domain.ResourceType]decimal.Decimal, len(byType))
		for t, v := range byType {
			bill.ByType[t] = v.DivRound(days, dailyPlaces)
		}
	}
	return bill
}
