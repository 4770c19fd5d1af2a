package providers

import (
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// Quota bounds the request rate and the number of in-flight calls. Clients
// sharing a Quota share both budgets.
type Quota struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

func NewQuota(limits domain.Limits) *Quota {
	limits = limits.WithDefaults()
	return &Quota{
		limiter: rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.Burst),
		sem:     semaphore.NewWeighted(int64(limits.MaxConcurrency)),
	}
}

// Quotas keeps one Quota per provider kind. The limits of the first
// connection seen for a kind apply to every later connection of that kind.
type Quotas struct {
	mu     sync.Mutex
	byKind map[domain.ProviderKind]*Quota
}

func NewQuotas() *Quotas {
	return &Quotas{byKind: make(map[domain.ProviderKind]*Quota)}
}

func (q *Quotas) For(kind domain.ProviderKind, limits domain.Limits) *Quota {
	q.mu.Lock()
	defer q.mu.Unlock()

	if quota, ok := q.byKind[kind]; ok {
		return quota
	}
	quota := NewQuota(limits)
	q.byKind[kind] = quota
	return quota
}
