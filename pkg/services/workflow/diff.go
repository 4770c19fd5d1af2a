package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/services/resolver"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

// Diff compares next against prev by (type, id). Azure ids are compared
// case-insensitively. A zero prev makes every resource in next an addition.
func Diff(prev, next domain.Snapshot) domain.Delta {
	delta := domain.Delta{PreviousRunID: prev.RunID}

	key := func(r domain.Resource) domain.ResourceKey {
		return domain.ResourceKey{Type: r.Type, ID: resolver.CanonicalID(r.Provider, r.ID)}
	}

	before := make(map[domain.ResourceKey]domain.Resource, len(prev.Resources))
	for _, r := range prev.Resources {
		before[key(r)] = r
	}
	after := make(map[domain.ResourceKey]struct{}, len(next.Resources))

	for _, r := range next.Resources {
		k := key(r)
		after[k] = struct{}{}
		old, ok := before[k]
		if !ok {
			delta.Added = append(delta.Added, r.Ref())
			continue
		}
		if !old.Cost.Total.Equal(r.Cost.Total) {
			delta.CostChanged = append(delta.CostChanged, domain.CostChange{
				ResourceRef: r.Ref(),
				Previous:    old.Cost.Total,
				Current:     r.Cost.Total,
			})
		}
	}
	for _, r := range prev.Resources {
		if _, ok := after[key(r)]; !ok {
			delta.Removed = append(delta.Removed, r.Ref())
		}
	}
	return delta
}

// LatestDiff diffs the newest snapshot of a connection against the one
// before it.
func LatestDiff(ctx context.Context, store snapshot.Store, connectionID string) (domain.Delta, error) {
	headers, err := store.List(ctx, connectionID)
	if err != nil {
		return domain.Delta{}, err
	}
	if len(headers) == 0 {
		return domain.Delta{}, fmt.Errorf("%w: connection %s has no snapshots", snapshot.ErrNotFound, connectionID)
	}

	next, err := store.Get(ctx, headers[0].RunID)
	if err != nil {
		return domain.Delta{}, err
	}
	if len(headers) == 1 {
		return Diff(domain.Snapshot{}, next), nil
	}

	prev, err := store.Get(ctx, headers[1].RunID)
	if err != nil && !errors.Is(err, snapshot.ErrNotFound) {
		return domain.Delta{}, err
	}
	return Diff(prev, next), nil
}
