package resolver

import (
	"cmp"
	"context"
	"slices"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type update struct {
	pos      int
	attrs    domain.Attributes
	links    []domain.Link
	dangling []domain.DanglingLink
}

// Resolve fills every declared link from the index. An attribute backed by
// links becomes the sum of its resolved targets; a missing target is recorded
// as dangling and contributes zero. Types are resolved concurrently since a
// link never targets its own type.
func Resolve(ctx context.Context, ix *Index) ([]domain.Resource, []domain.DanglingLink, error) {
	positions := make(map[domain.ResourceType][]int)
	for pos, r := range ix.resources {
		if len(r.Links) > 0 {
			positions[r.Type] = append(positions[r.Type], pos)
		}
	}

	batches := make([][]update, 0, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	for _, list := range positions {
		out := make([]update, len(list))
		batches = append(batches, out)
		g.Go(func() error {
			for i, pos := range list {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = resolveOne(ix, pos)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	resources := ix.Resources()
	var dangling []domain.DanglingLink
	for _, updates := range batches {
		for _, u := range updates {
			resources[u.pos].Attributes = u.attrs
			resources[u.pos].Links = u.links
			dangling = append(dangling, u.dangling...)
		}
	}
	SortDangling(dangling)

	if len(dangling) > 0 {
		zerolog.Ctx(ctx).Debug().Int("dangling", len(dangling)).Msg("cross references left unresolved")
	}
	return resources, dangling, nil
}

func resolveOne(ix *Index, pos int) update {
	src := ix.resources[pos]
	u := update{
		pos:   pos,
		attrs: src.Attributes.Clone(),
		links: make([]domain.Link, len(src.Links)),
	}

	sums := make(map[string]decimal.Decimal)
	for i, link := range src.Links {
		if _, ok := sums[link.Attribute]; !ok {
			sums[link.Attribute] = decimal.Zero
		}
		target, ok := ix.Lookup(link.TargetType, link.TargetID)
		if !ok {
			link.Status = domain.LinkDangling
			u.dangling = append(u.dangling, domain.DanglingLink{
				SourceType: src.Type,
				SourceID:   src.ID,
				Attribute:  link.Attribute,
				TargetType: link.TargetType,
				TargetID:   link.TargetID,
			})
		} else {
			link.Status = domain.LinkResolved
			sums[link.Attribute] = sums[link.Attribute].Add(target.Attributes.Decimal(link.TargetAttribute))
		}
		u.links[i] = link
	}
	for attr, v := range sums {
		u.attrs[attr] = v
	}
	return u
}

func SortDangling(links []domain.DanglingLink) {
	slices.SortFunc(links, func(a, b domain.DanglingLink) int {
		return cmp.Or(
			cmp.Compare(a.SourceType, b.SourceType),
			cmp.Compare(a.SourceID, b.SourceID),
			cmp.Compare(a.Attribute, b.Attribute),
			cmp.Compare(a.TargetType, b.TargetType),
			cmp.Compare(a.TargetID, b.TargetID),
		)
	})
}
