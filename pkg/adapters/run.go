package adapters

import (
	"fmt"

	"github.com/de-tools/inventory-atlas/pkg/models/api"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/models/store"
)

func mapRefsDomainToStore(refs []domain.ResourceRef) []store.ResourceRef {
	out := make([]store.ResourceRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, store.ResourceRef{Type: string(r.Type), ID: r.ID, Name: r.Name})
	}
	return out
}

func mapRefsStoreToDomain(refs []store.ResourceRef) []domain.ResourceRef {
	var out []domain.ResourceRef
	for _, r := range refs {
		out = append(out, domain.ResourceRef{Type: domain.ResourceType(r.Type), ID: r.ID, Name: r.Name})
	}
	return out
}

func mapRefsDomainToApi(refs []domain.ResourceRef) []api.ResourceRef {
	out := make([]api.ResourceRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, api.ResourceRef{Type: string(r.Type), ID: r.ID, Name: r.Name})
	}
	return out
}

func MapDeltaDomainToStore(d *domain.Delta) *store.Delta {
	if d == nil {
		return nil
	}
	res := &store.Delta{
		PreviousRunID: d.PreviousRunID,
		Added:         mapRefsDomainToStore(d.Added),
		Removed:       mapRefsDomainToStore(d.Removed),
		CostChanged:   make([]store.CostChange, 0, len(d.CostChanged)),
	}
	for _, c := range d.CostChanged {
		res.CostChanged = append(res.CostChanged, store.CostChange{
			ResourceRef: store.ResourceRef{Type: string(c.Type), ID: c.ID, Name: c.Name},
			Previous:    money(c.Previous),
			Current:     money(c.Current),
		})
	}
	return res
}

func MapStoreDeltaToDomain(d *store.Delta) (*domain.Delta, error) {
	if d == nil {
		return nil, nil
	}
	res := &domain.Delta{
		PreviousRunID: d.PreviousRunID,
		Added:         mapRefsStoreToDomain(d.Added),
		Removed:       mapRefsStoreToDomain(d.Removed),
	}
	for _, c := range d.CostChanged {
		prev, err := parseMoney(c.Previous)
		if err != nil {
			return nil, fmt.Errorf("cost change %s/%s: %w", c.Type, c.ID, err)
		}
		cur, err := parseMoney(c.Current)
		if err != nil {
			return nil, fmt.Errorf("cost change %s/%s: %w", c.Type, c.ID, err)
		}
		res.CostChanged = append(res.CostChanged, domain.CostChange{
			ResourceRef: domain.ResourceRef{Type: domain.ResourceType(c.Type), ID: c.ID, Name: c.Name},
			Previous:    prev,
			Current:     cur,
		})
	}
	return res, nil
}

func MapDeltaDomainToApi(d domain.Delta) api.Delta {
	res := api.Delta{
		PreviousRunID: d.PreviousRunID,
		Added:         mapRefsDomainToApi(d.Added),
		Removed:       mapRefsDomainToApi(d.Removed),
		CostChanged:   make([]api.CostChange, 0, len(d.CostChanged)),
	}
	for _, c := range d.CostChanged {
		res.CostChanged = append(res.CostChanged, api.CostChange{
			ResourceRef: api.ResourceRef{Type: string(c.Type), ID: c.ID, Name: c.Name},
			Previous:    money(c.Previous),
			Current:     money(c.Current),
		})
	}
	return res
}

func MapRunDomainToStore(r domain.Run) store.Run {
	res := store.Run{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		Status:       string(r.Status),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Error:        r.Error,
		Delta:        MapDeltaDomainToStore(r.Delta),
	}
	if r.ErrorCode != "" {
		code := r.ErrorCode
		res.ErrorCode = &code
	}
	return res
}

func MapStoreRunToDomain(r store.Run) (domain.Run, error) {
	delta, err := MapStoreDeltaToDomain(r.Delta)
	if err != nil {
		return domain.Run{}, fmt.Errorf("run %s: %w", r.ID, err)
	}
	res := domain.Run{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		Status:       domain.RunStatus(r.Status),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Error:        r.Error,
		Delta:        delta,
	}
	if r.ErrorCode != nil {
		res.ErrorCode = *r.ErrorCode
	}
	return res, nil
}

func MapRunDomainToApi(r domain.Run) api.Run {
	res := api.Run{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		Status:       string(r.Status),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		ErrorCode:    r.ErrorCode,
		Error:        r.Error,
	}
	if r.Delta != nil {
		d := MapDeltaDomainToApi(*r.Delta)
		res.Delta = &d
	}
	return res
}
