package adapters

import (
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/api"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/models/store"
)

func MapCostDomainToStore(c domain.CostLineItem) store.CostLineItem {
	res := store.CostLineItem{
		Components:  make([]store.CostComponent, 0, len(c.Components)),
		Surcharges:  money(c.Surcharges),
		Total:       money(c.Total),
		Currency:    c.Currency,
		RuleMissing: c.RuleMissing,
	}
	for _, comp := range c.Components {
		res.Components = append(res.Components, store.CostComponent{
			Unit:     string(comp.Unit),
			Quantity: money(comp.Quantity),
			Rate:     money(comp.Rate),
			Subtotal: money(comp.Subtotal),
		})
	}
	return res
}

func MapStoreCostToDomain(c store.CostLineItem) (domain.CostLineItem, error) {
	res := domain.CostLineItem{
		Currency:    c.Currency,
		RuleMissing: c.RuleMissing,
	}
	var err error
	if res.Surcharges, err = parseMoney(c.Surcharges); err != nil {
		return res, err
	}
	if res.Total, err = parseMoney(c.Total); err != nil {
		return res, err
	}
	for _, comp := range c.Components {
		dc := domain.CostComponent{Unit: domain.UnitKind(comp.Unit)}
		if dc.Quantity, err = parseMoney(comp.Quantity); err != nil {
			return res, err
		}
		if dc.Rate, err = parseMoney(comp.Rate); err != nil {
			return res, err
		}
		if dc.Subtotal, err = parseMoney(comp.Subtotal); err != nil {
			return res, err
		}
		res.Components = append(res.Components, dc)
	}
	return res, nil
}

func MapResourceDomainToStore(r domain.Resource) store.Resource {
	res := store.Resource{
		ResourceType: string(r.Type),
		ID:           r.ID,
		Provider:     string(r.Provider),
		Scope:        r.Scope,
		Name:         r.Name,
		Attributes:   encodeAttributes(r.Attributes),
		Extensions:   maps.Clone(r.Extensions),
		Links:        make([]store.Link, 0, len(r.Links)),
		Cost:         MapCostDomainToStore(r.Cost),
	}
	for _, l := range r.Links {
		res.Links = append(res.Links, store.Link{
			Attribute:       l.Attribute,
			TargetType:      string(l.TargetType),
			TargetID:        l.TargetID,
			TargetAttribute: l.TargetAttribute,
			Status:          string(l.Status),
		})
	}
	return res
}

func MapStoreResourceToDomain(r store.Resource) (domain.Resource, error) {
	attrs, err := decodeAttributes(r.Attributes)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("resource %s/%s: %w", r.ResourceType, r.ID, err)
	}
	cost, err := MapStoreCostToDomain(r.Cost)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("resource %s/%s cost: %w", r.ResourceType, r.ID, err)
	}

	res := domain.Resource{
		ID:         r.ID,
		Provider:   domain.ProviderKind(r.Provider),
		Type:       domain.ResourceType(r.ResourceType),
		Scope:      r.Scope,
		Name:       r.Name,
		Attributes: attrs,
		Extensions: maps.Clone(r.Extensions),
		Cost:       cost,
	}
	for _, l := range r.Links {
		res.Links = append(res.Links, domain.Link{
			Attribute:       l.Attribute,
			TargetType:      domain.ResourceType(l.TargetType),
			TargetID:        l.TargetID,
			TargetAttribute: l.TargetAttribute,
			Status:          domain.LinkStatus(l.Status),
		})
	}
	return res, nil
}

func MapSnapshotDomainToStore(s domain.Snapshot) store.Snapshot {
	res := store.Snapshot{
		RunID:          s.RunID,
		ConnectionID:   s.ConnectionID,
		Provider:       string(s.Provider),
		PricingVersion: s.PricingVersion,
		Currency:       s.Currency,
		CreatedAt:      s.CreatedAt,
		Grand:          money(s.Totals.Grand),
		Resources:      make([]store.Resource, 0, len(s.Resources)),
	}

	types := slices.Sorted(maps.Keys(s.Totals.Counts))
	for _, t := range types {
		res.Totals = append(res.Totals, store.TypeTotal{
			Type:  string(t),
			Count: s.Totals.Counts[t],
			Total: money(s.Totals.ByType[t]),
		})
	}
	for _, r := range s.Resources {
		res.Resources = append(res.Resources, MapResourceDomainToStore(r))
	}
	for _, d := range s.UnresolvedLinks {
		res.UnresolvedLinks = append(res.UnresolvedLinks, store.DanglingLink{
			SourceType: string(d.SourceType),
			SourceID:   d.SourceID,
			Attribute:  d.Attribute,
			TargetType: string(d.TargetType),
			TargetID:   d.TargetID,
		})
	}
	for _, k := range s.MissingPricingRules {
		res.MissingPricingRules = append(res.MissingPricingRules, store.RuleKey{
			Provider:     string(k.Provider),
			ResourceType: string(k.ResourceType),
		})
	}
	for _, f := range s.MissingResourceTypes {
		res.MissingResourceTypes = append(res.MissingResourceTypes, store.TypeFailure{
			Type:   string(f.Type),
			Code:   f.Code,
			Reason: f.Reason,
		})
	}
	for _, n := range s.Notes {
		res.Notes = append(res.Notes, store.Note{Code: n.Code, Type: string(n.Type), Message: n.Message})
	}
	return res
}

func MapStoreSnapshotToDomain(s store.Snapshot) (domain.Snapshot, error) {
	grand, err := parseMoney(s.Grand)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot %s grand total: %w", s.RunID, err)
	}

	res := domain.Snapshot{
		RunID:          s.RunID,
		ConnectionID:   s.ConnectionID,
		Provider:       domain.ProviderKind(s.Provider),
		PricingVersion: s.PricingVersion,
		Currency:       s.Currency,
		CreatedAt:      s.CreatedAt,
		Totals: domain.Totals{
			ByType: make(map[domain.ResourceType]decimal.Decimal, len(s.Totals)),
			Counts: make(map[domain.ResourceType]int, len(s.Totals)),
			Grand:  grand,
		},
	}
	for _, t := range s.Totals {
		total, err := parseMoney(t.Total)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("snapshot %s total for %s: %w", s.RunID, t.Type, err)
		}
		res.Totals.ByType[domain.ResourceType(t.Type)] = total
		res.Totals.Counts[domain.ResourceType(t.Type)] = t.Count
	}
	for _, r := range s.Resources {
		dr, err := MapStoreResourceToDomain(r)
		if err != nil {
			return domain.Snapshot{}, err
		}
		res.Resources = append(res.Resources, dr)
	}
	for _, d := range s.UnresolvedLinks {
		res.UnresolvedLinks = append(res.UnresolvedLinks, domain.DanglingLink{
			SourceType: domain.ResourceType(d.SourceType),
			SourceID:   d.SourceID,
			Attribute:  d.Attribute,
			TargetType: domain.ResourceType(d.TargetType),
			TargetID:   d.TargetID,
		})
	}
	for _, k := range s.MissingPricingRules {
		res.MissingPricingRules = append(res.MissingPricingRules, domain.RuleKey{
			Provider:     domain.ProviderKind(k.Provider),
			ResourceType: domain.ResourceType(k.ResourceType),
		})
	}
	for _, f := range s.MissingResourceTypes {
		res.MissingResourceTypes = append(res.MissingResourceTypes, domain.TypeFailure{
			Type:   domain.ResourceType(f.Type),
			Code:   f.Code,
			Reason: f.Reason,
		})
	}
	for _, n := range s.Notes {
		res.Notes = append(res.Notes, domain.Note{Code: n.Code, Type: domain.ResourceType(n.Type), Message: n.Message})
	}
	return res, nil
}

func MapCostDomainToApi(c domain.CostLineItem) api.Cost {
	res := api.Cost{
		Components:  make([]api.CostComponent, 0, len(c.Components)),
		Surcharges:  money(c.Surcharges),
		Total:       money(c.Total),
		Currency:    c.Currency,
		RuleMissing: c.RuleMissing,
	}
	for _, comp := range c.Components {
		res.Components = append(res.Components, api.CostComponent{
			Unit:     string(comp.Unit),
			Quantity: money(comp.Quantity),
			Rate:     money(comp.Rate),
			Subtotal: money(comp.Subtotal),
		})
	}
	return res
}

func MapResourceDomainToApi(r domain.Resource) api.Resource {
	res := api.Resource{
		ID:         r.ID,
		Type:       string(r.Type),
		Scope:      r.Scope,
		Name:       r.Name,
		Attributes: encodeAttributes(r.Attributes),
		Extensions: maps.Clone(r.Extensions),
		Cost:       MapCostDomainToApi(r.Cost),
	}
	for _, l := range r.Links {
		res.Links = append(res.Links, api.Link{
			Attribute:  l.Attribute,
			TargetType: string(l.TargetType),
			TargetID:   l.TargetID,
			Status:     string(l.Status),
		})
	}
	return res
}

func MapSnapshotDomainToApi(s domain.Snapshot, withExtensions bool) api.Snapshot {
	res := api.Snapshot{
		RunID:                s.RunID,
		ConnectionID:         s.ConnectionID,
		Provider:             string(s.Provider),
		PricingVersion:       s.PricingVersion,
		Timestamp:            s.CreatedAt,
		Resources:            make([]api.Resource, 0, len(s.Resources)),
		Totals:               MapTotalsDomainToApi(s.Totals),
		UnresolvedLinks:      make([]api.DanglingLink, 0, len(s.UnresolvedLinks)),
		MissingPricingRules:  make([]api.RuleKey, 0, len(s.MissingPricingRules)),
		MissingResourceTypes: make([]api.TypeFailure, 0, len(s.MissingResourceTypes)),
	}
	for _, r := range s.Resources {
		ar := MapResourceDomainToApi(r)
		if !withExtensions {
			ar.Extensions = nil
		}
		res.Resources = append(res.Resources, ar)
	}
	for _, d := range s.UnresolvedLinks {
		res.UnresolvedLinks = append(res.UnresolvedLinks, api.DanglingLink{
			SourceType: string(d.SourceType),
			SourceID:   d.SourceID,
			Attribute:  d.Attribute,
			TargetType: string(d.TargetType),
			TargetID:   d.TargetID,
		})
	}
	for _, k := range s.MissingPricingRules {
		res.MissingPricingRules = append(res.MissingPricingRules, api.RuleKey{
			Provider:     string(k.Provider),
			ResourceType: string(k.ResourceType),
		})
	}
	for _, f := range s.MissingResourceTypes {
		res.MissingResourceTypes = append(res.MissingResourceTypes, api.TypeFailure{
			Type:   string(f.Type),
			Code:   f.Code,
			Reason: f.Reason,
		})
	}
	for _, n := range s.Notes {
		res.Notes = append(res.Notes, api.Note{Code: n.Code, Type: string(n.Type), Message: n.Message})
	}
	return res
}

func MapTotalsDomainToApi(t domain.Totals) api.Totals {
	res := api.Totals{
		ByType: make(map[string]string, len(t.ByType)),
		Counts: make(map[string]int, len(t.Counts)),
		Grand:  money(t.Grand),
	}
	for k, v := range t.ByType {
		res.ByType[string(k)] = money(v)
	}
	for k, v := range t.Counts {
		res.Counts[string(k)] = v
	}
	return res
}

func MapSnapshotDomainToApiSummary(s domain.Snapshot) api.SnapshotSummary {
	return api.SnapshotSummary{
		RunID:          s.RunID,
		ConnectionID:   s.ConnectionID,
		PricingVersion: s.PricingVersion,
		Timestamp:      s.CreatedAt,
		Resources:      len(s.Resources),
		Grand:          money(s.Totals.Grand),
		Currency:       s.Currency,
	}
}

func MapResourceTypesDomainToApi(connectionID string, types []domain.ResourceType) api.ResourceTypes {
	res := api.ResourceTypes{ConnectionID: connectionID, Types: make([]string, 0, len(types))}
	for _, t := range types {
		res.Types = append(res.Types, string(t))
	}
	return res
}
