package normalizer

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

var one = decimal.NewFromInt(1)

var ErrMalformedEntry = errors.New("malformed_entry")

// Normalizer maps raw listing entries to canonical resources. It is pure and
// safe for concurrent use.
type Normalizer struct {
	tables map[domain.ProviderKind]Table
}

func New() *Normalizer {
	return NewWithTables(DefaultTables())
}

func NewWithTables(tables map[domain.ProviderKind]Table) *Normalizer {
	return &Normalizer{tables: tables}
}

// Normalize converts one entry. Fields no rule reads are kept in Extensions;
// declared cross-references are returned as unresolved links.
func (n *Normalizer) Normalize(kind domain.ProviderKind, resourceType domain.ResourceType, entry domain.RawEntry) (domain.Resource, error) {
	if entry.ID == "" {
		return domain.Resource{}, fmt.Errorf("%w: %s entry without identifier", ErrMalformedEntry, resourceType)
	}

	mapping := n.tables[kind][resourceType]
	res := domain.Resource{
		ID:         entry.ID,
		Provider:   kind,
		Type:       resourceType,
		Attributes: domain.Attributes{},
		Extensions: map[string]any{},
	}

	consumed := map[string]bool{}
	markConsumed := func(paths ...string) {
		for _, p := range paths {
			consumed[rootField(p)] = true
		}
	}

	if mapping.NameFunc != nil {
		res.Name = mapping.NameFunc(entry.Fields)
	}
	if res.Name == "" {
		res.Name = firstString(entry.Fields, mapping.NamePaths...)
	}
	if res.Name == "" {
		res.Name = entry.ID
	}
	res.Scope = firstString(entry.Fields, mapping.ScopePaths...)
	markConsumed(mapping.NamePaths...)
	markConsumed(mapping.ScopePaths...)

	for _, rule := range mapping.Rules {
		markConsumed(rule.Paths...)
		if _, set := res.Attributes[rule.Attribute]; set {
			continue
		}
		if v, ok := rule.apply(entry.Fields); ok {
			res.Attributes[rule.Attribute] = v
		}
	}

	for _, lr := range mapping.Links {
		markConsumed(lr.Path)
		seen := map[string]bool{}
		for _, v := range lookup(entry.Fields, lr.Path) {
			id, ok := v.(string)
			if !ok || id == "" || seen[id] {
				continue
			}
			seen[id] = true
			res.Links = append(res.Links, domain.Link{
				Attribute:       lr.Attribute,
				TargetType:      lr.TargetType,
				TargetID:        id,
				TargetAttribute: lr.TargetAttribute,
				Status:          domain.LinkUnresolved,
			})
		}
	}

	for k, v := range entry.Fields {
		if !consumed[k] {
			res.Extensions[k] = v
		}
	}
	return res, nil
}
