package domain

import (
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

type DanglingLink struct {
	SourceType ResourceType
	SourceID   string
	Attribute  string
	TargetType ResourceType
	TargetID   string
}

// TypeFailure marks a resource type that could not be discovered in a run.
type TypeFailure struct {
	Type   ResourceType
	Code   string
	Reason string
}

// Note is a non-fatal observation made while building a snapshot,
// e.g. a malformed listing entry or a collapsed duplicate.
type Note struct {
	Code    string
	Type    ResourceType
	Message string
}

type Totals struct {
	ByType map[ResourceType]decimal.Decimal
	Counts map[ResourceType]int
	Grand  decimal.Decimal
}

func (t Totals) Equal(o Totals) bool {
	if !t.Grand.Equal(o.Grand) || len(t.ByType) != len(o.ByType) || !reflect.DeepEqual(t.Counts, o.Counts) {
		return false
	}
	for k, v := range t.ByType {
		ov, ok := o.ByType[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Snapshot is the immutable result of one sync run for one connection.
// Resources are ordered by type, then id.
type Snapshot struct {
	RunID                string
	ConnectionID         string
	Provider             ProviderKind
	PricingVersion       string
	Currency             string
	CreatedAt            time.Time
	Resources            []Resource
	Totals               Totals
	UnresolvedLinks      []DanglingLink
	MissingPricingRules  []RuleKey
	MissingResourceTypes []TypeFailure
	Notes                []Note
}

// ContentEqual reports whether two snapshots describe the same inventory and
// cost, ignoring run identity and timestamp.
func (s Snapshot) ContentEqual(o Snapshot) bool {
	if s.ConnectionID != o.ConnectionID || s.Provider != o.Provider || s.PricingVersion != o.PricingVersion || s.Currency != o.Currency {
		return false
	}
	if len(s.Resources) != len(o.Resources) {
		return false
	}
	for i := range s.Resources {
		if !s.Resources[i].contentEqual(o.Resources[i]) {
			return false
		}
	}
	if !s.Totals.Equal(o.Totals) {
		return false
	}
	return equalSlices(s.UnresolvedLinks, o.UnresolvedLinks) &&
		equalSlices(s.MissingPricingRules, o.MissingPricingRules) &&
		equalSlices(s.MissingResourceTypes, o.MissingResourceTypes) &&
		equalSlices(s.Notes, o.Notes)
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type ResourceRef struct {
	Type ResourceType
	ID   string
	Name string
}

type CostChange struct {
	ResourceRef
	Previous decimal.Decimal
	Current  decimal.Decimal
}

// Delta describes changes between a snapshot and the one preceding it for
// the same connection. PreviousRunID is empty for a connection's first run.
type Delta struct {
	PreviousRunID string
	Added         []ResourceRef
	Removed       []ResourceRef
	CostChanged   []CostChange
}

func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.CostChanged) == 0
}
