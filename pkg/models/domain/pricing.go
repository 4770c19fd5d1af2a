package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type UnitKind string

const (
	UnitVCPU         UnitKind = "vcpu"
	UnitMemoryGB     UnitKind = "memory_gb"
	UnitStorageGB    UnitKind = "storage_gb"
	UnitPublicIP     UnitKind = "public_ip"
	UnitPublicIPIdle UnitKind = "public_ip_idle"
	UnitNode         UnitKind = "node"
	UnitInstance     UnitKind = "instance"
)

var UnitKinds = []UnitKind{
	UnitVCPU,
	UnitMemoryGB,
	UnitStorageGB,
	UnitPublicIP,
	UnitPublicIPIdle,
	UnitNode,
	UnitInstance,
}

func (u UnitKind) Valid() bool {
	for _, known := range UnitKinds {
		if u == known {
			return true
		}
	}
	return false
}

type RuleKey struct {
	Provider     ProviderKind
	ResourceType ResourceType
}

func (k RuleKey) String() string {
	return fmt.Sprintf("%s/%s", k.Provider, k.ResourceType)
}

type PricingRule struct {
	Provider            ProviderKind
	ResourceType        ResourceType
	Unit                UnitKind
	RatePerUnitPerDay   decimal.Decimal
	FlatSurchargePerDay *decimal.Decimal
}

func (r PricingRule) Key() RuleKey {
	return RuleKey{Provider: r.Provider, ResourceType: r.ResourceType}
}

// PricingTable is an immutable, versioned set of rules. Build it with
// NewPricingTable; the zero value has no rules.
type PricingTable struct {
	Version  string
	Currency string
	LoadedAt time.Time
	rules    map[RuleKey][]PricingRule
}

func NewPricingTable(version, currency string, loadedAt time.Time, rules []PricingRule) (PricingTable, error) {
	if version == "" {
		return PricingTable{}, fmt.Errorf("pricing table version is required")
	}

	seen := make(map[string]struct{}, len(rules))
	byKey := make(map[RuleKey][]PricingRule)
	for _, r := range rules {
		id := fmt.Sprintf("%s/%s/%s", r.Provider, r.ResourceType, r.Unit)
		if _, dup := seen[id]; dup {
			return PricingTable{}, fmt.Errorf("duplicate pricing rule %s", id)
		}
		seen[id] = struct{}{}
		byKey[r.Key()] = append(byKey[r.Key()], r)
	}

	for k := range byKey {
		sort.Slice(byKey[k], func(i, j int) bool {
			return byKey[k][i].Unit < byKey[k][j].Unit
		})
	}

	return PricingTable{
		Version:  version,
		Currency: currency,
		LoadedAt: loadedAt,
		rules:    byKey,
	}, nil
}

// Rules returns a copy of the rules for key, ordered by unit kind.
func (t PricingTable) Rules(key RuleKey) []PricingRule {
	rules := t.rules[key]
	out := make([]PricingRule, len(rules))
	copy(out, rules)
	return out
}

func (t PricingTable) Len() int {
	n := 0
	for _, rules := range t.rules {
		n += len(rules)
	}
	return n
}

type CostComponent struct {
	Unit     UnitKind
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	Subtotal decimal.Decimal // Quantity * Rate
}

// CostLineItem is a daily cost estimate for one resource.
type CostLineItem struct {
	Components  []CostComponent
	Surcharges  decimal.Decimal
	Total       decimal.Decimal
	Currency    string
	RuleMissing bool
}

func (c CostLineItem) Equal(o CostLineItem) bool {
	if c.Currency != o.Currency || c.RuleMissing != o.RuleMissing {
		return false
	}
	if !c.Total.Equal(o.Total) || !c.Surcharges.Equal(o.Surcharges) {
		return false
	}
	if len(c.Components) != len(o.Components) {
		return false
	}
	for i := range c.Components {
		a, b := c.Components[i], o.Components[i]
		if a.Unit != b.Unit || !a.Quantity.Equal(b.Quantity) || !a.Rate.Equal(b.Rate) || !a.Subtotal.Equal(b.Subtotal) {
			return false
		}
	}
	return true
}
