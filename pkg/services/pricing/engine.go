package pricing

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

const (
	subtotalPlaces = 6
	quantityPlaces = 9
)

var gib = decimal.NewFromInt(1 << 30)

// Engine prices resources against one immutable pricing table.
type Engine struct {
	table domain.PricingTable
}

func NewEngine(table domain.PricingTable) *Engine {
	return &Engine{table: table}
}

func (e *Engine) Table() domain.PricingTable {
	return e.table
}

// Price computes the daily cost of r. The second result reports that the
// table has no rule for the resource's provider and type, in which case the
// line item is zero.
func (e *Engine) Price(r domain.Resource) (domain.CostLineItem, bool) {
	item := domain.CostLineItem{
		Surcharges: decimal.Zero,
		Total:      decimal.Zero,
		Currency:   e.table.Currency,
	}

	rules := e.table.Rules(domain.RuleKey{Provider: r.Provider, ResourceType: r.Type})
	if len(rules) == 0 {
		item.RuleMissing = true
		return item, true
	}

	for _, rule := range rules {
		qty := Quantity(rule.Unit, r.Attributes)
		if qty.IsZero() {
			continue
		}
		subtotal := qty.Mul(rule.RatePerUnitPerDay).Round(subtotalPlaces)
		item.Components = append(item.Components, domain.CostComponent{
			Unit:     rule.Unit,
			Quantity: qty,
			Rate:     rule.RatePerUnitPerDay,
			Subtotal: subtotal,
		})
		item.Total = item.Total.Add(subtotal)
		if rule.FlatSurchargePerDay != nil {
			item.Surcharges = item.Surcharges.Add(*rule.FlatSurchargePerDay)
		}
	}
	item.Total = item.Total.Add(item.Surcharges)
	return item, false
}

// Quantity derives how many units of kind a resource consumes.
func Quantity(kind domain.UnitKind, attrs domain.Attributes) decimal.Decimal {
	switch kind {
	case domain.UnitVCPU:
		return attrs.Decimal(domain.AttrCPUUnits)
	case domain.UnitMemoryGB:
		return attrs.Decimal(domain.AttrMemoryBytes).DivRound(gib, quantityPlaces)
	case domain.UnitStorageGB:
		return attrs.Decimal(domain.AttrStorageBytes).DivRound(gib, quantityPlaces)
	case domain.UnitNode:
		return attrs.Decimal(domain.AttrNodeCount)
	case domain.UnitInstance:
		return decimal.NewFromInt(1)
	case domain.UnitPublicIP:
		if attrs.Bool(domain.AttrPublicIP) && attrs.BoolOr(domain.AttrInUse, true) {
			return decimal.NewFromInt(1)
		}
	case domain.UnitPublicIPIdle:
		if attrs.Bool(domain.AttrPublicIP) && !attrs.BoolOr(domain.AttrInUse, true) {
			return decimal.NewFromInt(1)
		}
	}
	return decimal.Zero
}

// PriceAll prices every resource in place and aggregates totals. Missing rule
// keys are returned sorted and deduplicated.
func (e *Engine) PriceAll(resources []domain.Resource) (domain.Totals, []domain.RuleKey) {
	totals := domain.Totals{
		ByType: make(map[domain.ResourceType]decimal.Decimal),
		Counts: make(map[domain.ResourceType]int),
		Grand:  decimal.Zero,
	}
	missing := make(map[domain.RuleKey]struct{})

	for i := range resources {
		item, ruleMissing := e.Price(resources[i])
		resources[i].Cost = item
		t := resources[i].Type
		if ruleMissing {
			missing[domain.RuleKey{Provider: resources[i].Provider, ResourceType: t}] = struct{}{}
		}

		totals.Counts[t]++
		if cur, ok := totals.ByType[t]; ok {
			totals.ByType[t] = cur.Add(item.Total)
		} else {
			totals.ByType[t] = item.Total
		}
		totals.Grand = totals.Grand.Add(item.Total)
	}

	keys := make([]domain.RuleKey, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	SortRuleKeys(keys)
	return totals, keys
}

func SortRuleKeys(keys []domain.RuleKey) {
	slices.SortFunc(keys, func(a, b domain.RuleKey) int {
		return cmp.Or(cmp.Compare(a.Provider, b.Provider), cmp.Compare(a.ResourceType, b.ResourceType))
	})
}
