package adapters

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

func money(d decimal.Decimal) string {
	return d.String()
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

var quantityAttributes = map[string]bool{
	domain.AttrCPUUnits:     true,
	domain.AttrMemoryBytes:  true,
	domain.AttrStorageBytes: true,
	domain.AttrNodeCount:    true,
}

// encodeAttributes renders decimals as strings so they survive JSON exactly.
func encodeAttributes(attrs domain.Attributes) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if d, ok := v.(decimal.Decimal); ok {
			out[k] = d.String()
			continue
		}
		out[k] = v
	}
	return out
}

func decodeAttributes(raw map[string]any) (domain.Attributes, error) {
	out := make(domain.Attributes, len(raw))
	for k, v := range raw {
		if !quantityAttributes[k] {
			out[k] = v
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected decimal string, got %T", k, v)
		}
		d, err := parseMoney(s)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}
