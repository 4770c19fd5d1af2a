package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var gib = decimal.NewFromInt(1 << 30)

// Rule derives one canonical attribute from one or more field paths. When
// several rules target the same attribute, the first one yielding a value wins.
type Rule struct {
	Attribute string
	Paths     []string
	derive    func(values [][]any) (any, bool)
}

func (r Rule) apply(fields map[string]any) (any, bool) {
	values := make([][]any, len(r.Paths))
	for i, p := range r.Paths {
		values[i] = lookup(fields, p)
	}
	return r.derive(values)
}

// Quantity sums every numeric value found under paths, multiplied by scale.
func Quantity(attribute string, scale decimal.Decimal, paths ...string) Rule {
	return Rule{Attribute: attribute, Paths: paths, derive: func(values [][]any) (any, bool) {
		sum, found := sumValues(values)
		if !found {
			return nil, false
		}
		return sum.Mul(scale), true
	}}
}

func Bytes(attribute string, paths ...string) Rule {
	return Quantity(attribute, decimal.NewFromInt(1), paths...)
}

func GiB(attribute string, paths ...string) Rule {
	return Quantity(attribute, gib, paths...)
}

func Count(attribute string, paths ...string) Rule {
	return Quantity(attribute, decimal.NewFromInt(1), paths...)
}

// CountPlus adds a fixed offset, e.g. a driver node on top of workers.
func CountPlus(attribute string, offset int64, paths ...string) Rule {
	return Rule{Attribute: attribute, Paths: paths, derive: func(values [][]any) (any, bool) {
		sum, found := sumValues(values)
		if !found {
			return nil, false
		}
		return sum.Add(decimal.NewFromInt(offset)), true
	}}
}

// Product multiplies the first numeric value of each path.
func Product(attribute string, paths ...string) Rule {
	return Rule{Attribute: attribute, Paths: paths, derive: func(values [][]any) (any, bool) {
		result := decimal.NewFromInt(1)
		for _, vs := range values {
			if len(vs) == 0 {
				return nil, false
			}
			d, ok := toDecimal(vs[0])
			if !ok {
				return nil, false
			}
			result = result.Mul(d)
		}
		return result, true
	}}
}

// Present is true when any path yields a non-empty value.
func Present(attribute string, paths ...string) Rule {
	return Rule{Attribute: attribute, Paths: paths, derive: func(values [][]any) (any, bool) {
		for _, vs := range values {
			for _, v := range vs {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return true, true
			}
		}
		return false, true
	}}
}

// FlagOr reads a boolean under path. A missing value yields fallback, since
// some APIs omit false booleans from their payloads.
func FlagOr(attribute string, fallback bool, path string) Rule {
	return Rule{Attribute: attribute, Paths: []string{path}, derive: func(values [][]any) (any, bool) {
		if len(values[0]) == 0 {
			return fallback, true
		}
		if v, ok := flagValue(values[0][0]); ok {
			return v, true
		}
		return fallback, true
	}}
}

func flagValue(v any) (any, bool) {
	switch v := v.(type) {
	case bool:
		return v, true
	case string:
		return strings.EqualFold(v, "true"), true
	default:
		return nil, false
	}
}

// Equals is true when the value under path matches one of expected, case-insensitively.
func Equals(attribute, path string, expected ...string) Rule {
	return Rule{Attribute: attribute, Paths: []string{path}, derive: func(values [][]any) (any, bool) {
		if len(values[0]) == 0 {
			return nil, false
		}
		got := fmt.Sprint(values[0][0])
		for _, e := range expected {
			if strings.EqualFold(got, e) {
				return true, true
			}
		}
		return false, true
	}}
}

func Class(attribute, path string) Rule {
	return Rule{Attribute: attribute, Paths: []string{path}, derive: func(values [][]any) (any, bool) {
		for _, v := range values[0] {
			if s := fmt.Sprint(v); s != "" {
				return s, true
			}
		}
		return nil, false
	}}
}

func Const(attribute string, value any) Rule {
	return Rule{Attribute: attribute, derive: func([][]any) (any, bool) {
		return value, true
	}}
}

func sumValues(values [][]any) (decimal.Decimal, bool) {
	sum := decimal.Zero
	found := false
	for _, vs := range values {
		for _, v := range vs {
			d, ok := toDecimal(v)
			if !ok {
				continue
			}
			sum = sum.Add(d)
			found = true
		}
	}
	return sum, found
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Decimal{}, false
	}
}
