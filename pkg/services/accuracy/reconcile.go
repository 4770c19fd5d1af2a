package accuracy

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

var (
	ErrInvalidActual    = errors.New("invalid_actual")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
)

const percentPlaces = 2

var hundred = decimal.NewFromInt(100)

// Reconcile pairs a snapshot's daily estimate with an actual daily bill.
// gap = actual - estimated; accuracy = 100 * (1 - |gap| / actual), clamped
// to [0, 100] and rounded to two places.
func Reconcile(s domain.Snapshot, bill domain.ActualBill) (domain.AccuracyReport, error) {
	if !bill.Amount.IsPositive() {
		return domain.AccuracyReport{}, fmt.Errorf("%w: actual amount must be positive, got %s", ErrInvalidActual, bill.Amount)
	}
	if bill.Currency != "" && s.Currency != "" && bill.Currency != s.Currency {
		return domain.AccuracyReport{}, fmt.Errorf("%w: snapshot is in %s, bill is in %s", ErrCurrencyMismatch, s.Currency, bill.Currency)
	}
	for t, v := range bill.ByType {
		if v.IsNegative() {
			return domain.AccuracyReport{}, fmt.Errorf("%w: actual for %s is negative", ErrInvalidActual, t)
		}
	}

	estimated := s.Totals.Grand
	gap := bill.Amount.Sub(estimated)

	report := domain.AccuracyReport{
		RunID:           s.RunID,
		ConnectionID:    s.ConnectionID,
		Estimated:       estimated,
		Actual:          bill.Amount,
		Gap:             gap,
		AccuracyPercent: Percent(gap, bill.Amount),
		Source:          bill.Source,
	}

	if len(bill.ByType) > 0 {
		report.ByType = byType(s.Totals.ByType, bill.ByType)
	}
	return report, nil
}

// Percent computes the clamped accuracy for a gap against a positive actual.
func Percent(gap, actual decimal.Decimal) decimal.Decimal {
	ratio := gap.Abs().DivRound(actual, 16)
	pct := hundred.Mul(decimal.NewFromInt(1).Sub(ratio))
	switch {
	case pct.IsNegative():
		pct = decimal.Zero
	case pct.GreaterThan(hundred):
		pct = hundred
	}
	return pct.Round(percentPlaces)
}

// byType decomposes the gap per resource type. Types known to only one side
// are reported with zero on the other.
func byType(estimated, actual map[domain.ResourceType]decimal.Decimal) []domain.TypeGap {
	types := make(map[domain.ResourceType]struct{}, len(estimated)+len(actual))
	for t := range estimated {
		types[t] = struct{}{}
	}
	for t := range actual {
		types[t] = struct{}{}
	}

	gaps := make([]domain.TypeGap, 0, len(types))
	for _, t := range slices.Sorted(maps.Keys(types)) {
		est, ok := estimated[t]
		if !ok {
			est = decimal.Zero
		}
		act, ok := actual[t]
		if !ok {
			act = decimal.Zero
		}
		g := domain.TypeGap{
			Type:      t,
			Estimated: est,
			Actual:    act,
			Gap:       act.Sub(est),
		}
		if act.IsPositive() {
			pct := Percent(g.Gap, act)
			g.AccuracyPercent = &pct
		}
		gaps = append(gaps, g)
	}
	return gaps
}
