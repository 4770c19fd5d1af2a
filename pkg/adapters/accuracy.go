package adapters

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/api"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/models/store"
)

func optionalMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func MapAccuracyDomainToApi(r domain.AccuracyReport) api.AccuracyReport {
	res := api.AccuracyReport{
		RunID:           r.RunID,
		ConnectionID:    r.ConnectionID,
		Estimated:       money(r.Estimated),
		Actual:          money(r.Actual),
		Gap:             money(r.Gap),
		AccuracyPercent: r.AccuracyPercent.StringFixed(2),
		Source:          r.Source,
		CreatedAt:       r.CreatedAt,
	}
	for _, g := range r.ByType {
		res.ByType = append(res.ByType, api.TypeGap{
			Type:            string(g.Type),
			Estimated:       money(g.Estimated),
			Actual:          money(g.Actual),
			Gap:             money(g.Gap),
			AccuracyPercent: optionalMoney(g.AccuracyPercent),
		})
	}
	return res
}

func MapAccuracyDomainToStore(r domain.AccuracyReport) store.AccuracyReport {
	res := store.AccuracyReport{
		RunID:           r.RunID,
		ConnectionID:    r.ConnectionID,
		Estimated:       money(r.Estimated),
		Actual:          money(r.Actual),
		Gap:             money(r.Gap),
		AccuracyPercent: money(r.AccuracyPercent),
		ByType:          make([]store.TypeGap, 0, len(r.ByType)),
		Source:          r.Source,
		CreatedAt:       r.CreatedAt,
	}
	for _, g := range r.ByType {
		var pct *string
		if g.AccuracyPercent != nil {
			s := money(*g.AccuracyPercent)
			pct = &s
		}
		res.ByType = append(res.ByType, store.TypeGap{
			Type:            string(g.Type),
			Estimated:       money(g.Estimated),
			Actual:          money(g.Actual),
			Gap:             money(g.Gap),
			AccuracyPercent: pct,
		})
	}
	return res
}

func MapStoreAccuracyToDomain(r store.AccuracyReport) (domain.AccuracyReport, error) {
	res := domain.AccuracyReport{
		RunID:        r.RunID,
		ConnectionID: r.ConnectionID,
		Source:       r.Source,
		CreatedAt:    r.CreatedAt,
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&res.Estimated, r.Estimated},
		{&res.Actual, r.Actual},
		{&res.Gap, r.Gap},
		{&res.AccuracyPercent, r.AccuracyPercent},
	} {
		if *f.dst, err = parseMoney(f.src); err != nil {
			return domain.AccuracyReport{}, fmt.Errorf("accuracy report %s: %w", r.RunID, err)
		}
	}
	for _, g := range r.ByType {
		tg := domain.TypeGap{Type: domain.ResourceType(g.Type)}
		if tg.Estimated, err = parseMoney(g.Estimated); err != nil {
			return domain.AccuracyReport{}, err
		}
		if tg.Actual, err = parseMoney(g.Actual); err != nil {
			return domain.AccuracyReport{}, err
		}
		if tg.Gap, err = parseMoney(g.Gap); err != nil {
			return domain.AccuracyReport{}, err
		}
		if g.AccuracyPercent != nil {
			pct, err := parseMoney(*g.AccuracyPercent)
			if err != nil {
				return domain.AccuracyReport{}, err
			}
			tg.AccuracyPercent = &pct
		}
		res.ByType = append(res.ByType, tg)
	}
	return res, nil
}

const dateLayout = "2006-01-02"

// MapApiAccuracyRequestToDomain parses a typed-in actual bill. An empty
// actual is rejected here; a non-positive one is left to the reconciler.
func MapApiAccuracyRequestToDomain(req api.AccuracyRequest) (domain.ActualBill, error) {
	if req.Actual == "" {
		return domain.ActualBill{}, fmt.Errorf("actual is required")
	}
	amount, err := parseMoney(req.Actual)
	if err != nil {
		return domain.ActualBill{}, err
	}

	bill := domain.ActualBill{Amount: amount, Currency: req.Currency}
	if len(req.ByType) > 0 {
		bill.ByType = make(map[domain.ResourceType]decimal.Decimal, len(req.ByType))
		for t, v := range req.ByType {
			rt := domain.ResourceType(t)
			if !rt.Valid() {
				return domain.ActualBill{}, fmt.Errorf("unknown resource type %q", t)
			}
			d, err := parseMoney(v)
			if err != nil {
				return domain.ActualBill{}, fmt.Errorf("%s: %w", t, err)
			}
			bill.ByType[rt] = d
		}
	}
	return bill, nil
}

// ParsePeriod reads a [from, to) date range. Both empty means the zero
// period; to must be after from.
func ParsePeriod(from, to string) (domain.TimePeriod, error) {
	if from == "" && to == "" {
		return domain.TimePeriod{}, nil
	}
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return domain.TimePeriod{}, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return domain.TimePeriod{}, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if !end.After(start) {
		return domain.TimePeriod{}, fmt.Errorf("period end %s must be after start %s", to, from)
	}
	return domain.TimePeriod{Start: start, End: end}, nil
}
