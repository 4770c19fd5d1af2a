package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type stubSource struct {
	bill   domain.ActualBill
	err    error
	closed bool
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Actual(context.Context, domain.TimePeriod) (domain.ActualBill, error) {
	return s.bill, s.err
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func period(days int) domain.TimePeriod {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return domain.TimePeriod{Start: start, End: start.AddDate(0, 0, days)}
}

func TestDaily(t *testing.T) {
	bill := Daily("aws_ce", period(30), "USD", decimal.RequireFromString("900"), map[domain.ResourceType]decimal.Decimal{
		domain.ResourceBlockVolume: decimal.RequireFromString("100"),
	})

	assert.Equal(t, "30", bill.Amount.String())
	assert.Equal(t, "3.333333", bill.ByType[domain.ResourceBlockVolume].String())
	assert.Equal(t, "USD", bill.Currency)
	assert.Equal(t, "aws_ce", bill.Source)
}

func TestDaily_NoBreakdown(t *testing.T) {
	bill := Daily("manual", period(1), "USD", decimal.RequireFromString("12.5"), nil)
	assert.Nil(t, bill.ByType)
	assert.Equal(t, "12.5", bill.Amount.String())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	src := &stubSource{bill: domain.ActualBill{Amount: decimal.NewFromInt(7)}}

	require.NoError(t, r.Register(domain.ProviderAWS, func(context.Context, domain.Connection) (Source, error) {
		return src, nil
	}))
	assert.Error(t, r.Register(domain.ProviderAWS, func(context.Context, domain.Connection) (Source, error) { return src, nil }))
	assert.Error(t, r.Register("gcp", func(context.Context, domain.Connection) (Source, error) { return src, nil }))
	assert.Error(t, r.Register(domain.ProviderAzure, nil))

	bill, err := r.Fetch(context.Background(), domain.Connection{Provider: domain.ProviderAWS}, period(1))
	require.NoError(t, err)
	assert.Equal(t, "7", bill.Amount.String())
	assert.True(t, src.closed)

	_, err = r.Fetch(context.Background(), domain.Connection{Provider: domain.ProviderSnowflake}, period(1))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRegistry_FetchWrapsSourceError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, r.Register(domain.ProviderAzure, func(context.Context, domain.Connection) (Source, error) {
		return &stubSource{err: boom}, nil
	}))

	_, err := r.Fetch(context.Background(), domain.Connection{Provider: domain.ProviderAzure}, period(1))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stub")
}
