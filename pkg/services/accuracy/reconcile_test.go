package accuracy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshotWithTotal(total string, byType map[domain.ResourceType]decimal.Decimal) domain.Snapshot {
	return domain.Snapshot{
		RunID:        "run-1",
		ConnectionID: "prod",
		Currency:     "USD",
		Totals:       domain.Totals{Grand: dec(total), ByType: byType},
	}
}

func TestReconcile(t *testing.T) {
	report, err := Reconcile(snapshotWithTotal("5121.15", nil), domain.ActualBill{Amount: dec("5402.27"), Source: "manual"})
	require.NoError(t, err)

	assert.Equal(t, "281.12", report.Gap.String())
	assert.Equal(t, "94.80", report.AccuracyPercent.StringFixed(2))
	assert.True(t, report.Estimated.Equal(dec("5121.15")))
	assert.True(t, report.Actual.Equal(dec("5402.27")))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "manual", report.Source)
	assert.Empty(t, report.ByType)
}

func TestReconcile_Clamps(t *testing.T) {
	tests := []struct {
		name      string
		estimated string
		actual    string
		want      string
	}{
		{name: "exact", estimated: "10", actual: "10", want: "100"},
		{name: "overestimate beyond actual", estimated: "30", actual: "10", want: "0"},
		{name: "underestimate", estimated: "5", actual: "10", want: "50"},
		{name: "no estimate", estimated: "0", actual: "10", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Reconcile(snapshotWithTotal(tt.estimated, nil), domain.ActualBill{Amount: dec(tt.actual)})
			require.NoError(t, err)
			assert.True(t, report.AccuracyPercent.Equal(dec(tt.want)), report.AccuracyPercent.String())
		})
	}
}

func TestReconcile_InvalidActual(t *testing.T) {
	for _, amount := range []string{"0", "-1"} {
		_, err := Reconcile(snapshotWithTotal("1", nil), domain.ActualBill{Amount: dec(amount)})
		assert.ErrorIs(t, err, ErrInvalidActual)
	}

	_, err := Reconcile(snapshotWithTotal("1", nil), domain.ActualBill{
		Amount: dec("1"),
		ByType: map[domain.ResourceType]decimal.Decimal{domain.ResourceImage: dec("-2")},
	})
	assert.ErrorIs(t, err, ErrInvalidActual)
}

func TestReconcile_CurrencyMismatch(t *testing.T) {
	_, err := Reconcile(snapshotWithTotal("1", nil), domain.ActualBill{Amount: dec("1"), Currency: "EUR"})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestReconcile_ByType(t *testing.T) {
	s := snapshotWithTotal("30", map[domain.ResourceType]decimal.Decimal{
		domain.ResourceComputeInstance: dec("20"),
		domain.ResourceBlockVolume:     dec("10"),
	})
	report, err := Reconcile(s, domain.ActualBill{
		Amount: dec("40"),
		ByType: map[domain.ResourceType]decimal.Decimal{
			domain.ResourceComputeInstance: dec("25"),
			domain.ResourceDatabaseCluster: dec("15"),
		},
	})
	require.NoError(t, err)
	require.Len(t, report.ByType, 3)

	volume := report.ByType[0]
	assert.Equal(t, domain.ResourceBlockVolume, volume.Type)
	assert.True(t, volume.Actual.IsZero())
	assert.True(t, volume.Gap.Equal(dec("-10")))
	assert.Nil(t, volume.AccuracyPercent)

	instance := report.ByType[1]
	assert.Equal(t, domain.ResourceComputeInstance, instance.Type)
	assert.True(t, instance.Gap.Equal(dec("5")))
	require.NotNil(t, instance.AccuracyPercent)
	assert.True(t, instance.AccuracyPercent.Equal(dec("80")))

	db := report.ByType[2]
	assert.Equal(t, domain.ResourceDatabaseCluster, db.Type)
	assert.True(t, db.Estimated.IsZero())
	require.NotNil(t, db.AccuracyPercent)
	assert.True(t, db.AccuracyPercent.IsZero())
}
