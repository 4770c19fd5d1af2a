package accuracy

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

func TestReportStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)

	created := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	pct := decimal.RequireFromString("94.8")
	report := domain.AccuracyReport{
		RunID:           "run-1",
		ConnectionID:    "prod",
		Estimated:       decimal.RequireFromString("5121.15"),
		Actual:          decimal.RequireFromString("5402.27"),
		Gap:             decimal.RequireFromString("281.12"),
		AccuracyPercent: pct,
		ByType:          []domain.TypeGap{{Type: domain.ResourceImage, Estimated: decimal.NewFromInt(1), Actual: decimal.Zero, Gap: decimal.NewFromInt(-1)}},
		Source:          "manual",
		CreatedAt:       created,
	}

	mock.ExpectExec("INSERT INTO accuracy_reports").
		WithArgs("run-1", "prod", "5121.15", "5402.27", "281.12", "94.8",
			`[{"type":"image","estimated":"1","actual":"0","gap":"-1","accuracy_percent":null}]`, "manual", created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveReport(context.Background(), report))

	mock.ExpectQuery("FROM accuracy_reports").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "connection_id", "estimated", "actual", "gap", "accuracy_percent", "by_type", "source", "created_at"}).
			AddRow("run-1", "prod", "5121.15", "5402.27", "281.12", "94.8",
				`[{"type":"image","estimated":"1","actual":"0","gap":"-1","accuracy_percent":null}]`, "manual", created))

	reports, err := s.ListReports(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].AccuracyPercent.Equal(pct))
	require.Len(t, reports[0].ByType, 1)
	assert.Nil(t, reports[0].ByType[0].AccuracyPercent)
	assert.True(t, reports[0].ByType[0].Gap.Equal(decimal.NewFromInt(-1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
