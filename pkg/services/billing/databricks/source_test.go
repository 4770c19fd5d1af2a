package databricks

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

func testPeriod() domain.TimePeriod {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return domain.TimePeriod{Start: start, End: start.AddDate(0, 0, 2)}
}

func TestSource_Actual(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM system.billing.usage AS u")).
		WithArgs("2026-09-01", "2026-09-03").
		WillReturnRows(sqlmock.NewRows([]string{"product", "currency_code", "cost"}).
			AddRow("ALL_PURPOSE", "USD", "10.5").
			AddRow("JOBS", "USD", "1.5").
			AddRow("SQL", "USD", "4").
			AddRow("MODEL_SERVING", "USD", "2").
			AddRow("NETWORKING", "USD", nil))

	bill, err := New(db).Actual(context.Background(), testPeriod())
	require.NoError(t, err)

	assert.Equal(t, "9", bill.Amount.String())
	assert.Equal(t, "6", bill.ByType[domain.ResourceAnalyticsCluster].String())
	assert.Equal(t, "2", bill.ByType[domain.ResourceSQLWarehouse].String())
	assert.Equal(t, "USD", bill.Currency)
	assert.Equal(t, SourceName, bill.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_MixedCurrencies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("system.billing.usage").
		WillReturnRows(sqlmock.NewRows([]string{"product", "currency_code", "cost"}).
			AddRow("SQL", "USD", "1").
			AddRow("SQL", "EUR", "1"))

	_, err = New(db).Actual(context.Background(), testPeriod())
	assert.ErrorContains(t, err, "mixes currencies")
}

func TestSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("system.billing.usage").WillReturnError(errors.New("warehouse stopped"))

	_, err = New(db).Actual(context.Background(), testPeriod())
	assert.ErrorContains(t, err, "warehouse stopped")
}

func TestFactory_RequiresHTTPPath(t *testing.T) {
	_, err := Factory(context.Background(), domain.Connection{
		ID:         "dbx",
		Provider:   domain.ProviderDatabricks,
		Credential: domain.CredentialHandle{Source: "token", Value: "dapi"},
		Scope:      domain.Scope{Extra: map[string]string{"host": "https://example.cloud.databricks.com"}},
	})
	assert.ErrorContains(t, err, "http_path")
}
