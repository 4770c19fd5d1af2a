package snapshot

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

var createdAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (snapshot.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	require.NoError(t, err)
	return s, mock
}

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		RunID:          "run-1",
		ConnectionID:   "prod",
		Provider:       domain.ProviderYandex,
		PricingVersion: "v1",
		Currency:       "USD",
		CreatedAt:      createdAt,
		Resources: []domain.Resource{
			{
				ID:         "D1",
				Provider:   domain.ProviderYandex,
				Type:       domain.ResourceBlockVolume,
				Scope:      "f-1",
				Name:       "disk",
				Attributes: domain.Attributes{domain.AttrStorageBytes: decimal.NewFromInt(20 << 30)},
				Cost: domain.CostLineItem{
					Components: []domain.CostComponent{{
						Unit:     domain.UnitStorageGB,
						Quantity: decimal.NewFromInt(20),
						Rate:     decimal.RequireFromString("0.1"),
						Subtotal: decimal.NewFromInt(2),
					}},
					Surcharges: decimal.Zero,
					Total:      decimal.NewFromInt(2),
					Currency:   "USD",
				},
			},
		},
		Totals: domain.Totals{
			ByType: map[domain.ResourceType]decimal.Decimal{domain.ResourceBlockVolume: decimal.NewFromInt(2)},
			Counts: map[domain.ResourceType]int{domain.ResourceBlockVolume: 1},
			Grand:  decimal.NewFromInt(2),
		},
	}
}

func TestNewStore_NilDB(t *testing.T) {
	s, err := NewStore(nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestSave(t *testing.T) {
	t.Run("single transaction", func(t *testing.T) {
		s, mock := setup(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO snapshots").
			WithArgs("run-1", "prod", "yandex", "v1", "USD", createdAt, "2", 1,
				`[{"type":"block_volume","count":1,"total":"2"}]`, "null", "null", "null", "null").
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep := mock.ExpectPrepare("INSERT INTO snapshot_resources")
		prep.ExpectExec().
			WithArgs("run-1", 0, "block_volume", "D1", "yandex", "f-1", "disk",
				`{"storage_bytes":"21474836480"}`, "null", "[]", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.Save(context.Background(), testSnapshot()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when a resource fails", func(t *testing.T) {
		s, mock := setup(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectPrepare("INSERT INTO snapshot_resources").
			ExpectExec().
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := s.Save(context.Background(), testSnapshot())
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func headerColumns() []string {
	return []string{"run_id", "connection_id", "provider", "pricing_version", "currency", "created_at",
		"grand_total", "totals", "unresolved_links", "missing_pricing_rules", "missing_resource_types", "notes"}
}

func TestLatest(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := setup(t)

		mock.ExpectQuery("SELECT run_id FROM snapshots WHERE connection_id").
			WithArgs("prod").
			WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow("run-1"))
		mock.ExpectQuery("FROM snapshots WHERE run_id").
			WithArgs("run-1").
			WillReturnRows(sqlmock.NewRows(headerColumns()).AddRow(
				"run-1", "prod", "yandex", "v1", "USD", createdAt, "2",
				`[{"type":"block_volume","count":1,"total":"2"}]`,
				`[{"source_type":"compute_instance","source_id":"I1","attribute":"storage_bytes","target_type":"block_volume","target_id":"D9"}]`,
				nil, nil, nil,
			))
		mock.ExpectQuery("FROM snapshot_resources").
			WithArgs("run-1").
			WillReturnRows(sqlmock.NewRows([]string{"resource_type", "id", "provider", "scope", "name", "attributes", "extensions", "links", "cost"}).
				AddRow("block_volume", "D1", "yandex", "f-1", "disk",
					`{"storage_bytes":"21474836480"}`, `{"typeId":"network-ssd"}`, `[]`,
					`{"components":[{"unit":"storage_gb","quantity":"20","rate":"0.1","subtotal":"2"}],"surcharges":"0","total":"2","currency":"USD","rule_missing":false}`))

		got, err := s.Latest(context.Background(), "prod")
		require.NoError(t, err)

		assert.Equal(t, "run-1", got.RunID)
		require.Len(t, got.Resources, 1)
		assert.True(t, got.Resources[0].Attributes.Decimal(domain.AttrStorageBytes).Equal(decimal.NewFromInt(20<<30)))
		assert.Equal(t, "network-ssd", got.Resources[0].Extensions["typeId"])
		assert.True(t, got.Resources[0].Cost.Total.Equal(decimal.NewFromInt(2)))
		require.Len(t, got.UnresolvedLinks, 1)
		assert.Equal(t, "D9", got.UnresolvedLinks[0].TargetID)
		assert.True(t, got.Totals.Grand.Equal(decimal.NewFromInt(2)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none", func(t *testing.T) {
		s, mock := setup(t)

		mock.ExpectQuery("SELECT run_id FROM snapshots").
			WithArgs("prod").
			WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

		_, err := s.Latest(context.Background(), "prod")
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})
}

func TestGet_NotFound(t *testing.T) {
	s, mock := setup(t)

	mock.ExpectQuery("FROM snapshots WHERE run_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(headerColumns()))

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	s, mock := setup(t)

	mock.ExpectQuery("FROM snapshots WHERE connection_id = \\? ORDER BY created_at DESC").
		WithArgs("prod").
		WillReturnRows(sqlmock.NewRows(headerColumns()).
			AddRow("run-2", "prod", "yandex", "v1", "USD", createdAt.Add(time.Hour), "3", nil, nil, nil, nil, nil).
			AddRow("run-1", "prod", "yandex", "v1", "USD", createdAt, "2", nil, nil, nil, nil, nil))

	list, err := s.List(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].RunID)
	assert.Empty(t, list[0].Resources)
	assert.True(t, list[1].Totals.Grand.Equal(decimal.NewFromInt(2)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
