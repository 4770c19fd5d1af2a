package accuracy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/models/store"
	"github.com/de-tools/inventory-atlas/pkg/store/duckdb"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

type reportStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (snapshot.AccuracyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &reportStore{db: db}, nil
}

func (s *reportStore) SaveReport(ctx context.Context, report domain.AccuracyReport) error {
	row := adapters.MapAccuracyDomainToStore(report)
	byType, err := json.Marshal(row.ByType)
	if err != nil {
		return fmt.Errorf("marshal by_type: %w", err)
	}

	query := `
		INSERT INTO accuracy_reports (
			run_id, connection_id, estimated, actual, gap, accuracy_percent,
			by_type, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		row.RunID,
		row.ConnectionID,
		row.Estimated,
		row.Actual,
		row.Gap,
		row.AccuracyPercent,
		string(byType),
		row.Source,
		row.CreatedAt,
	}

	if tx := duckdb.GetTransaction(ctx); tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("insert accuracy report: %w", err)
	}
	return nil
}

func (s *reportStore) ListReports(ctx context.Context, runID string) ([]domain.AccuracyReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, connection_id, estimated, actual, gap, accuracy_percent, by_type, source, created_at
		FROM accuracy_reports
		WHERE run_id = ?
		ORDER BY created_at DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query accuracy reports: %w", err)
	}
	defer rows.Close()

	reports := make([]domain.AccuracyReport, 0)
	for rows.Next() {
		var (
			row       store.AccuracyReport
			byType    []byte
			createdAt time.Time
		)
		if err := rows.Scan(&row.RunID, &row.ConnectionID, &row.Estimated, &row.Actual, &row.Gap,
			&row.AccuracyPercent, &byType, &row.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan accuracy report: %w", err)
		}
		row.CreatedAt = createdAt
		if len(byType) > 0 {
			if err := json.Unmarshal(byType, &row.ByType); err != nil {
				return nil, fmt.Errorf("accuracy report %s by_type: %w", row.RunID, err)
			}
		}
		report, err := adapters.MapStoreAccuracyToDomain(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
