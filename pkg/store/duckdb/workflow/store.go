package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/models/store"
	"github.com/de-tools/inventory-atlas/pkg/store/duckdb"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

type defaultStore struct {
	db *sql.DB
}

// NewStore returns a run history store backed by the sync_runs table.
func NewStore(db *sql.DB) (snapshot.RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{
		db: db,
	}, nil
}

func (s *defaultStore) SaveRun(ctx context.Context, run domain.Run) error {
	row := adapters.MapRunDomainToStore(run)

	var delta *string
	if row.Delta != nil {
		raw, err := json.Marshal(row.Delta)
		if err != nil {
			return fmt.Errorf("marshal delta: %w", err)
		}
		d := string(raw)
		delta = &d
	}

	query := `
		INSERT OR REPLACE INTO sync_runs (
			id, connection_id, status, started_at, finished_at, error_code, error, delta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{row.ID, row.ConnectionID, row.Status, row.StartedAt, row.FinishedAt, row.ErrorCode, row.Error, delta}

	var err error
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

const selectRuns = `
	SELECT id, connection_id, status, started_at, finished_at, error_code, error, delta
	FROM sync_runs`

func (s *defaultStore) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE id = ?`, runID)
	if err != nil {
		return domain.Run{}, fmt.Errorf("query run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return domain.Run{}, err
	}
	if len(runs) == 0 {
		return domain.Run{}, snapshot.ErrNotFound
	}
	return runs[0], nil
}

func (s *defaultStore) ListRuns(ctx context.Context, connectionID string) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE connection_id = ? ORDER BY started_at DESC`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]domain.Run, error) {
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		var (
			row              store.Run
			finishedAt       sql.NullTime
			errorCode, cause sql.NullString
			delta            []byte
		)
		if err := rows.Scan(&row.ID, &row.ConnectionID, &row.Status, &row.StartedAt, &finishedAt, &errorCode, &cause, &delta); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			row.FinishedAt = &t
		}
		if errorCode.Valid {
			row.ErrorCode = &errorCode.String
		}
		if cause.Valid {
			row.Error = &cause.String
		}
		if len(delta) > 0 {
			row.Delta = &store.Delta{}
			if err := json.Unmarshal(delta, row.Delta); err != nil {
				return nil, fmt.Errorf("run %s delta: %w", row.ID, err)
			}
		}

		run, err := adapters.MapStoreRunToDomain(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
