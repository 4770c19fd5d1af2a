package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const SnapshotsSchema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		run_id VARCHAR PRIMARY KEY,
		connection_id VARCHAR NOT NULL,
		provider VARCHAR NOT NULL,
		pricing_version VARCHAR NOT NULL,
		currency VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		grand_total VARCHAR NOT NULL,
		resource_count INTEGER NOT NULL,
		totals VARCHAR,
		unresolved_links VARCHAR,
		missing_pricing_rules VARCHAR,
		missing_resource_types VARCHAR,
		notes VARCHAR
	);
`

const SnapshotResourcesSchema = `
	CREATE TABLE IF NOT EXISTS snapshot_resources (
		run_id VARCHAR NOT NULL,
		position INTEGER NOT NULL,
		resource_type VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		provider VARCHAR NOT NULL,
		scope VARCHAR,
		name VARCHAR,
		attributes VARCHAR,
		extensions VARCHAR,
		links VARCHAR,
		cost VARCHAR,
		PRIMARY KEY (run_id, resource_type, id)
	);
`

const SyncRunsSchema = `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id VARCHAR PRIMARY KEY,
		connection_id VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NULL,
		error_code VARCHAR NULL,
		error VARCHAR NULL,
		delta VARCHAR NULL
	);
`

const AccuracyReportsSchema = `
	CREATE TABLE IF NOT EXISTS accuracy_reports (
		run_id VARCHAR NOT NULL,
		connection_id VARCHAR NOT NULL,
		estimated VARCHAR NOT NULL,
		actual VARCHAR NOT NULL,
		gap VARCHAR NOT NULL,
		accuracy_percent VARCHAR NOT NULL,
		by_type VARCHAR,
		source VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
`

var bootQueries = []string{
	SnapshotsSchema,
	SnapshotResourcesSchema,
	SyncRunsSchema,
	AccuracyReportsSchema,
}

type Settings struct {
	DbPath string `mapstructure:"path" validate:"required"`
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}

type txKey struct{}

// WithTransaction makes stores called with ctx join tx instead of opening
// their own.
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// InTransaction runs fn inside the transaction carried by ctx, or inside a
// new one that is committed when fn succeeds.
func InTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(WithTransaction(ctx, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
