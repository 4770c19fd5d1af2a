package snapshot

import (
	"context"
	"errors"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

var ErrNotFound = errors.New("snapshot not found")

// Store persists immutable snapshots. Save is atomic: a snapshot is either
// fully visible to readers or not at all.
type Store interface {
	Save(ctx context.Context, s domain.Snapshot) error
	Latest(ctx context.Context, connectionID string) (domain.Snapshot, error)
	Get(ctx context.Context, runID string) (domain.Snapshot, error)
	// List returns snapshots for a connection, newest first, without resources.
	List(ctx context.Context, connectionID string) ([]domain.Snapshot, error)
}

// RunStore keeps the history of sync runs.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.Run) error
	GetRun(ctx context.Context, runID string) (domain.Run, error)
	ListRuns(ctx context.Context, connectionID string) ([]domain.Run, error)
}

// AccuracyStore keeps reconciliation results.
type AccuracyStore interface {
	SaveReport(ctx context.Context, report domain.AccuracyReport) error
	ListReports(ctx context.Context, runID string) ([]domain.AccuracyReport, error)
}
