package accuracy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

const SourceManual = "manual"

type Connections interface {
	Connection(id string) (domain.Connection, bool)
}

// BillFetcher reads an actual daily bill from a provider billing API.
type BillFetcher interface {
	Fetch(ctx context.Context, conn domain.Connection, period domain.TimePeriod) (domain.ActualBill, error)
}

// Service reconciles persisted snapshots against actual bills. It only reads
// snapshots; it never starts discovery.
type Service struct {
	snapshots   snapshot.Store
	reports     snapshot.AccuracyStore
	connections Connections
	bills       BillFetcher
	now         func() time.Time
}

func NewService(
	snapshots snapshot.Store,
	reports snapshot.AccuracyStore,
	connections Connections,
	bills BillFetcher,
) *Service {
	return &Service{
		snapshots:   snapshots,
		reports:     reports,
		connections: connections,
		bills:       bills,
		now:         time.Now,
	}
}

// Reconcile compares the snapshot of runID with a bill supplied by the caller.
func (s *Service) Reconcile(ctx context.Context, runID string, bill domain.ActualBill) (domain.AccuracyReport, error) {
	snap, err := s.snapshots.Get(ctx, runID)
	if err != nil {
		return domain.AccuracyReport{}, fmt.Errorf("failed to load snapshot %s: %w", runID, err)
	}
	if bill.Source == "" {
		bill.Source = SourceManual
	}
	if bill.Currency == "" {
		bill.Currency = snap.Currency
	}
	if bill.Period == (domain.TimePeriod{}) {
		bill.Period = DefaultPeriod(snap)
	}
	return s.reconcile(ctx, snap, bill)
}

// ReconcileFromProvider fetches the actual bill for period from the billing
// API of the snapshot's connection. A zero period means the day before the
// snapshot was taken.
func (s *Service) ReconcileFromProvider(ctx context.Context, runID string, period domain.TimePeriod) (domain.AccuracyReport, error) {
	if s.bills == nil || s.connections == nil {
		return domain.AccuracyReport{}, fmt.Errorf("provider billing is not configured")
	}

	snap, err := s.snapshots.Get(ctx, runID)
	if err != nil {
		return domain.AccuracyReport{}, fmt.Errorf("failed to load snapshot %s: %w", runID, err)
	}
	conn, ok := s.connections.Connection(snap.ConnectionID)
	if !ok {
		return domain.AccuracyReport{}, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, snap.ConnectionID)
	}
	if period == (domain.TimePeriod{}) {
		period = DefaultPeriod(snap)
	}

	bill, err := s.bills.Fetch(ctx, conn, period)
	if err != nil {
		return domain.AccuracyReport{}, fmt.Errorf("failed to fetch actual bill: %w", err)
	}
	return s.reconcile(ctx, snap, bill)
}

func (s *Service) Reports(ctx context.Context, runID string) ([]domain.AccuracyReport, error) {
	if s.reports == nil {
		return nil, nil
	}
	return s.reports.ListReports(ctx, runID)
}

func (s *Service) reconcile(ctx context.Context, snap domain.Snapshot, bill domain.ActualBill) (domain.AccuracyReport, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", snap.RunID).
		Str("connection", snap.ConnectionID).
		Str("source", bill.Source).
		Logger()

	report, err := Reconcile(snap, bill)
	if err != nil {
		return domain.AccuracyReport{}, err
	}
	report.CreatedAt = s.now().UTC()

	if s.reports != nil {
		if err := s.reports.SaveReport(ctx, report); err != nil {
			return domain.AccuracyReport{}, fmt.Errorf("failed to save accuracy report: %w", err)
		}
	}

	logger.Info().
		Str("estimated", report.Estimated.String()).
		Str("actual", report.Actual.String()).
		Str("accuracy", report.AccuracyPercent.StringFixed(percentPlaces)).
		Msg("snapshot reconciled")
	return report, nil
}

// DefaultPeriod is the whole UTC day preceding the snapshot.
func DefaultPeriod(snap domain.Snapshot) domain.TimePeriod {
	end := snap.CreatedAt.UTC().Truncate(24 * time.Hour)
	return domain.TimePeriod{Start: end.AddDate(0, 0, -1), End: end}
}
