package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

// Store keeps snapshots, runs and accuracy reports in process memory.
// Snapshots are copied on the way in and out.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
	order     map[string][]string // connection -> run ids, oldest first
	runs      map[string]domain.Run
	reports   map[string][]domain.AccuracyReport
}

func NewStore() *Store {
	return &Store{
		snapshots: make(map[string]domain.Snapshot),
		order:     make(map[string][]string),
		runs:      make(map[string]domain.Run),
		reports:   make(map[string][]domain.AccuracyReport),
	}
}

var (
	_ snapshot.Store         = (*Store)(nil)
	_ snapshot.RunStore      = (*Store)(nil)
	_ snapshot.AccuracyStore = (*Store)(nil)
)

func (s *Store) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snap.RunID]; exists {
		return fmt.Errorf("snapshot for run %s already exists", snap.RunID)
	}
	s.snapshots[snap.RunID] = cloneSnapshot(snap)
	s.order[snap.ConnectionID] = append(s.order[snap.ConnectionID], snap.RunID)
	return nil
}

func (s *Store) Latest(_ context.Context, connectionID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[connectionID]
	if len(ids) == 0 {
		return domain.Snapshot{}, snapshot.ErrNotFound
	}
	return cloneSnapshot(s.snapshots[ids[len(ids)-1]]), nil
}

func (s *Store) Get(_ context.Context, runID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[runID]
	if !ok {
		return domain.Snapshot{}, snapshot.ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

func (s *Store) List(_ context.Context, connectionID string) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[connectionID]
	out := make([]domain.Snapshot, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		head := cloneSnapshot(s.snapshots[ids[i]])
		head.Resources = nil
		out = append(out, head)
	}
	return out, nil
}

func (s *Store) SaveRun(_ context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return domain.Run{}, snapshot.ErrNotFound
	}
	return run, nil
}

func (s *Store) ListRuns(_ context.Context, connectionID string) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Run
	for _, run := range s.runs {
		if run.ConnectionID == connectionID {
			out = append(out, run)
		}
	}
	slices.SortFunc(out, func(a, b domain.Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out, nil
}

func (s *Store) SaveReport(_ context.Context, report domain.AccuracyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.RunID] = append(s.reports[report.RunID], report)
	return nil
}

func (s *Store) ListReports(_ context.Context, runID string) ([]domain.AccuracyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.reports[runID]), nil
}

func cloneSnapshot(s domain.Snapshot) domain.Snapshot {
	out := s
	out.Resources = make([]domain.Resource, len(s.Resources))
	for i, r := range s.Resources {
		r.Attributes = r.Attributes.Clone()
		r.Links = slices.Clone(r.Links)
		r.Cost.Components = slices.Clone(r.Cost.Components)
		out.Resources[i] = r
	}
	out.Totals.ByType = maps.Clone(s.Totals.ByType)
	out.Totals.Counts = maps.Clone(s.Totals.Counts)
	out.UnresolvedLinks = slices.Clone(s.UnresolvedLinks)
	out.MissingPricingRules = slices.Clone(s.MissingPricingRules)
	out.MissingResourceTypes = slices.Clone(s.MissingResourceTypes)
	out.Notes = slices.Clone(s.Notes)
	return out
}
