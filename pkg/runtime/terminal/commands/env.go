package commands

import (
	"context"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/inventory-atlas/pkg/services/workflow"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

type Reconciler interface {
	Reconcile(ctx context.Context, runID string, bill domain.ActualBill) (domain.AccuracyReport, error)
	ReconcileFromProvider(ctx context.Context, runID string, period domain.TimePeriod) (domain.AccuracyReport, error)
}

type TypeLister interface {
	ResourceTypes(ctx context.Context, connectionID string) ([]domain.ResourceType, error)
}

// Backend is what the commands operate on.
type Backend struct {
	Controller workflow.Controller
	Snapshots  snapshot.Store
	Reconciler Reconciler
	Types      TypeLister
}

// Env is filled in by the root command before a subcommand runs.
type Env struct {
	Backend  Backend
	Reporter export.Reporter
}
