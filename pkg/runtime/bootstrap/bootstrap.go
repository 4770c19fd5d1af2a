package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
	awsprovider "github.com/de-tools/inventory-atlas/pkg/providers/aws"
	azureprovider "github.com/de-tools/inventory-atlas/pkg/providers/azure"
	dbxprovider "github.com/de-tools/inventory-atlas/pkg/providers/databricks"
	sfprovider "github.com/de-tools/inventory-atlas/pkg/providers/snowflake"
	yandexprovider "github.com/de-tools/inventory-atlas/pkg/providers/yandex"
	"github.com/de-tools/inventory-atlas/pkg/services/accuracy"
	"github.com/de-tools/inventory-atlas/pkg/services/billing"
	"github.com/de-tools/inventory-atlas/pkg/services/billing/awsce"
	azurebilling "github.com/de-tools/inventory-atlas/pkg/services/billing/azure"
	dbxbilling "github.com/de-tools/inventory-atlas/pkg/services/billing/databricks"
	"github.com/de-tools/inventory-atlas/pkg/services/config"
	"github.com/de-tools/inventory-atlas/pkg/services/normalizer"
	"github.com/de-tools/inventory-atlas/pkg/services/workflow"
	"github.com/de-tools/inventory-atlas/pkg/store/duckdb"
	duckdbaccuracy "github.com/de-tools/inventory-atlas/pkg/store/duckdb/accuracy"
	duckdbsnapshot "github.com/de-tools/inventory-atlas/pkg/store/duckdb/snapshot"
	duckdbworkflow "github.com/de-tools/inventory-atlas/pkg/store/duckdb/workflow"
	"github.com/de-tools/inventory-atlas/pkg/store/memory"
	pricingstore "github.com/de-tools/inventory-atlas/pkg/store/pricing"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

// App holds the wired services shared by the CLI and the web server.
type App struct {
	Connections *config.Connections
	Adapters    providers.Registry
	Controller  *workflow.DefaultController
	Snapshots   snapshot.Store
	Runs        snapshot.RunStore
	Reports     snapshot.AccuracyStore
	Reconciler  *accuracy.Service

	db *sql.DB
}

// Stores bundles the three persistence interfaces of one backend.
type Stores struct {
	Snapshots snapshot.Store
	Runs      snapshot.RunStore
	Reports   snapshot.AccuracyStore
}

func NewAdapterRegistry() (providers.Registry, error) {
	registry := providers.NewRegistry()
	for kind, factory := range map[domain.ProviderKind]providers.Factory{
		domain.ProviderAWS:        awsprovider.Factory,
		domain.ProviderAzure:      azureprovider.Factory,
		domain.ProviderDatabricks: dbxprovider.Factory,
		domain.ProviderSnowflake:  sfprovider.Factory,
		domain.ProviderYandex:     yandexprovider.Factory,
	} {
		if err := registry.Register(kind, factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func NewBillingRegistry() (*billing.Registry, error) {
	registry := billing.NewRegistry()
	for kind, factory := range map[domain.ProviderKind]billing.Factory{
		domain.ProviderAWS:        awsce.Factory,
		domain.ProviderAzure:      azurebilling.Factory,
		domain.ProviderDatabricks: dbxbilling.Factory,
	} {
		if err := registry.Register(kind, factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// NewConnections builds the connection set from the config file plus, when
// configured, the profiles of a .databrickscfg file. Explicit connections win
// over profile connections with the same id.
func NewConnections(ctx context.Context, cfg *config.Config) (*config.Connections, error) {
	conns, err := cfg.ConnectionSet()
	if err != nil {
		return nil, err
	}
	if cfg.DatabricksConfig == "" {
		return conns, nil
	}

	profiles, err := config.ProfileConnections(cfg.DatabricksConfig)
	if err != nil {
		return nil, err
	}
	for _, conn := range profiles {
		if _, exists := conns.Connection(conn.ID); exists {
			zerolog.Ctx(ctx).Debug().Str("connection", conn.ID).Msg("profile shadowed by configured connection")
			continue
		}
		if err := conns.Add(conn); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

func openStores(cfg config.StoreConfig) (Stores, *sql.DB, error) {
	if cfg.Driver == "memory" {
		store := memory.NewStore()
		return Stores{Snapshots: store, Runs: store, Reports: store}, nil, nil
	}

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: cfg.Path})
	if err != nil {
		return Stores{}, nil, fmt.Errorf("failed to create DuckDB instance: %w", err)
	}

	snapshots, err := duckdbsnapshot.NewStore(db)
	if err != nil {
		return Stores{}, nil, errors.Join(fmt.Errorf("failed to create snapshot store: %w", err), db.Close())
	}
	runs, err := duckdbworkflow.NewStore(db)
	if err != nil {
		return Stores{}, nil, errors.Join(fmt.Errorf("failed to create workflow store: %w", err), db.Close())
	}
	reports, err := duckdbaccuracy.NewStore(db)
	if err != nil {
		return Stores{}, nil, errors.Join(fmt.Errorf("failed to create accuracy store: %w", err), db.Close())
	}
	return Stores{Snapshots: snapshots, Runs: runs, Reports: reports}, db, nil
}

// New wires every service from a validated config. Runs left unfinished by
// a previous process are marked failed before New returns.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conns, err := NewConnections(ctx, cfg)
	if err != nil {
		return nil, err
	}
	adapters, err := NewAdapterRegistry()
	if err != nil {
		return nil, err
	}
	bills, err := NewBillingRegistry()
	if err != nil {
		return nil, err
	}
	stores, db, err := openStores(cfg.Store)
	if err != nil {
		return nil, err
	}

	app := Assemble(conns, adapters, bills, pricingstore.NewFileStore(cfg.Pricing.Path), stores)
	app.db = db

	if err := app.Controller.Init(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize workflow controller: %w", err), app.Close())
	}
	return app, nil
}

// Assemble wires already constructed parts.
func Assemble(
	conns *config.Connections,
	adapters providers.Registry,
	bills accuracy.BillFetcher,
	pricing pricingstore.Store,
	stores Stores,
) *App {
	quotas := providers.NewQuotas()
	for _, conn := range conns.Connections() {
		quotas.For(conn.Provider, conn.Limits)
	}

	ctrl := workflow.NewController(conns, workflow.Dependencies{
		Adapters:   adapters,
		Normalizer: normalizer.New(),
		Pricing:    pricing,
		Snapshots:  stores.Snapshots,
		Runs:       stores.Runs,
		Quotas:     quotas,
	})

	return &App{
		Connections: conns,
		Adapters:    adapters,
		Controller:  ctrl,
		Snapshots:   stores.Snapshots,
		Runs:        stores.Runs,
		Reports:     stores.Reports,
		Reconciler:  accuracy.NewService(stores.Snapshots, stores.Reports, conns, bills),
	}
}

// ResourceTypes lists the types a sync of the connection would discover:
// the connection's own restriction, or everything its adapter supports.
func (a *App) ResourceTypes(ctx context.Context, connectionID string) ([]domain.ResourceType, error) {
	conn, ok := a.Connections.Connection(connectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connectionID)
	}
	if len(conn.ResourceTypes) > 0 {
		return conn.ResourceTypes, nil
	}
	adapter, err := a.Adapters.Create(ctx, conn)
	if err != nil {
		return nil, err
	}
	return adapter.ResourceTypes(), nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
