package workflow

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
	"github.com/de-tools/inventory-atlas/pkg/services/normalizer"
	"github.com/de-tools/inventory-atlas/pkg/services/pricing"
	"github.com/de-tools/inventory-atlas/pkg/services/resolver"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
	pricingstore "github.com/de-tools/inventory-atlas/pkg/store/pricing"
)

const (
	CodeCancelled = "cancelled"
	CodeInternal  = "internal_error"

	NoteMalformedEntry = "malformed_entry"
	NoteDuplicate      = "duplicate_resource"
)

// Dependencies are shared by every run; none of them hold per-run state.
type Dependencies struct {
	Adapters   providers.Registry
	Normalizer *normalizer.Normalizer
	Pricing    pricingstore.Store
	Snapshots  snapshot.Store
	Runs       snapshot.RunStore

	// Quotas, when set, shares request budgets between runs of the same
	// provider kind.
	Quotas *providers.Quotas
}

type Result struct {
	Run      domain.Run
	Snapshot *domain.Snapshot
	Err      error
}

// Runner executes one sync run for one connection.
type Runner struct {
	conn domain.Connection
	deps Dependencies
	now  func() time.Time

	mu  sync.Mutex
	run domain.Run
}

func NewRunner(run domain.Run, conn domain.Connection, deps Dependencies) *Runner {
	return &Runner{
		conn: conn,
		deps: deps,
		now:  time.Now,
		run:  run,
	}
}

// Current returns the run record as it is now.
func (r *Runner) Current() domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

// Run authenticates, collects every resource type, then normalizes, resolves
// and prices the result and saves it as one snapshot. Only an authentication
// failure or cancellation stops a run; a cancelled run saves no snapshot.
func (r *Runner) Run(ctx context.Context) Result {
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", r.run.ID).
		Str("connection", r.conn.ID).
		Logger()
	ctx = logger.WithContext(ctx)

	r.setStatus(ctx, func(run *domain.Run) {
		run.Status = domain.RunStatusRunning
	})
	logger.Info().Msg("sync run started")

	snap, delta, err := r.execute(ctx)

	finishedAt := r.now().UTC()
	r.setStatus(ctx, func(run *domain.Run) {
		run.FinishedAt = &finishedAt
		switch {
		case err == nil:
			run.Status = domain.RunStatusFinished
			run.Delta = &delta
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			run.Status = domain.RunStatusCancelled
			run.ErrorCode = CodeCancelled
			run.Error = errorMessage(err)
		default:
			run.Status = domain.RunStatusFailed
			run.ErrorCode = errorCode(err)
			run.Error = errorMessage(err)
		}
	})

	result := Result{Run: r.Current(), Err: err}
	if err != nil {
		logger.Error().Err(err).Str("status", string(result.Run.Status)).Msg("sync run did not complete")
		return result
	}

	result.Snapshot = &snap
	logger.Info().
		Int("resources", len(snap.Resources)).
		Str("grand_total", snap.Totals.Grand.String()).
		Int("added", len(delta.Added)).
		Int("removed", len(delta.Removed)).
		Int("cost_changed", len(delta.CostChanged)).
		Msg("sync run finished")
	return result
}

func (r *Runner) execute(ctx context.Context) (domain.Snapshot, domain.Delta, error) {
	logger := zerolog.Ctx(ctx)

	table, err := r.deps.Pricing.Load(ctx)
	if err != nil {
		return domain.Snapshot{}, domain.Delta{}, fmt.Errorf("failed to load pricing table: %w", err)
	}

	adapter, err := r.deps.Adapters.Create(ctx, r.conn)
	if err != nil {
		return domain.Snapshot{}, domain.Delta{}, fmt.Errorf("failed to create adapter: %w", err)
	}
	var opts []providers.ClientOption
	if r.deps.Quotas != nil {
		opts = append(opts, providers.WithQuota(r.deps.Quotas.For(r.conn.Provider, r.conn.Limits)))
	}
	client := providers.NewClient(adapter, r.conn, opts...)
	if _, err := client.Authenticate(ctx); err != nil {
		return domain.Snapshot{}, domain.Delta{}, err
	}

	types := r.conn.ResourceTypes
	if len(types) == 0 {
		types = adapter.ResourceTypes()
	}

	listings, err := r.collect(ctx, client, types)
	if err != nil {
		return domain.Snapshot{}, domain.Delta{}, err
	}

	resources, failures, notes := r.normalize(ctx, listings)

	resolved, dangling, err := resolver.Resolve(ctx, resolver.NewIndex(r.conn.Provider, resources))
	if err != nil {
		return domain.Snapshot{}, domain.Delta{}, err
	}
	resolver.SortDangling(dangling)

	totals, missing := pricing.NewEngine(table).PriceAll(resolved)
	sortResources(resolved)

	snap := domain.Snapshot{
		RunID:                r.run.ID,
		ConnectionID:         r.conn.ID,
		Provider:             r.conn.Provider,
		PricingVersion:       table.Version,
		Currency:             table.Currency,
		CreatedAt:            r.now().UTC(),
		Resources:            resolved,
		Totals:               totals,
		UnresolvedLinks:      dangling,
		MissingPricingRules:  missing,
		MissingResourceTypes: failures,
		Notes:                notes,
	}

	prev, err := r.deps.Snapshots.Latest(ctx, r.conn.ID)
	if err != nil && !errors.Is(err, snapshot.ErrNotFound) {
		return domain.Snapshot{}, domain.Delta{}, fmt.Errorf("failed to load previous snapshot: %w", err)
	}
	delta := Diff(prev, snap)

	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, domain.Delta{}, err
	}
	if err := r.deps.Snapshots.Save(ctx, snap); err != nil {
		return domain.Snapshot{}, domain.Delta{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	logger.Debug().
		Int("unresolved_links", len(dangling)).
		Int("missing_rules", len(missing)).
		Int("missing_types", len(failures)).
		Msg("snapshot saved")
	return snap, delta, nil
}

// collect lists every resource type concurrently. The client bounds how many
// calls reach the provider at once; an authentication failure cancels the
// remaining listings.
func (r *Runner) collect(ctx context.Context, client *providers.Client, types []domain.ResourceType) ([]providers.Listing, error) {
	listings := make([]providers.Listing, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			listing, err := client.Collect(gctx, r.conn.Scope, t)
			if err != nil {
				return fmt.Errorf("failed to collect %s: %w", t, err)
			}
			listings[i] = listing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return listings, nil
}

// normalize converts listings into resources. Malformed entries and
// collapsed duplicates become notes; unavailable types become failures.
func (r *Runner) normalize(ctx context.Context, listings []providers.Listing) ([]domain.Resource, []domain.TypeFailure, []domain.Note) {
	logger := zerolog.Ctx(ctx)

	var (
		resources []domain.Resource
		failures  []domain.TypeFailure
		notes     []domain.Note
	)
	positions := make(map[domain.ResourceKey]int)

	for _, listing := range listings {
		if listing.Outcome == providers.OutcomeUnsupported {
			failure := domain.TypeFailure{Type: listing.Type, Code: string(providers.CategoryUnavailable)}
			if listing.Reason != nil {
				failure.Reason = listing.Reason.Error()
			}
			logger.Warn().Str("resource_type", string(listing.Type)).Str("reason", failure.Reason).Msg("resource type unavailable")
			failures = append(failures, failure)
			continue
		}

		for _, entry := range listing.Entries {
			res, err := r.deps.Normalizer.Normalize(r.conn.Provider, listing.Type, entry)
			if err != nil {
				notes = append(notes, domain.Note{Code: NoteMalformedEntry, Type: listing.Type, Message: err.Error()})
				continue
			}

			key := domain.ResourceKey{Type: res.Type, ID: resolver.CanonicalID(r.conn.Provider, res.ID)}
			if pos, dup := positions[key]; dup {
				notes = append(notes, domain.Note{
					Code:    NoteDuplicate,
					Type:    res.Type,
					Message: fmt.Sprintf("resource %s listed more than once", res.ID),
				})
				resources[pos] = res
				continue
			}
			positions[key] = len(resources)
			resources = append(resources, res)
		}
	}

	slices.SortFunc(failures, func(a, b domain.TypeFailure) int {
		return cmp.Compare(a.Type, b.Type)
	})
	slices.SortFunc(notes, func(a, b domain.Note) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.Code, b.Code), cmp.Compare(a.Message, b.Message))
	})
	return resources, failures, notes
}

func (r *Runner) setStatus(ctx context.Context, fn func(run *domain.Run)) {
	r.mu.Lock()
	fn(&r.run)
	run := r.run
	r.mu.Unlock()

	if err := r.deps.Runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("status", string(run.Status)).Msg("failed to save run state")
	}
}

func sortResources(resources []domain.Resource) {
	slices.SortFunc(resources, func(a, b domain.Resource) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
	})
}

func errorCode(err error) string {
	if c := providers.CategoryOf(err); c != "" {
		return string(c)
	}
	return CodeInternal
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
