package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/models/store"
	"github.com/de-tools/inventory-atlas/pkg/store/duckdb"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

type snapshotStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (snapshot.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &snapshotStore{db: db}, nil
}

const insertSnapshot = `
	INSERT INTO snapshots (
		run_id, connection_id, provider, pricing_version, currency, created_at,
		grand_total, resource_count, totals, unresolved_links, missing_pricing_rules,
		missing_resource_types, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertResource = `
	INSERT INTO snapshot_resources (
		run_id, position, resource_type, id, provider, scope, name,
		attributes, extensions, links, cost
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectSnapshotColumns = `
	SELECT run_id, connection_id, provider, pricing_version, currency, created_at,
		grand_total, totals, unresolved_links, missing_pricing_rules,
		missing_resource_types, notes
	FROM snapshots`

func (s *snapshotStore) Save(ctx context.Context, snap domain.Snapshot) error {
	row := adapters.MapSnapshotDomainToStore(snap)

	return duckdb.InTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		header, err := marshalAll(row.Totals, row.UnresolvedLinks, row.MissingPricingRules, row.MissingResourceTypes, row.Notes)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertSnapshot,
			row.RunID,
			row.ConnectionID,
			row.Provider,
			row.PricingVersion,
			row.Currency,
			row.CreatedAt,
			row.Grand,
			len(row.Resources),
			header[0], header[1], header[2], header[3], header[4],
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		if len(row.Resources) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, insertResource)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, r := range row.Resources {
			cols, err := marshalAll(r.Attributes, r.Extensions, r.Links, r.Cost)
			if err != nil {
				return fmt.Errorf("resource %s/%s: %w", r.ResourceType, r.ID, err)
			}
			_, err = stmt.ExecContext(ctx,
				row.RunID, i, r.ResourceType, r.ID, r.Provider, r.Scope, r.Name,
				cols[0], cols[1], cols[2], cols[3],
			)
			if err != nil {
				return fmt.Errorf("insert resource %s/%s: %w", r.ResourceType, r.ID, err)
			}
		}

		zerolog.Ctx(ctx).Debug().
			Str("run_id", row.RunID).
			Int("resources", len(row.Resources)).
			Msg("snapshot saved")
		return nil
	})
}

func (s *snapshotStore) Latest(ctx context.Context, connectionID string) (domain.Snapshot, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM snapshots WHERE connection_id = ? ORDER BY created_at DESC, run_id DESC LIMIT 1`,
		connectionID,
	).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, snapshot.ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	return s.Get(ctx, runID)
}

func (s *snapshotStore) Get(ctx context.Context, runID string) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, selectSnapshotColumns+` WHERE run_id = ?`, runID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	headers, err := scanHeaders(rows)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(headers) == 0 {
		return domain.Snapshot{}, snapshot.ErrNotFound
	}

	row := headers[0]
	row.Resources, err = s.resources(ctx, runID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return adapters.MapStoreSnapshotToDomain(row)
}

func (s *snapshotStore) List(ctx context.Context, connectionID string) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSnapshotColumns+` WHERE connection_id = ? ORDER BY created_at DESC, run_id DESC`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	headers, err := scanHeaders(rows)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Snapshot, 0, len(headers))
	for _, h := range headers {
		snap, err := adapters.MapStoreSnapshotToDomain(h)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *snapshotStore) resources(ctx context.Context, runID string) ([]store.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_type, id, provider, scope, name, attributes, extensions, links, cost
		FROM snapshot_resources
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot resources: %w", err)
	}
	defer rows.Close()

	var out []store.Resource
	for rows.Next() {
		var (
			r                                 store.Resource
			scope, name                       sql.NullString
			attrs, extensions, links, costRaw []byte
		)
		if err := rows.Scan(&r.ResourceType, &r.ID, &r.Provider, &scope, &name, &attrs, &extensions, &links, &costRaw); err != nil {
			return nil, fmt.Errorf("scan snapshot resource: %w", err)
		}
		r.Scope, r.Name = scope.String, name.String
		if err := unmarshalAll(
			target{attrs, &r.Attributes},
			target{extensions, &r.Extensions},
			target{links, &r.Links},
			target{costRaw, &r.Cost},
		); err != nil {
			return nil, fmt.Errorf("resource %s/%s: %w", r.ResourceType, r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanHeaders(rows *sql.Rows) ([]store.Snapshot, error) {
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		var (
			h                                     store.Snapshot
			totals, links, rules, failures, notes []byte
		)
		if err := rows.Scan(
			&h.RunID, &h.ConnectionID, &h.Provider, &h.PricingVersion, &h.Currency, &h.CreatedAt,
			&h.Grand, &totals, &links, &rules, &failures, &notes,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := unmarshalAll(
			target{totals, &h.Totals},
			target{links, &h.UnresolvedLinks},
			target{rules, &h.MissingPricingRules},
			target{failures, &h.MissingResourceTypes},
			target{notes, &h.Notes},
		); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", h.RunID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func marshalAll(values ...any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal column: %w", err)
		}
		out[i] = string(raw)
	}
	return out, nil
}

type target struct {
	raw []byte
	dst any
}

func unmarshalAll(targets ...target) error {
	for _, t := range targets {
		if len(t.raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(t.raw))
		dec.UseNumber()
		if err := dec.Decode(t.dst); err != nil {
			return fmt.Errorf("unmarshal column: %w", err)
		}
	}
	return nil
}
