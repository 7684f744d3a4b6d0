// Package store persists the trait catalog, fingerprint profiles and browser
// records. Store is backed by PostgreSQL through pgx; Memory keeps everything
// in process for single-shot CLI runs and tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// BrowserRecord binds a logical browser id to its fingerprint profile and an
// optional proxy.
type BrowserRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	ProfileID string         `json:"profileId"`
	Proxy     *schemas.Proxy `json:"proxy,omitempty"`
}

// Repository is implemented by Store and Memory.
type Repository interface {
	EnsureSchema(ctx context.Context) error
	SeedCatalog(ctx context.Context, snap catalog.Snapshot) (int, error)
	LoadCatalog(ctx context.Context) (catalog.Snapshot, error)

	GetProfile(ctx context.Context, id string) (*fingerprint.Profile, error)
	SaveProfile(ctx context.Context, p *fingerprint.Profile) (string, error)
	DeleteProfile(ctx context.Context, id string) error

	GetBrowser(ctx context.Context, id string) (*BrowserRecord, error)
	SaveBrowser(ctx context.Context, b *BrowserRecord) (string, error)
	ListBrowsers(ctx context.Context) ([]BrowserRecord, error)

	ProfileForBrowser(ctx context.Context, browserID string) (*fingerprint.Profile, error)
	ProxyFor(ctx context.Context, browserID string) (*schemas.Proxy, error)
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*Memory)(nil)
)

// Store provides a PostgreSQL implementation of the Repository interface.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// EnsureSchema creates missing tables and columns and backfills legacy rows.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Database schema is up to date.")
	return nil
}

func (s *Store) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.log.Error("Failed to rollback transaction", zap.Error(err))
	}
}

const (
	sqlInsertCategory = `
        INSERT INTO trait_categories (name, display_order)
        VALUES ($1, $2)
        ON CONFLICT (name) DO NOTHING;`
	sqlInsertDefinition = `
        INSERT INTO trait_definitions (key, display_name, category, value_type, default_value, constraints, dependencies, conflicts)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (key) DO NOTHING;`
	sqlInsertOption = `
        INSERT INTO trait_options (definition_key, value, weight, region, vendor, device_class, os)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT DO NOTHING;`
	sqlInsertPreset = `
        INSERT INTO trait_presets (name, items)
        VALUES ($1, $2)
        ON CONFLICT (name) DO NOTHING;`
)

// SeedCatalog inserts every row of snap that the database does not already
// hold, matched by natural key. Existing rows are left untouched, so seeding
// is idempotent. It returns the number of rows added.
func (s *Store) SeedCatalog(ctx context.Context, snap catalog.Snapshot) (int, error) {
	snap.Backfill()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	added := 0
	exec := func(what, sql string, args ...any) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", what, err)
		}
		added += int(tag.RowsAffected())
		return nil
	}

	for _, c := range snap.Categories {
		if err := exec("category "+c.Name, sqlInsertCategory, c.Name, c.DisplayOrder); err != nil {
			return 0, err
		}
	}
	for _, d := range snap.Definitions {
		args, err := definitionArgs(d)
		if err != nil {
			return 0, err
		}
		if err := exec("definition "+d.Key, sqlInsertDefinition, args...); err != nil {
			return 0, err
		}
	}
	for _, o := range snap.Options {
		value, err := json.Marshal(o.Value)
		if err != nil {
			return 0, fmt.Errorf("failed to encode option for %s: %w", o.DefinitionKey, err)
		}
		if err := exec("option for "+o.DefinitionKey, sqlInsertOption,
			o.DefinitionKey, string(value), o.Weight, o.Region, o.Vendor, o.DeviceClass, o.OS); err != nil {
			return 0, err
		}
	}
	for _, p := range snap.Presets {
		items, err := json.Marshal(p.Items)
		if err != nil {
			return 0, fmt.Errorf("failed to encode preset %s: %w", p.Name, err)
		}
		if err := exec("preset "+p.Name, sqlInsertPreset, p.Name, string(items)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Catalog seeded", zap.Int("rows_added", added))
	return added, nil
}

func definitionArgs(d catalog.Definition) ([]any, error) {
	def, err := json.Marshal(d.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to encode default of %s: %w", d.Key, err)
	}
	constraints, _ := json.Marshal(d.Constraints)
	deps, _ := json.Marshal(nonNil(d.Dependencies))
	conflicts, _ := json.Marshal(nonNil(d.Conflicts))
	return []any{d.Key, d.DisplayName, d.Category, string(d.ValueType), string(def), string(constraints), string(deps), string(conflicts)}, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

const (
	sqlSelectCategories = `
        SELECT id, name, display_order
        FROM trait_categories
        ORDER BY display_order, id;`
	sqlSelectDefinitions = `
        SELECT id, key, display_name, category, value_type, default_value, constraints, dependencies, conflicts
        FROM trait_definitions
        ORDER BY id;`
	sqlSelectOptions = `
        SELECT id, definition_key, value, weight, region, vendor, device_class, os
        FROM trait_options
        ORDER BY id;`
	sqlSelectPresets = `
        SELECT id, name, items
        FROM trait_presets
        ORDER BY id;`
)

// LoadCatalog reads the whole catalog. Values are decoded against the declared
// type of their definition.
func (s *Store) LoadCatalog(ctx context.Context) (catalog.Snapshot, error) {
	var snap catalog.Snapshot

	err := s.queryEach(ctx, "categories", sqlSelectCategories, func(rows pgx.Rows) error {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.DisplayOrder); err != nil {
			return err
		}
		snap.Categories = append(snap.Categories, c)
		return nil
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}

	types := make(map[string]catalog.ValueType)
	err = s.queryEach(ctx, "definitions", sqlSelectDefinitions, func(rows pgx.Rows) error {
		var (
			d                             catalog.Definition
			valueType                     string
			def, constraints, deps, confl []byte
		)
		if err := rows.Scan(&d.ID, &d.Key, &d.DisplayName, &d.Category, &valueType, &def, &constraints, &deps, &confl); err != nil {
			return err
		}
		d.ValueType = catalog.ValueType(valueType)
		v, err := catalog.DecodeValue(d.ValueType, def)
		if err != nil {
			return fmt.Errorf("definition %s: %w", d.Key, err)
		}
		d.Default = v
		if err := unmarshalColumns(
			column{constraints, &d.Constraints},
			column{deps, &d.Dependencies},
			column{confl, &d.Conflicts},
		); err != nil {
			return fmt.Errorf("definition %s: %w", d.Key, err)
		}
		types[d.Key] = d.ValueType
		snap.Definitions = append(snap.Definitions, d)
		return nil
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}

	err = s.queryEach(ctx, "options", sqlSelectOptions, func(rows pgx.Rows) error {
		var (
			o   catalog.Option
			raw []byte
		)
		if err := rows.Scan(&o.ID, &o.DefinitionKey, &raw, &o.Weight, &o.Region, &o.Vendor, &o.DeviceClass, &o.OS); err != nil {
			return err
		}
		v, err := decodeTyped(types, o.DefinitionKey, raw)
		if err != nil {
			return fmt.Errorf("option %d: %w", o.ID, err)
		}
		o.Value = v
		snap.Options = append(snap.Options, o)
		return nil
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}

	err = s.queryEach(ctx, "presets", sqlSelectPresets, func(rows pgx.Rows) error {
		var (
			p   catalog.Preset
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &raw); err != nil {
			return err
		}
		items := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("preset %s: %w", p.Name, err)
		}
		p.Items = make(map[string]catalog.Value, len(items))
		for k, item := range items {
			v, err := decodeTyped(types, k, item)
			if err != nil {
				return fmt.Errorf("preset %s item %s: %w", p.Name, k, err)
			}
			p.Items[k] = v
		}
		snap.Presets = append(snap.Presets, p)
		return nil
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}

	if fixed := snap.Backfill(); fixed > 0 {
		s.log.Debug("Backfilled legacy catalog fields", zap.Int("fields", fixed))
	}
	return snap, nil
}

func (s *Store) queryEach(ctx context.Context, what, sql string, scan func(pgx.Rows) error) error {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", what, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during %s row iteration: %w", what, err)
	}
	return nil
}

type column struct {
	raw []byte
	dst any
}

func unmarshalColumns(cols ...column) error {
	for _, c := range cols {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return err
		}
	}
	return nil
}

func decodeTyped(types map[string]catalog.ValueType, key string, raw []byte) (catalog.Value, error) {
	if t, ok := types[key]; ok {
		return catalog.DecodeValue(t, raw)
	}
	var v catalog.Value
	err := v.UnmarshalJSON(raw)
	return v, err
}

const (
	sqlSelectProfile = `SELECT data FROM profiles WHERE id = $1;`
	sqlUpsertProfile = `
        INSERT INTO profiles (id, data, source_hash, generator_version, degraded, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (id) DO UPDATE SET
            data = EXCLUDED.data,
            source_hash = EXCLUDED.source_hash,
            generator_version = EXCLUDED.generator_version,
            degraded = EXCLUDED.degraded,
            updated_at = EXCLUDED.updated_at;`
	sqlDeleteProfile = `DELETE FROM profiles WHERE id = $1;`
)

// GetProfile loads a profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (*fingerprint.Profile, error) {
	return s.scanProfile(ctx, "store.GetProfile", id, sqlSelectProfile, id)
}

func (s *Store) scanProfile(ctx context.Context, op, key, sql string, args ...any) (*fingerprint.Profile, error) {
	var raw []byte
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schemas.E(schemas.KindNotFound, op, key, nil)
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	var p fingerprint.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", key, err)
	}
	return &p, nil
}

// SaveProfile inserts or replaces p, assigning a fresh id when it has none.
// The compiled artifacts are stored alongside the source fields.
func (s *Store) SaveProfile(ctx context.Context, p *fingerprint.Profile) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile %s: %w", p.ID, err)
	}
	var hash, version string
	if p.Compiled != nil {
		hash, version = p.Compiled.SourceHash, p.Compiled.GeneratorVersion
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertProfile, p.ID, string(raw), hash, version, p.Degraded, s.now().UTC()); err != nil {
		return "", fmt.Errorf("failed to save profile %s: %w", p.ID, err)
	}
	return p.ID, nil
}

// DeleteProfile removes a profile. Browsers bound to it report ProfileMissing
// on their next launch.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteProfile, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return schemas.E(schemas.KindNotFound, "store.DeleteProfile", id, nil)
	}
	return nil
}

const (
	sqlSelectBrowser  = `SELECT id, name, COALESCE(profile_id, ''), proxy FROM browsers WHERE id = $1;`
	sqlSelectBrowsers = `SELECT id, name, COALESCE(profile_id, ''), proxy FROM browsers ORDER BY id;`
	sqlUpsertBrowser  = `
        INSERT INTO browsers (id, name, profile_id, proxy, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $5)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            profile_id = EXCLUDED.profile_id,
            proxy = EXCLUDED.proxy,
            updated_at = EXCLUDED.updated_at;`
	sqlSelectBrowserProfile = `
        SELECT p.data
        FROM browsers b
        JOIN profiles p ON p.id = b.profile_id
        WHERE b.id = $1;`
)

// GetBrowser loads a browser record by id.
func (s *Store) GetBrowser(ctx context.Context, id string) (*BrowserRecord, error) {
	b, err := scanBrowser(s.pool.QueryRow(ctx, sqlSelectBrowser, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schemas.E(schemas.KindNotFound, "store.GetBrowser", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query browser %s: %w", id, err)
	}
	return b, nil
}

func scanBrowser(row pgx.Row) (*BrowserRecord, error) {
	var (
		b     BrowserRecord
		proxy []byte
	)
	if err := row.Scan(&b.ID, &b.Name, &b.ProfileID, &proxy); err != nil {
		return nil, err
	}
	if len(proxy) > 0 {
		if err := json.Unmarshal(proxy, &b.Proxy); err != nil {
			return nil, fmt.Errorf("failed to decode proxy of %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

// ListBrowsers returns every browser record ordered by id.
func (s *Store) ListBrowsers(ctx context.Context) ([]BrowserRecord, error) {
	var out []BrowserRecord
	err := s.queryEach(ctx, "browsers", sqlSelectBrowsers, func(rows pgx.Rows) error {
		b, err := scanBrowser(rows)
		if err != nil {
			return err
		}
		out = append(out, *b)
		return nil
	})
	return out, err
}

// SaveBrowser inserts or replaces b, assigning a fresh id when it has none.
func (s *Store) SaveBrowser(ctx context.Context, b *BrowserRecord) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	proxy, err := json.Marshal(b.Proxy)
	if err != nil {
		return "", fmt.Errorf("failed to encode proxy of %s: %w", b.ID, err)
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertBrowser, b.ID, b.Name, b.ProfileID, string(proxy), s.now().UTC()); err != nil {
		return "", fmt.Errorf("failed to save browser %s: %w", b.ID, err)
	}
	return b.ID, nil
}

// ProfileForBrowser loads the profile bound to browserID. It returns NotFound
// when the browser is unknown or has no stored profile.
func (s *Store) ProfileForBrowser(ctx context.Context, browserID string) (*fingerprint.Profile, error) {
	return s.scanProfile(ctx, "store.ProfileForBrowser", browserID, sqlSelectBrowserProfile, browserID)
}

// ProxyFor returns the proxy of browserID, or nil for a direct connection or
// an unknown browser.
func (s *Store) ProxyFor(ctx context.Context, browserID string) (*schemas.Proxy, error) {
	b, err := s.GetBrowser(ctx, browserID)
	if errors.Is(err, schemas.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b.Proxy, nil
}
