package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// Memory is an in-process Repository. Profiles and browsers are copied on the
// way in and out so callers never share state with the store.
type Memory struct {
	log *zap.Logger

	mu       sync.RWMutex
	snapshot catalog.Snapshot
	profiles map[string]*fingerprint.Profile
	browsers map[string]BrowserRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		log:      logger.Named("memory_store"),
		profiles: make(map[string]*fingerprint.Profile),
		browsers: make(map[string]BrowserRecord),
	}
}

// EnsureSchema is a no-op.
func (m *Memory) EnsureSchema(context.Context) error { return nil }

// SeedCatalog merges snap into the held catalog by natural key.
func (m *Memory) SeedCatalog(_ context.Context, snap catalog.Snapshot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := m.snapshot.Merge(snap)
	m.log.Info("Catalog seeded", zap.Int("rows_added", added))
	return added, nil
}

// LoadCatalog returns a copy of the held catalog. Values are immutable and
// shared; slices and maps are copied.
func (m *Memory) LoadCatalog(context.Context) (catalog.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.snapshot
	out := catalog.Snapshot{
		Categories:  append([]catalog.Category(nil), src.Categories...),
		Definitions: append([]catalog.Definition(nil), src.Definitions...),
		Options:     append([]catalog.Option(nil), src.Options...),
		Presets:     append([]catalog.Preset(nil), src.Presets...),
	}
	for i, d := range out.Definitions {
		out.Definitions[i].Dependencies = append([]string(nil), d.Dependencies...)
		out.Definitions[i].Conflicts = append([]string(nil), d.Conflicts...)
		out.Definitions[i].Constraints.Enum = append([]string(nil), d.Constraints.Enum...)
	}
	for i, p := range out.Presets {
		items := make(map[string]catalog.Value, len(p.Items))
		for k, v := range p.Items {
			items[k] = v
		}
		out.Presets[i].Items = items
	}
	return out, nil
}

func (m *Memory) GetProfile(_ context.Context, id string) (*fingerprint.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, schemas.E(schemas.KindNotFound, "store.GetProfile", id, nil)
	}
	return p.Clone(), nil
}

func (m *Memory) SaveProfile(_ context.Context, p *fingerprint.Profile) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.profiles[p.ID] = p.Clone()
	m.mu.Unlock()
	return p.ID, nil
}

func (m *Memory) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return schemas.E(schemas.KindNotFound, "store.DeleteProfile", id, nil)
	}
	delete(m.profiles, id)
	return nil
}

func (m *Memory) GetBrowser(_ context.Context, id string) (*BrowserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.browsers[id]
	if !ok {
		return nil, schemas.E(schemas.KindNotFound, "store.GetBrowser", id, nil)
	}
	return copyBrowser(b), nil
}

func (m *Memory) SaveBrowser(_ context.Context, b *BrowserRecord) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.browsers[b.ID] = *copyBrowser(*b)
	m.mu.Unlock()
	return b.ID, nil
}

func (m *Memory) ListBrowsers(context.Context) ([]BrowserRecord, error) {
	m.mu.RLock()
	out := make([]BrowserRecord, 0, len(m.browsers))
	for _, b := range m.browsers {
		out = append(out, *copyBrowser(b))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyBrowser(b BrowserRecord) *BrowserRecord {
	if b.Proxy != nil {
		proxy := *b.Proxy
		b.Proxy = &proxy
	}
	return &b
}

func (m *Memory) ProfileForBrowser(_ context.Context, browserID string) (*fingerprint.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.browsers[browserID]
	if !ok {
		return nil, schemas.E(schemas.KindNotFound, "store.ProfileForBrowser", browserID, nil)
	}
	p, ok := m.profiles[b.ProfileID]
	if !ok {
		return nil, schemas.E(schemas.KindNotFound, "store.ProfileForBrowser", browserID, nil)
	}
	return p.Clone(), nil
}

func (m *Memory) ProxyFor(_ context.Context, browserID string) (*schemas.Proxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.browsers[browserID]
	if !ok {
		return nil, nil
	}
	return copyBrowser(b).Proxy, nil
}
