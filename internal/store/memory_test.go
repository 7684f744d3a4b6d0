package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

func TestMemoryCatalogSeedingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zap.NewNop())
	require.NoError(t, m.EnsureSchema(ctx))

	added, err := m.SeedCatalog(ctx, catalog.DefaultSeed())
	require.NoError(t, err)
	assert.Positive(t, added)

	again, err := m.SeedCatalog(ctx, catalog.DefaultSeed())
	require.NoError(t, err)
	assert.Zero(t, again, "a second seed adds nothing")

	snap, err := m.LoadCatalog(ctx)
	require.NoError(t, err)
	_, err = catalog.New(snap)
	require.NoError(t, err)

	// Mutating the loaded copy leaves the store untouched.
	snap.Options[0].Weight = 1000
	snap.Definitions = snap.Definitions[:1]
	fresh, err := m.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, 1000.0, fresh.Options[0].Weight)
	assert.Greater(t, len(fresh.Definitions), 1)
}

func TestMemoryProfiles(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zap.NewNop())

	p := fingerprint.Defaults(catalog.OSWindows)
	id, err := m.SaveProfile(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, p.ID)

	p.UserAgent = "changed after save"
	got, err := m.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "changed after save", got.UserAgent, "the store keeps its own copy")

	got.Languages[0] = "xx"
	again, err := m.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "xx", again.Languages[0])

	require.NoError(t, m.DeleteProfile(ctx, id))
	_, err = m.GetProfile(ctx, id)
	assert.ErrorIs(t, err, schemas.ErrNotFound)
	assert.ErrorIs(t, m.DeleteProfile(ctx, id), schemas.ErrNotFound)
}

func TestMemoryBrowsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zap.NewNop())

	profileID, err := m.SaveProfile(ctx, fingerprint.Defaults(catalog.OSLinux))
	require.NoError(t, err)

	proxy := &schemas.Proxy{Server: "socks5://10.0.0.1:1080"}
	_, err = m.SaveBrowser(ctx, &BrowserRecord{ID: "b2", ProfileID: profileID, Proxy: proxy})
	require.NoError(t, err)
	_, err = m.SaveBrowser(ctx, &BrowserRecord{ID: "b1", ProfileID: "deleted"})
	require.NoError(t, err)

	t.Run("profile for browser", func(t *testing.T) {
		p, err := m.ProfileForBrowser(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, profileID, p.ID)

		_, err = m.ProfileForBrowser(ctx, "b1")
		assert.ErrorIs(t, err, schemas.ErrNotFound, "bound to a missing profile")
		_, err = m.ProfileForBrowser(ctx, "ghost")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
	})

	t.Run("proxy for browser", func(t *testing.T) {
		got, err := m.ProxyFor(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, proxy, got)
		got.Server = "mutated"

		again, err := m.ProxyFor(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, "socks5://10.0.0.1:1080", again.Server)

		none, err := m.ProxyFor(ctx, "b1")
		require.NoError(t, err)
		assert.Nil(t, none)
		unknown, err := m.ProxyFor(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, unknown)
	})

	t.Run("list is sorted", func(t *testing.T) {
		list, err := m.ListBrowsers(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b1", list[0].ID)
		assert.Equal(t, "b2", list[1].ID)
	})

	t.Run("get missing browser", func(t *testing.T) {
		_, err := m.GetBrowser(ctx, "ghost")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
	})
}
