package fingerprint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
)

func newTestGenerator(t *testing.T, snap catalog.Snapshot) *Generator {
	t.Helper()
	cat, err := catalog.New(snap)
	require.NoError(t, err)
	return NewGenerator(cat, config.GeneratorConfig{FontsMin: 30, FontsMax: 50}, zap.NewNop())
}

func TestGenerateVendorFollowsOS(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	for seed := int64(1); seed <= 1000; seed++ {
		p, err := gen.Generate(Request{OS: "MacOS", Seed: seed})
		require.NoError(t, err)
		require.Equal(t, "Apple Computer, Inc.", p.Vendor, "seed %d", seed)
		require.Equal(t, "MacIntel", p.Platform, "seed %d", seed)
	}
}

func TestGenerateGPUPairIsAtomic(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	pairs := map[string]map[string]string{}
	cat, err := catalog.New(catalog.DefaultSeed())
	require.NoError(t, err)
	for _, os := range []string{catalog.OSWindows, catalog.OSMacOS, catalog.OSLinux, catalog.OSAndroid} {
		opts, err := cat.Candidates(catalog.KeyGPU, catalog.Filter{OS: os})
		require.NoError(t, err)
		pairs[os] = map[string]string{}
		for _, o := range opts {
			pairs[os][o.Value.StringField("renderer")] = o.Value.StringField("vendor")
		}
	}

	for seed := int64(1); seed <= 400; seed++ {
		os := []string{"windows", "macos", "linux", "android"}[seed%4]
		p, err := gen.Generate(Request{OS: os, Seed: seed})
		require.NoError(t, err)
		require.NotEmpty(t, p.WebGLVendor)
		require.NotEmpty(t, p.WebGLRenderer)
		vendor, ok := pairs[p.OS][p.WebGLRenderer]
		require.True(t, ok, "renderer %q is not in the %s pool", p.WebGLRenderer, p.OS)
		assert.Equal(t, vendor, p.WebGLVendor)
	}
}

func TestGenerateWindows(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	p, err := gen.Generate(Request{OS: "Windows", Seed: 99})
	require.NoError(t, err)

	assert.Contains(t, p.UserAgent, "Windows")
	assert.Equal(t, "Win32", p.Platform)
	assert.Equal(t, 0, p.MaxTouchPoints)
	assert.Equal(t, catalog.DeviceDesktop, p.DeviceClass)
	assert.Equal(t, `"Windows"`, p.SecChUaPlatform)
	assert.Equal(t, "?0", p.SecChUaMobile)
	assert.Contains(t, []int{4, 6, 8, 12, 16}, p.HardwareConcurrency)
	assert.Len(t, p.Plugins, 5)

	major, ok := MajorVersion(p.BrowserVersion)
	require.True(t, ok)
	assert.Equal(t, SecChUa(major), p.SecChUa)
	assert.Contains(t, p.UserAgent, "Chrome/"+strings.Split(p.BrowserVersion, ".")[0]+".0.0.0")
}

func TestGenerateAndroid(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	p, err := gen.Generate(Request{OS: "android", DeviceClass: catalog.DeviceMobile, Seed: 5})
	require.NoError(t, err)

	assert.Equal(t, catalog.DeviceMobile, p.DeviceClass)
	assert.Greater(t, p.MaxTouchPoints, 0)
	assert.Equal(t, "?1", p.SecChUaMobile)
	assert.NotNil(t, p.Plugins)
	assert.Empty(t, p.Plugins)
	assert.Contains(t, p.UserAgent, "Mobile Safari")
	assert.Contains(t, []string{"Qualcomm", "ARM"}, p.WebGLVendor)
	assert.Less(t, p.Viewport.Width, 500)
}

func TestGenerateFonts(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	for seed := int64(1); seed <= 50; seed++ {
		p, err := gen.Generate(Request{OS: "linux", Seed: seed})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(p.Fonts), 30)
		assert.LessOrEqual(t, len(p.Fonts), 40, "clamped to the linux pool")

		seen := map[string]bool{}
		for _, f := range p.Fonts {
			require.False(t, seen[f], "duplicate font %q", f)
			seen[f] = true
		}
		assert.IsNonDecreasing(t, p.Fonts)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())
	req := Request{
		OS:     "linux",
		Seed:   20240601,
		Locked: map[string]catalog.Value{catalog.KeyCores: catalog.Int(12)},
	}

	a, err := gen.Generate(req)
	require.NoError(t, err)
	b, err := gen.Generate(req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a.SourceHash(), b.SourceHash())

	c, err := gen.Generate(Request{OS: "linux", Seed: 20240602})
	require.NoError(t, err)
	assert.NotEqual(t, a.SourceHash(), c.SourceHash())
}

func TestGenerateLockedFields(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	t.Run("locked user agent drives derived hints", func(t *testing.T) {
		ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
		p, err := gen.Generate(Request{
			OS:     "windows",
			Seed:   1,
			Locked: map[string]catalog.Value{catalog.KeyUserAgent: catalog.String(ua)},
		})
		require.NoError(t, err)
		assert.Equal(t, ua, p.UserAgent)
		assert.Equal(t, `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`, p.SecChUa)
	})

	t.Run("locked locale pulls its paired timezone", func(t *testing.T) {
		for seed := int64(1); seed <= 20; seed++ {
			p, err := gen.Generate(Request{
				OS:     "windows",
				Seed:   seed,
				Locked: map[string]catalog.Value{catalog.KeyLocale: catalog.String("de-DE")},
			})
			require.NoError(t, err)
			assert.Equal(t, "Europe/Berlin", p.Timezone)
			assert.Equal(t, []string{"de-DE", "de", "en-US", "en"}, p.Languages)
		}
	})

	t.Run("locked gpu halves stay paired", func(t *testing.T) {
		p, err := gen.Generate(Request{
			OS:   "linux",
			Seed: 3,
			Locked: map[string]catalog.Value{
				catalog.KeyWebGLVendor:   catalog.String("Google Inc. (Intel)"),
				catalog.KeyWebGLRenderer: catalog.String("ANGLE (Intel, Mesa Intel(R) Xe Graphics, OpenGL 4.6)"),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Google Inc. (Intel)", p.WebGLVendor)
		assert.Equal(t, "ANGLE (Intel, Mesa Intel(R) Xe Graphics, OpenGL 4.6)", p.WebGLRenderer)
	})

	t.Run("one gpu half is rejected", func(t *testing.T) {
		_, err := gen.Generate(Request{
			OS:     "linux",
			Locked: map[string]catalog.Value{catalog.KeyWebGLVendor: catalog.String("Google Inc. (Intel)")},
		})
		assert.True(t, errors.Is(err, schemas.ErrInvalidArgument))
	})

	t.Run("preset applies under explicit locks", func(t *testing.T) {
		p, err := gen.Generate(Request{
			OS:     "windows",
			Seed:   8,
			Preset: "workstation",
			Locked: map[string]catalog.Value{catalog.KeyMemory: catalog.Int(4)},
		})
		require.NoError(t, err)
		assert.Equal(t, 16, p.HardwareConcurrency)
		assert.Equal(t, 4, p.DeviceMemory)
		assert.Equal(t, Viewport{Width: 2560, Height: 1440}, p.Viewport)
	})

	t.Run("unknown locked key is rejected", func(t *testing.T) {
		_, err := gen.Generate(Request{
			OS:     "windows",
			Locked: map[string]catalog.Value{"privacy.do_not_track": catalog.String("1")},
		})
		assert.True(t, errors.Is(err, schemas.ErrInvalidArgument))
	})
}

func TestGenerateErrors(t *testing.T) {
	gen := newTestGenerator(t, catalog.DefaultSeed())

	_, err := gen.Generate(Request{OS: "plan9"})
	assert.True(t, errors.Is(err, schemas.ErrInvalidArgument))

	_, err = gen.Generate(Request{OS: "windows", DeviceClass: catalog.DeviceMobile})
	assert.True(t, errors.Is(err, schemas.ErrInvalidArgument))

	_, err = gen.Generate(Request{OS: "windows", Preset: "nowhere"})
	assert.True(t, errors.Is(err, schemas.ErrNotFound))

	t.Run("catalog exhausted for an os without gpus", func(t *testing.T) {
		snap := catalog.DefaultSeed()
		kept := snap.Options[:0]
		for _, o := range snap.Options {
			if o.DefinitionKey == catalog.KeyGPU && o.OS == catalog.OSLinux {
				continue
			}
			kept = append(kept, o)
		}
		snap.Options = kept
		gen := newTestGenerator(t, snap)

		_, err := gen.Generate(Request{OS: "linux", Seed: 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, schemas.ErrCatalogExhausted))
		assert.Equal(t, schemas.KindCatalogExhausted, schemas.KindOf(err))

		_, err = gen.Generate(Request{OS: "windows", Seed: 1})
		assert.NoError(t, err, "other systems are unaffected")
	})
}
