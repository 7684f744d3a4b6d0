package fingerprint

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
)

func compiled(p *Profile) *Profile {
	p.Compiled = &Compiled{GeneratorVersion: GeneratorVersion, SourceHash: p.SourceHash(), GeneratedAt: time.Unix(0, 0)}
	return p
}

func TestSetInvalidatesCompiled(t *testing.T) {
	p := compiled(Defaults(catalog.OSWindows))
	p.Degraded = true
	require.False(t, p.Stale())

	require.NoError(t, p.Set(catalog.KeyCores, catalog.Int(12)))
	assert.Equal(t, 12, p.HardwareConcurrency)
	assert.Nil(t, p.Compiled)
	assert.False(t, p.Degraded)
	assert.True(t, p.Stale())
}

func TestStaleDetectsDirectEdits(t *testing.T) {
	p := compiled(Defaults(catalog.OSLinux))
	p.ID = "some-id"
	assert.False(t, p.Stale(), "identity does not feed the hash")

	p.Timezone = "Asia/Tokyo"
	assert.True(t, p.Stale())
}

func TestSetRejectsBadValues(t *testing.T) {
	p := Defaults(catalog.OSWindows)

	err := p.Set(catalog.KeyCores, catalog.String("many"))
	assert.True(t, errors.Is(err, schemas.ErrInvalidArgument))

	err = p.Set("nope.nothing", catalog.String("x"))
	assert.True(t, errors.Is(err, schemas.ErrInvalidArgument))

	err = p.Set(catalog.KeyCanvasNoise, catalog.Enum("loud"))
	assert.Error(t, err)

	err = p.Set(catalog.KeyViewport, catalog.Object(map[string]catalog.Value{"width": catalog.Int(0)}))
	assert.Error(t, err)
}

func TestGPUHalvesCannotSplit(t *testing.T) {
	p := Defaults(catalog.OSWindows)
	require.Empty(t, p.WebGLVendor)

	err := p.Set(catalog.KeyWebGLVendor, catalog.String("Google Inc. (Intel)"))
	require.Error(t, err)
	assert.Empty(t, p.WebGLVendor)

	require.NoError(t, p.Set(catalog.KeyGPU, catalog.Object(map[string]catalog.Value{
		"vendor":   catalog.String("Google Inc. (Intel)"),
		"renderer": catalog.String("ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"),
	})))
	require.NoError(t, p.Set(catalog.KeyWebGLRenderer, catalog.String("ANGLE (Intel, Intel(R) UHD Graphics 770 Direct3D11 vs_5_0 ps_5_0, D3D11)")))

	err = p.Set(catalog.KeyWebGLRenderer, catalog.String(""))
	assert.Error(t, err, "clearing one half alone is refused")
}

func TestApplyOverrides(t *testing.T) {
	base := Defaults(catalog.OSMacOS)
	out, err := ApplyOverrides(base, map[string]catalog.Value{
		catalog.KeyWebGLVendor:   catalog.String("Google Inc. (Apple)"),
		catalog.KeyWebGLRenderer: catalog.String("ANGLE (Apple, ANGLE Metal Renderer: Apple M2, Unspecified Version)"),
		catalog.KeyLanguages:     catalog.Strings("fr-FR", "fr"),
		catalog.KeyPlugins:       catalog.Strings("PDF Viewer"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Google Inc. (Apple)", out.WebGLVendor)
	assert.Equal(t, []string{"fr-FR", "fr"}, out.Languages)
	require.Len(t, out.Plugins, 1)
	assert.Equal(t, "internal-pdf-viewer", out.Plugins[0].Filename)

	assert.Empty(t, base.WebGLVendor, "base is untouched")
	assert.Equal(t, []string{"en-US", "en"}, base.Languages)
}

func TestGetRoundTripsThroughSet(t *testing.T) {
	src := Defaults(catalog.OSAndroid)
	dst := &Profile{OS: src.OS, DeviceClass: src.DeviceClass}
	for _, key := range Keys() {
		v, ok := src.Get(key)
		require.True(t, ok)
		if v.IsZero() {
			continue
		}
		switch key {
		case catalog.KeyWebGLVendor, catalog.KeyWebGLRenderer:
			continue
		}
		require.NoError(t, dst.Set(key, v), key)
	}
	assert.Equal(t, src.SourceHash(), dst.SourceHash())
}

func TestDefaultsAreConsistent(t *testing.T) {
	for _, os := range []string{catalog.OSWindows, catalog.OSMacOS, catalog.OSLinux, catalog.OSAndroid} {
		p := Defaults(os)
		assert.Equal(t, os, FamilyFromUserAgent(p.UserAgent), os)
		assert.Equal(t, os, FamilyFromPlatform(p.Platform), os)
		assert.NotEmpty(t, p.SecChUa, os)
	}
	assert.Equal(t, catalog.OSWindows, Defaults("beos").OS)
}
