package compiler

import (
	"embed"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

//go:embed js/*.js
var jsFiles embed.FS

// Script names in application order.
const (
	ScriptIdentity   = "identity"
	ScriptCanvas     = "canvas"
	ScriptWebGL      = "webgl"
	ScriptAudio      = "audio"
	ScriptAutomation = "automation"
)

const wrapper = "(function (cfg) {\n'use strict';\n%s\n%s\n})(%s);\n"

func fragment(name string) string {
	b, err := jsFiles.ReadFile("js/" + name + ".js")
	if err != nil {
		panic(fmt.Sprintf("compiler: embedded script %s: %v", name, err))
	}
	return string(b)
}

var prelude = fragment("prng")

// render wraps a fragment in an IIFE that receives its JSON config as cfg.
func render(name string, cfg any) Script {
	raw, err := json.Marshal(cfg)
	if err != nil {
		panic(fmt.Sprintf("compiler: marshal %s config: %v", name, err))
	}
	return Script{Name: name, Source: fmt.Sprintf(wrapper, prelude, fragment(name), raw)}
}

type connectionConfig struct {
	EffectiveType string  `json:"effectiveType"`
	RTT           int     `json:"rtt"`
	Downlink      float64 `json:"downlink"`
}

type identityConfig struct {
	UserAgent           string                `json:"userAgent"`
	Platform            string                `json:"platform"`
	Vendor              string                `json:"vendor"`
	Languages           []string              `json:"languages"`
	HardwareConcurrency int                   `json:"hardwareConcurrency"`
	DeviceMemory        int                   `json:"deviceMemory"`
	MaxTouchPoints      int                   `json:"maxTouchPoints"`
	Plugins             []fingerprint.Plugin  `json:"plugins"`
	Connection          connectionConfig      `json:"connection"`
	Brands              []Brand               `json:"brands"`
	FullVersion         string                `json:"fullVersion"`
	UAPlatform          string                `json:"uaPlatform"`
	Mobile              bool                  `json:"mobile"`
	Screen              *fingerprint.Viewport `json:"screen"`
	Fonts               []string              `json:"fonts"`
}

type noiseConfig struct {
	Seed uint32 `json:"seed"`
}

type webglConfig struct {
	Seed     uint32 `json:"seed"`
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
	Noise    bool   `json:"noise"`
}

// Per-injector salts so canvas and WebGL noise do not share a pattern.
const (
	saltCanvas uint32 = 0x43414e56
	saltWebGL  uint32 = 0x5745424c
	saltAudio  uint32 = 0x41554449
)

// seed32 folds the profile noise seed to 32 bits. Profiles without one fall
// back to their source hash so the noise is still stable per identity.
func seed32(p *fingerprint.Profile, sourceHash string) uint32 {
	if p.NoiseSeed != 0 {
		return uint32(p.NoiseSeed) ^ uint32(p.NoiseSeed>>32)
	}
	raw, err := hex.DecodeString(sourceHash)
	if err != nil || len(raw) < 4 {
		return 0x9e3779b9
	}
	return binary.BigEndian.Uint32(raw[:4])
}

// initScripts renders the ordered init scripts. Identity goes first so the
// noise injectors see the final navigator; automation cleanup runs last.
func initScripts(p *fingerprint.Profile, sourceHash string) []Script {
	seed := seed32(p, sourceHash)
	opts := contextOptions(p)

	id := identityConfig{
		UserAgent:           p.UserAgent,
		Platform:            p.Platform,
		Vendor:              p.Vendor,
		Languages:           p.Languages,
		HardwareConcurrency: p.HardwareConcurrency,
		DeviceMemory:        p.DeviceMemory,
		MaxTouchPoints:      p.MaxTouchPoints,
		Plugins:             p.Plugins,
		Connection:          connectionConfig{EffectiveType: p.ConnectionType, RTT: p.RTT, Downlink: p.Downlink},
		FullVersion:         p.BrowserVersion,
		Screen:              opts.Viewport,
		Fonts:               p.Fonts,
	}
	if ch := opts.ClientHints; ch != nil {
		id.Brands, id.UAPlatform, id.Mobile = ch.Brands, ch.Platform, ch.Mobile
	}

	scripts := []Script{render(ScriptIdentity, id)}
	if p.CanvasNoise == catalog.NoiseOn {
		scripts = append(scripts, render(ScriptCanvas, noiseConfig{Seed: seed ^ saltCanvas}))
	}
	webglNoise := p.WebGLNoise == catalog.NoiseOn
	if webglNoise || p.WebGLRenderer != "" {
		scripts = append(scripts, render(ScriptWebGL, webglConfig{
			Seed:     seed ^ saltWebGL,
			Vendor:   p.WebGLVendor,
			Renderer: p.WebGLRenderer,
			Noise:    webglNoise,
		}))
	}
	if p.AudioNoise == catalog.NoiseOn {
		scripts = append(scripts, render(ScriptAudio, noiseConfig{Seed: seed ^ saltAudio}))
	}
	return append(scripts, render(ScriptAutomation, struct{}{}))
}
