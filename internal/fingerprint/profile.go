// Package fingerprint defines the resolved browser identity record and the
// generator that samples it from the trait catalog.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// GeneratorVersion is folded into the source hash of compiled artifacts. Bump it
// whenever generation or compilation output changes shape.
const GeneratorVersion = "fishbrowser-gen/3"

// Viewport is the inner window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Plugin mirrors one navigator.plugins entry.
type Plugin struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// Header is one name/value pair of an ordered header list.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Compiled holds the serialized runtime overrides derived from a profile.
type Compiled struct {
	HeadersJSON        json.RawMessage `json:"headers"`
	ScriptsJSON        json.RawMessage `json:"scripts"`
	ContextOptionsJSON json.RawMessage `json:"contextOptions"`
	GeneratorVersion   string          `json:"generatorVersion"`
	SourceHash         string          `json:"sourceHash"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// Profile is one complete synthetic browser identity.
//
// A nil Plugins slice means the plugin list is missing, while an empty slice is
// a present but empty list (mobile Chrome exposes none).
type Profile struct {
	ID          string `json:"id,omitempty"`
	OS          string `json:"os"`
	DeviceClass string `json:"deviceClass"`

	BrowserVersion string `json:"browserVersion"`
	UserAgent      string `json:"userAgent"`
	Platform       string `json:"platform"`
	Vendor         string `json:"vendor"`

	Locale    string   `json:"locale"`
	Timezone  string   `json:"timezone"`
	Languages []string `json:"languages"`

	Viewport            Viewport `json:"viewport"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	DeviceMemory        int      `json:"deviceMemory"`
	MaxTouchPoints      int      `json:"maxTouchPoints"`

	WebGLVendor   string `json:"webglVendor"`
	WebGLRenderer string `json:"webglRenderer"`
	CanvasNoise   string `json:"canvasNoise"`
	WebGLNoise    string `json:"webglNoise"`
	AudioNoise    string `json:"audioNoise"`
	NoiseSeed     int64  `json:"noiseSeed"`

	ConnectionType string  `json:"connectionType"`
	RTT            int     `json:"rtt"`
	Downlink       float64 `json:"downlink"`

	SecChUa         string `json:"secChUa"`
	SecChUaPlatform string `json:"secChUaPlatform"`
	SecChUaMobile   string `json:"secChUaMobile"`

	Fonts   []string `json:"fonts"`
	Plugins []Plugin `json:"plugins"`
	// HeaderOverrides replaces the default header template order and values.
	HeaderOverrides []Header `json:"headerOverrides,omitempty"`

	// Degraded is set by the compiler when it had to substitute defaults.
	Degraded bool      `json:"degraded,omitempty"`
	Compiled *Compiled `json:"compiled,omitempty"`
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Languages = cloneStrings(p.Languages)
	c.Fonts = cloneStrings(p.Fonts)
	if p.Plugins != nil {
		c.Plugins = append([]Plugin{}, p.Plugins...)
	}
	if p.HeaderOverrides != nil {
		c.HeaderOverrides = append([]Header{}, p.HeaderOverrides...)
	}
	if p.Compiled != nil {
		cc := *p.Compiled
		c.Compiled = &cc
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

// SourceHash digests every source field. Identity, compile state and the
// degraded flag are excluded so the hash only moves when the identity does.
func (p *Profile) SourceHash() string {
	src := *p
	src.ID = ""
	src.Compiled = nil
	src.Degraded = false
	raw, _ := json.Marshal(src)
	sum := sha256.Sum256(append(raw, GeneratorVersion...))
	return hex.EncodeToString(sum[:])
}

// Stale reports whether the compiled artifacts are missing or were produced
// from different source fields or a different generator version.
func (p *Profile) Stale() bool {
	c := p.Compiled
	return c == nil || c.GeneratorVersion != GeneratorVersion || c.SourceHash != p.SourceHash()
}

// Invalidate drops compiled artifacts. Every source mutation goes through here.
func (p *Profile) Invalidate() {
	p.Compiled = nil
	p.Degraded = false
}
