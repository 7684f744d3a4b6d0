// Package compiler turns a fingerprint profile into the runtime overrides a
// browser session applies: an ordered header template, context options and an
// ordered list of init scripts.
package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// Brand is one entry of the sec-ch-ua brand list.
type Brand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

// ClientHints is the User-Agent metadata a driver hands to the browser so its
// own Client-Hints headers and navigator.userAgentData agree with the profile.
type ClientHints struct {
	Brands      []Brand `json:"brands"`
	FullVersion string  `json:"fullVersion,omitempty"`
	Platform    string  `json:"platform"`
	Mobile      bool    `json:"mobile"`
}

// ContextOptions configures the browser context before any page loads.
type ContextOptions struct {
	UserAgent      string                `json:"userAgent"`
	Locale         string                `json:"locale"`
	Timezone       string                `json:"timezoneId"`
	Viewport       *fingerprint.Viewport `json:"viewport,omitempty"`
	Proxy          *schemas.Proxy        `json:"proxy,omitempty"`
	AcceptLanguage string                `json:"acceptLanguage"`
	Platform       string                `json:"platform"`
	MaxTouchPoints int                   `json:"maxTouchPoints"`
	ClientHints    *ClientHints          `json:"clientHints,omitempty"`
}

// Script is one named init script.
type Script struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Artifacts is the full compilation output. Headers and InitScripts are
// ordered and must be applied in that order.
type Artifacts struct {
	Headers        []fingerprint.Header `json:"headers"`
	ContextOptions ContextOptions       `json:"contextOptions"`
	InitScripts    []Script             `json:"initScripts"`
	// Degraded is set when a missing field was replaced by a default.
	Degraded bool     `json:"degraded,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Compiler is stateless apart from its logger and safe for concurrent use.
type Compiler struct {
	logger *zap.Logger
}

// New creates a Compiler.
func New(logger *zap.Logger) *Compiler {
	return &Compiler{logger: logger.Named("compiler")}
}

// Compile derives the runtime overrides of p. It never fails: missing fields
// are replaced with the defaults of the profile's OS and the output is marked
// degraded. The result depends only on the source fields of p.
func (c *Compiler) Compile(p *fingerprint.Profile) Artifacts {
	eff, missing := c.effective(p)

	a := Artifacts{
		Headers:        headers(eff, p.HeaderOverrides),
		ContextOptions: contextOptions(eff),
		InitScripts:    initScripts(eff, p.SourceHash()),
	}
	if len(missing) > 0 {
		a.Degraded = true
		a.Warnings = append(a.Warnings, "defaults substituted for: "+strings.Join(missing, ", "))
		c.logger.Warn("Compiled profile with default values for missing fields.",
			zap.String("profile_id", p.ID),
			zap.Strings("fields", missing))
	}
	return a
}

func inferOS(p *fingerprint.Profile) string {
	for _, os := range []string{
		p.OS,
		fingerprint.FamilyFromPlatform(p.Platform),
		fingerprint.FamilyFromUserAgent(p.UserAgent),
	} {
		if os != "" {
			return os
		}
	}
	return catalog.OSWindows
}

// effective returns a copy of p with every field the overrides need filled in,
// plus the keys that had to be defaulted.
func (c *Compiler) effective(p *fingerprint.Profile) (*fingerprint.Profile, []string) {
	eff := p.Clone()
	def := fingerprint.Defaults(inferOS(p))
	var missing []string

	fillString := func(key string, dst *string, fallback string) {
		if *dst == "" {
			*dst = fallback
			missing = append(missing, key)
		}
	}
	fillInt := func(key string, dst *int, fallback int) {
		if *dst <= 0 {
			*dst = fallback
			missing = append(missing, key)
		}
	}

	if eff.DeviceClass == "" {
		eff.DeviceClass = def.DeviceClass
	}
	fillString(catalog.KeyUserAgent, &eff.UserAgent, def.UserAgent)
	fillString(catalog.KeyPlatform, &eff.Platform, def.Platform)
	fillString(catalog.KeyVendor, &eff.Vendor, def.Vendor)
	fillString(catalog.KeyLocale, &eff.Locale, def.Locale)
	fillString(catalog.KeyTimezone, &eff.Timezone, def.Timezone)
	fillInt(catalog.KeyCores, &eff.HardwareConcurrency, def.HardwareConcurrency)
	fillInt(catalog.KeyMemory, &eff.DeviceMemory, def.DeviceMemory)
	fillString(catalog.KeyCanvasNoise, &eff.CanvasNoise, def.CanvasNoise)
	fillString(catalog.KeyWebGLNoise, &eff.WebGLNoise, def.WebGLNoise)
	fillString(catalog.KeyAudioNoise, &eff.AudioNoise, def.AudioNoise)
	fillString(catalog.KeyConnectionType, &eff.ConnectionType, def.ConnectionType)
	fillInt(catalog.KeyRTT, &eff.RTT, def.RTT)
	if eff.Downlink <= 0 {
		eff.Downlink = def.Downlink
		missing = append(missing, catalog.KeyDownlink)
	}
	if len(eff.Languages) == 0 {
		eff.Languages = fingerprint.LanguagesFor(eff.Locale)
		missing = append(missing, catalog.KeyLanguages)
	}
	if eff.Plugins == nil {
		eff.Plugins = fingerprint.PluginsFor(eff.DeviceClass)
		missing = append(missing, catalog.KeyPlugins)
	}

	chUa, chPlatform, chMobile := fingerprint.ClientHints(eff.UserAgent, eff.Platform)
	if eff.SecChUa == "" {
		eff.SecChUa = chUa
		missing = append(missing, catalog.KeySecChUa)
		c.logger.Warn("Client-Hints missing from profile, approximating from the user agent.",
			zap.String("profile_id", p.ID),
			zap.String("sec_ch_ua", chUa))
	}
	fillString(catalog.KeySecChUaPlatform, &eff.SecChUaPlatform, chPlatform)
	fillString(catalog.KeySecChUaMobile, &eff.SecChUaMobile, chMobile)
	return eff, missing
}

const (
	acceptDocument = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	acceptEncoding = "gzip, deflate, br, zstd"
)

// headers renders the navigation request header template in the order Chrome
// sends it. An explicit override list replaces the template entirely.
func headers(p *fingerprint.Profile, overrides []fingerprint.Header) []fingerprint.Header {
	if len(overrides) > 0 {
		return append([]fingerprint.Header(nil), overrides...)
	}
	out := make([]fingerprint.Header, 0, 13)
	add := func(name, value string) {
		if value != "" {
			out = append(out, fingerprint.Header{Name: name, Value: value})
		}
	}
	add("sec-ch-ua", p.SecChUa)
	add("sec-ch-ua-mobile", p.SecChUaMobile)
	add("sec-ch-ua-platform", p.SecChUaPlatform)
	add("upgrade-insecure-requests", "1")
	add("user-agent", p.UserAgent)
	add("accept", acceptDocument)
	add("sec-fetch-site", "none")
	add("sec-fetch-mode", "navigate")
	add("sec-fetch-user", "?1")
	add("sec-fetch-dest", "document")
	add("accept-encoding", acceptEncoding)
	add("accept-language", AcceptLanguage(p.Languages))
	add("priority", "u=0, i")
	return out
}

// AcceptLanguage formats a language list with descending quality values,
// e.g. "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7".
func AcceptLanguage(languages []string) string {
	var b strings.Builder
	for i, l := range languages {
		if i == 0 {
			b.WriteString(l)
			continue
		}
		q := 1.0 - float64(i)*0.1
		if q < 0.1 {
			q = 0.1
		}
		b.WriteString(",")
		b.WriteString(l)
		b.WriteString(";q=")
		b.WriteString(strconv.FormatFloat(q, 'f', 1, 64))
	}
	return b.String()
}

// sessionManaged lists headers the browser produces itself for each request.
// Sending them as static extras would be wrong for subresources.
var sessionManaged = map[string]bool{
	"sec-ch-ua": true, "sec-ch-ua-mobile": true, "sec-ch-ua-platform": true,
	"upgrade-insecure-requests": true, "user-agent": true, "accept": true,
	"sec-fetch-site": true, "sec-fetch-mode": true, "sec-fetch-user": true, "sec-fetch-dest": true,
	"accept-encoding": true, "priority": true, "host": true, "cookie": true, "content-length": true,
}

// SessionHeaders returns the subset of hs that is safe to attach to every
// request of a browser session.
func SessionHeaders(hs []fingerprint.Header) []fingerprint.Header {
	var out []fingerprint.Header
	for _, h := range hs {
		if !sessionManaged[strings.ToLower(h.Name)] {
			out = append(out, h)
		}
	}
	return out
}

var brandPattern = regexp.MustCompile(`"([^"]*)";v="([^"]*)"`)

// ParseBrands parses a sec-ch-ua header value into its brand list.
func ParseBrands(secChUa string) []Brand {
	var out []Brand
	for _, m := range brandPattern.FindAllStringSubmatch(secChUa, -1) {
		out = append(out, Brand{Brand: m[1], Version: m[2]})
	}
	return out
}

func contextOptions(p *fingerprint.Profile) ContextOptions {
	opts := ContextOptions{
		UserAgent:      p.UserAgent,
		Locale:         p.Locale,
		Timezone:       p.Timezone,
		AcceptLanguage: AcceptLanguage(p.Languages),
		Platform:       p.Platform,
		MaxTouchPoints: p.MaxTouchPoints,
	}
	if p.Viewport.Width > 0 && p.Viewport.Height > 0 {
		vp := p.Viewport
		opts.Viewport = &vp
	}
	if brands := ParseBrands(p.SecChUa); len(brands) > 0 {
		platform, err := strconv.Unquote(p.SecChUaPlatform)
		if err != nil {
			platform = strings.Trim(p.SecChUaPlatform, `"`)
		}
		opts.ClientHints = &ClientHints{
			Brands:      brands,
			FullVersion: p.BrowserVersion,
			Platform:    platform,
			Mobile:      p.SecChUaMobile == "?1",
		}
	}
	return opts
}

func (a Artifacts) String() string {
	return fmt.Sprintf("artifacts{headers=%d scripts=%d degraded=%t}", len(a.Headers), len(a.InitScripts), a.Degraded)
}
