package fingerprint

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
)

// Request describes what to generate. Zero values mean "sample freely".
type Request struct {
	OS          string
	DeviceClass string
	Region      string
	// Preset names a catalog preset whose items are locked before Locked.
	Preset string
	Locked map[string]catalog.Value
	// Seed fixes the random source. Zero draws a seed from the clock.
	Seed int64
}

// Generator samples complete profiles from a catalog.
type Generator struct {
	catalog *catalog.Catalog
	cfg     config.GeneratorConfig
	logger  *zap.Logger
}

// NewGenerator creates a generator over an immutable catalog.
func NewGenerator(cat *catalog.Catalog, cfg config.GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.FontsMax < cfg.FontsMin {
		cfg.FontsMax = cfg.FontsMin
	}
	return &Generator{
		catalog: cat,
		cfg:     cfg,
		logger:  logger.Named("generator"),
	}
}

// generation carries the per-call state. It is never shared between calls.
type generation struct {
	cat    *catalog.Catalog
	rng    *rand.Rand
	filter catalog.Filter
	locked map[string]catalog.Value
	used   map[string]bool
	p      *Profile
}

// lockedValue returns the locked value for key and marks it consumed.
func (g *generation) lockedValue(key string) (catalog.Value, bool) {
	v, ok := g.locked[key]
	if ok {
		g.used[key] = true
	}
	return v, ok
}

// pick returns the locked value for key or samples one.
func (g *generation) pick(key string, filter catalog.Filter) (catalog.Value, error) {
	if v, ok := g.lockedValue(key); ok {
		return v, nil
	}
	v, err := g.cat.SampleOption(g.rng, key, filter)
	if err != nil {
		return catalog.Value{}, exhausted(key, filter.OS, err)
	}
	return v, nil
}

// resolve picks a value for key and writes it through the field registry.
func (g *generation) resolve(key string, filter catalog.Filter) error {
	v, err := g.pick(key, filter)
	if err != nil {
		return err
	}
	return g.set(key, v)
}

func (g *generation) set(key string, v catalog.Value) error {
	if err := fields[key].set(g.p, v); err != nil {
		return schemas.E(schemas.KindInvalidArgument, "fingerprint.Generate", key, err)
	}
	return nil
}

// derive writes a computed value unless the caller locked the key.
func (g *generation) derive(key string, compute func() catalog.Value) error {
	if v, ok := g.lockedValue(key); ok {
		return g.set(key, v)
	}
	return g.set(key, compute())
}

func exhausted(key, os string, cause error) error {
	if errors.Is(cause, schemas.ErrNotFound) || errors.Is(cause, schemas.ErrNoOptionsAvailable) {
		return schemas.E(schemas.KindCatalogExhausted, "fingerprint.Generate", key,
			fmt.Errorf("no sampleable option for os %q: %w", os, cause))
	}
	return cause
}

// Generate produces one internally consistent profile. Fields are resolved in
// a fixed order so that derived fields always see their sources, and so that a
// fixed seed reproduces the same profile.
func (gen *Generator) Generate(req Request) (*Profile, error) {
	const op = "fingerprint.Generate"

	os, class, err := resolveTarget(req.OS, req.DeviceClass)
	if err != nil {
		return nil, err
	}
	locked, err := gen.lockedFields(req)
	if err != nil {
		return nil, err
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	region := req.Region
	if region == "" {
		region = gen.cfg.DefaultRegion
	}

	g := &generation{
		cat:    gen.catalog,
		rng:    rand.New(rand.NewSource(seed)),
		filter: catalog.Filter{OS: os, DeviceClass: class},
		locked: locked,
		used:   map[string]bool{},
		p:      &Profile{OS: os, DeviceClass: class},
	}

	steps := []func() error{
		func() error { return g.resolveLocale(region) },
		g.resolveBrowser,
		g.resolvePlatform,
		g.resolveHardware,
		g.resolveGPU,
		func() error { return g.resolveFonts(gen.cfg.FontsMin, gen.cfg.FontsMax) },
		g.resolveDerived,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	// Locked keys no step consumed are copied last, in sorted order.
	rest := make([]string, 0, len(locked))
	for k := range locked {
		if !g.used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		if _, ok := fields[k]; !ok {
			return nil, schemas.E(schemas.KindInvalidArgument, op, k, fmt.Errorf("field cannot be locked"))
		}
		if err := g.set(k, locked[k]); err != nil {
			return nil, err
		}
	}

	gen.logger.Debug("Generated profile",
		zap.String("os", os),
		zap.String("device_class", class),
		zap.String("version", g.p.BrowserVersion),
		zap.Int64("seed", seed),
		zap.Int("locked", len(locked)))
	return g.p, nil
}

func resolveTarget(osName, classHint string) (string, string, error) {
	os, err := NormalizeOS(osName)
	if err != nil {
		return "", "", err
	}
	class := DeviceClassFor(os)
	if classHint != "" && classHint != class {
		return "", "", schemas.E(schemas.KindInvalidArgument, "fingerprint.Generate", classHint,
			fmt.Errorf("device class %q contradicts os %q", classHint, os))
	}
	return os, class, nil
}

// lockedFields merges preset items under the explicit locks and folds paired
// halves into their pair keys.
func (gen *Generator) lockedFields(req Request) (map[string]catalog.Value, error) {
	merged := map[string]catalog.Value{}
	if req.Preset != "" {
		items, err := gen.catalog.Preset(req.Preset)
		if err != nil {
			return nil, err
		}
		for k, v := range items {
			merged[k] = v
		}
	}
	for k, v := range req.Locked {
		merged[k] = v
	}
	_, vendor := merged[catalog.KeyWebGLVendor]
	_, renderer := merged[catalog.KeyWebGLRenderer]
	if vendor != renderer {
		return nil, schemas.E(schemas.KindInvalidArgument, "fingerprint.Generate", catalog.KeyGPU,
			fmt.Errorf("webgl vendor and renderer must be locked together"))
	}
	return foldPairs(merged), nil
}

// resolveLocale picks the locale and timezone as one correlated pair. With
// only one half locked, the other is drawn from pairs agreeing with it.
func (g *generation) resolveLocale(region string) error {
	filter := catalog.Filter{Region: region}
	if v, ok := g.lockedValue(catalog.KeyLocalePair); ok {
		return g.set(catalog.KeyLocalePair, v)
	}
	locale, hasLocale := g.lockedValue(catalog.KeyLocale)
	tz, hasTz := g.lockedValue(catalog.KeyTimezone)

	if hasLocale && hasTz {
		if err := g.set(catalog.KeyLocale, locale); err != nil {
			return err
		}
		return g.set(catalog.KeyTimezone, tz)
	}
	if !hasLocale && !hasTz {
		return g.resolve(catalog.KeyLocalePair, filter)
	}

	field, want := "locale", locale
	if hasTz {
		field, want = "timezone", tz
	}
	candidates, err := g.cat.Candidates(catalog.KeyLocalePair, catalog.Filter{})
	if err != nil {
		return exhausted(catalog.KeyLocalePair, "", err)
	}
	wantStr, _ := want.AsString()
	var matching []catalog.Option
	for _, o := range candidates {
		if o.Value.StringField(field) == wantStr {
			matching = append(matching, o)
		}
	}
	if len(matching) == 0 {
		pair := map[string]catalog.Value{"locale": catalog.String("en-US"), "timezone": catalog.String("UTC")}
		pair[field] = want
		return g.set(catalog.KeyLocalePair, catalog.Object(pair))
	}
	return g.set(catalog.KeyLocalePair, catalog.Roulette(g.rng, matching).Value)
}

func (g *generation) resolveBrowser() error {
	if err := g.resolve(catalog.KeyBrowserVersion, catalog.Filter{OS: g.filter.OS}); err != nil {
		return err
	}
	return g.derive(catalog.KeyUserAgent, func() catalog.Value {
		return catalog.String(UserAgent(g.p.OS, g.p.BrowserVersion))
	})
}

func (g *generation) resolvePlatform() error {
	platform, vendor := PlatformFor(g.p.OS)
	if err := g.derive(catalog.KeyPlatform, func() catalog.Value { return catalog.String(platform) }); err != nil {
		return err
	}
	return g.derive(catalog.KeyVendor, func() catalog.Value { return catalog.String(vendor) })
}

func (g *generation) resolveHardware() error {
	if err := g.resolve(catalog.KeyCores, g.filter); err != nil {
		return err
	}
	if err := g.resolve(catalog.KeyMemory, g.filter); err != nil {
		return err
	}
	return g.derive(catalog.KeyTouchPoints, func() catalog.Value {
		return catalog.Int(TouchPointsFor(g.p.DeviceClass))
	})
}

// resolveGPU draws vendor and renderer as one atomic option.
func (g *generation) resolveGPU() error {
	return g.resolve(catalog.KeyGPU, catalog.Filter{OS: g.filter.OS})
}

func (g *generation) resolveFonts(minN, maxN int) error {
	if v, ok := g.lockedValue(catalog.KeyFonts); ok {
		return g.set(catalog.KeyFonts, v)
	}
	n := minN
	if maxN > minN {
		n += g.rng.Intn(maxN - minN + 1)
	}
	values, err := g.cat.SampleDistinct(g.rng, catalog.KeyFontPool, catalog.Filter{OS: g.filter.OS}, n)
	if err != nil {
		return exhausted(catalog.KeyFontPool, g.filter.OS, err)
	}
	fonts := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.AsString(); ok && s != "" {
			fonts = append(fonts, s)
		}
	}
	if len(fonts) == 0 && n > 0 {
		return schemas.E(schemas.KindCatalogExhausted, "fingerprint.Generate", catalog.KeyFontPool,
			fmt.Errorf("empty font pool for os %q", g.filter.OS))
	}
	sort.Strings(fonts)
	g.p.Fonts = fonts
	return nil
}

// resolveDerived covers network, viewport and noise sampling, then derives the
// plugin list, languages and Client-Hints from the resolved identity.
func (g *generation) resolveDerived() error {
	for _, key := range []string{catalog.KeyNetwork, catalog.KeyViewport} {
		if err := g.resolve(key, g.filter); err != nil {
			return err
		}
	}
	for _, key := range []string{catalog.KeyCanvasNoise, catalog.KeyWebGLNoise, catalog.KeyAudioNoise} {
		if err := g.resolve(key, catalog.Filter{OS: g.filter.OS}); err != nil {
			return err
		}
	}
	// Kept below 2^53 so the seed survives a JSON number round trip.
	noiseSeed := g.rng.Int63n(1 << 53)
	if err := g.derive(catalog.KeyNoiseSeed, func() catalog.Value { return catalog.Number(float64(noiseSeed)) }); err != nil {
		return err
	}

	if v, ok := g.lockedValue(catalog.KeyPlugins); ok {
		if err := g.set(catalog.KeyPlugins, v); err != nil {
			return err
		}
	} else {
		g.p.Plugins = PluginsFor(g.p.DeviceClass)
	}
	if err := g.derive(catalog.KeyLanguages, func() catalog.Value {
		return catalog.Strings(LanguagesFor(g.p.Locale)...)
	}); err != nil {
		return err
	}

	chUa, chPlatform, chMobile := ClientHints(g.p.UserAgent, g.p.Platform)
	if err := g.derive(catalog.KeySecChUa, func() catalog.Value { return catalog.String(chUa) }); err != nil {
		return err
	}
	if err := g.derive(catalog.KeySecChUaPlatform, func() catalog.Value { return catalog.String(chPlatform) }); err != nil {
		return err
	}
	return g.derive(catalog.KeySecChUaMobile, func() catalog.Value { return catalog.String(chMobile) })
}
