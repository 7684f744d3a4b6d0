package fingerprint

import (
	"fmt"
	"sort"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
)

type field struct {
	get func(p *Profile) catalog.Value
	set func(p *Profile, v catalog.Value) error
}

func stringField(ptr func(p *Profile) *string) field {
	return field{
		get: func(p *Profile) catalog.Value { return catalog.String(*ptr(p)) },
		set: func(p *Profile, v catalog.Value) error {
			s, ok := v.AsString()
			if !ok {
				return fmt.Errorf("want string, got %s", v.Type)
			}
			*ptr(p) = s
			return nil
		},
	}
}

func enumField(ptr func(p *Profile) *string, allowed ...string) field {
	f := stringField(ptr)
	f.get = func(p *Profile) catalog.Value { return catalog.Enum(*ptr(p)) }
	inner := f.set
	f.set = func(p *Profile, v catalog.Value) error {
		s, _ := v.AsString()
		for _, a := range allowed {
			if s == a {
				return inner(p, v)
			}
		}
		return fmt.Errorf("%q is not one of %v", s, allowed)
	}
	return f
}

func intField(ptr func(p *Profile) *int) field {
	return field{
		get: func(p *Profile) catalog.Value { return catalog.Int(*ptr(p)) },
		set: func(p *Profile, v catalog.Value) error {
			n, ok := v.AsInt()
			if !ok {
				return fmt.Errorf("want number, got %s", v.Type)
			}
			*ptr(p) = n
			return nil
		},
	}
}

func stringsField(ptr func(p *Profile) *[]string) field {
	return field{
		get: func(p *Profile) catalog.Value { return catalog.Strings(*ptr(p)...) },
		set: func(p *Profile, v catalog.Value) error {
			s, ok := v.AsStrings()
			if !ok {
				return fmt.Errorf("want array of strings, got %s", v.Type)
			}
			*ptr(p) = s
			return nil
		},
	}
}

// fields is the single edit path for profile source data. Paired traits are
// exposed both as one object key and as individual keys whose setters refuse
// to break the pairing.
var fields = map[string]field{
	catalog.KeyLocale:          stringField(func(p *Profile) *string { return &p.Locale }),
	catalog.KeyTimezone:        stringField(func(p *Profile) *string { return &p.Timezone }),
	catalog.KeyBrowserVersion:  stringField(func(p *Profile) *string { return &p.BrowserVersion }),
	catalog.KeyUserAgent:       stringField(func(p *Profile) *string { return &p.UserAgent }),
	catalog.KeyPlatform:        stringField(func(p *Profile) *string { return &p.Platform }),
	catalog.KeyVendor:          stringField(func(p *Profile) *string { return &p.Vendor }),
	catalog.KeyLanguages:       stringsField(func(p *Profile) *[]string { return &p.Languages }),
	catalog.KeyFonts:           stringsField(func(p *Profile) *[]string { return &p.Fonts }),
	catalog.KeyCores:           intField(func(p *Profile) *int { return &p.HardwareConcurrency }),
	catalog.KeyMemory:          intField(func(p *Profile) *int { return &p.DeviceMemory }),
	catalog.KeyTouchPoints:     intField(func(p *Profile) *int { return &p.MaxTouchPoints }),
	catalog.KeyCanvasNoise:     enumField(func(p *Profile) *string { return &p.CanvasNoise }, catalog.NoiseOn, catalog.NoiseOff),
	catalog.KeyWebGLNoise:      enumField(func(p *Profile) *string { return &p.WebGLNoise }, catalog.NoiseOn, catalog.NoiseOff),
	catalog.KeyAudioNoise:      enumField(func(p *Profile) *string { return &p.AudioNoise }, catalog.NoiseOn, catalog.NoiseOff),
	catalog.KeyConnectionType:  stringField(func(p *Profile) *string { return &p.ConnectionType }),
	catalog.KeyRTT:             intField(func(p *Profile) *int { return &p.RTT }),
	catalog.KeySecChUa:         stringField(func(p *Profile) *string { return &p.SecChUa }),
	catalog.KeySecChUaPlatform: stringField(func(p *Profile) *string { return &p.SecChUaPlatform }),
	catalog.KeySecChUaMobile:   stringField(func(p *Profile) *string { return &p.SecChUaMobile }),

	catalog.KeyDownlink: {
		get: func(p *Profile) catalog.Value { return catalog.Number(p.Downlink) },
		set: func(p *Profile, v catalog.Value) error {
			n, ok := v.AsNumber()
			if !ok {
				return fmt.Errorf("want number, got %s", v.Type)
			}
			p.Downlink = n
			return nil
		},
	},
	catalog.KeyNoiseSeed: {
		get: func(p *Profile) catalog.Value { return catalog.Number(float64(p.NoiseSeed)) },
		set: func(p *Profile, v catalog.Value) error {
			n, ok := v.AsNumber()
			if !ok {
				return fmt.Errorf("want number, got %s", v.Type)
			}
			p.NoiseSeed = int64(n)
			return nil
		},
	},
	catalog.KeyLocalePair: {
		get: func(p *Profile) catalog.Value {
			return catalog.Object(map[string]catalog.Value{"locale": catalog.String(p.Locale), "timezone": catalog.String(p.Timezone)})
		},
		set: func(p *Profile, v catalog.Value) error {
			if v.Type != catalog.TypeObject {
				return fmt.Errorf("want object, got %s", v.Type)
			}
			p.Locale, p.Timezone = v.StringField("locale"), v.StringField("timezone")
			return nil
		},
	},
	catalog.KeyViewport: {
		get: func(p *Profile) catalog.Value {
			return catalog.Object(map[string]catalog.Value{"width": catalog.Int(p.Viewport.Width), "height": catalog.Int(p.Viewport.Height)})
		},
		set: func(p *Profile, v catalog.Value) error {
			w, h := int(v.NumberField("width")), int(v.NumberField("height"))
			if v.Type != catalog.TypeObject || w <= 0 || h <= 0 {
				return fmt.Errorf("want object with positive width and height")
			}
			p.Viewport = Viewport{Width: w, Height: h}
			return nil
		},
	},
	catalog.KeyGPU: {
		get: func(p *Profile) catalog.Value {
			return catalog.Object(map[string]catalog.Value{"vendor": catalog.String(p.WebGLVendor), "renderer": catalog.String(p.WebGLRenderer)})
		},
		set: func(p *Profile, v catalog.Value) error {
			if v.Type != catalog.TypeObject {
				return fmt.Errorf("want object, got %s", v.Type)
			}
			vendor, renderer := v.StringField("vendor"), v.StringField("renderer")
			if (vendor == "") != (renderer == "") {
				return fmt.Errorf("webgl vendor and renderer must be set together")
			}
			p.WebGLVendor, p.WebGLRenderer = vendor, renderer
			return nil
		},
	},
	catalog.KeyWebGLVendor:   pairedGPUField(func(p *Profile) (*string, string) { return &p.WebGLVendor, p.WebGLRenderer }),
	catalog.KeyWebGLRenderer: pairedGPUField(func(p *Profile) (*string, string) { return &p.WebGLRenderer, p.WebGLVendor }),
	catalog.KeyNetwork: {
		get: func(p *Profile) catalog.Value {
			return catalog.Object(map[string]catalog.Value{
				"type":     catalog.String(p.ConnectionType),
				"rtt":      catalog.Int(p.RTT),
				"downlink": catalog.Number(p.Downlink),
			})
		},
		set: func(p *Profile, v catalog.Value) error {
			if v.Type != catalog.TypeObject {
				return fmt.Errorf("want object, got %s", v.Type)
			}
			p.ConnectionType = v.StringField("type")
			p.RTT = int(v.NumberField("rtt"))
			p.Downlink = v.NumberField("downlink")
			return nil
		},
	},
	catalog.KeyPlugins: {
		get: func(p *Profile) catalog.Value {
			if p.Plugins == nil {
				return catalog.Value{}
			}
			items := make([]catalog.Value, 0, len(p.Plugins))
			for _, pl := range p.Plugins {
				items = append(items, catalog.Object(map[string]catalog.Value{
					"name":        catalog.String(pl.Name),
					"filename":    catalog.String(pl.Filename),
					"description": catalog.String(pl.Description),
				}))
			}
			return catalog.Array(items...)
		},
		set: func(p *Profile, v catalog.Value) error {
			items, ok := v.AsArray()
			if !ok {
				return fmt.Errorf("want array, got %s", v.Type)
			}
			out := make([]Plugin, 0, len(items))
			for _, it := range items {
				if name, ok := it.AsString(); ok {
					out = append(out, Plugin{Name: name, Filename: "internal-pdf-viewer", Description: "Portable Document Format"})
					continue
				}
				out = append(out, Plugin{
					Name:        it.StringField("name"),
					Filename:    it.StringField("filename"),
					Description: it.StringField("description"),
				})
			}
			p.Plugins = out
			return nil
		},
	},
}

func pairedGPUField(ptr func(p *Profile) (self *string, other string)) field {
	return field{
		get: func(p *Profile) catalog.Value {
			s, _ := ptr(p)
			return catalog.String(*s)
		},
		set: func(p *Profile, v catalog.Value) error {
			s, ok := v.AsString()
			if !ok {
				return fmt.Errorf("want string, got %s", v.Type)
			}
			self, other := ptr(p)
			if (s == "") != (other == "") {
				return fmt.Errorf("webgl vendor and renderer must be set together; use %s", catalog.KeyGPU)
			}
			*self = s
			return nil
		},
	}
}

// Keys lists every editable field key in sorted order.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get reads a field by trait key.
func (p *Profile) Get(key string) (catalog.Value, bool) {
	f, ok := fields[key]
	if !ok {
		return catalog.Value{}, false
	}
	return f.get(p), true
}

// Set writes a field by trait key and drops any compiled artifacts.
func (p *Profile) Set(key string, v catalog.Value) error {
	f, ok := fields[key]
	if !ok {
		return schemas.E(schemas.KindInvalidArgument, "fingerprint.Set", key, fmt.Errorf("unknown field"))
	}
	if err := f.set(p, v); err != nil {
		return schemas.E(schemas.KindInvalidArgument, "fingerprint.Set", key, err)
	}
	p.Invalidate()
	return nil
}

// foldPairs merges individually keyed halves of a paired trait into the pair
// key so both halves are applied atomically.
func foldPairs(values map[string]catalog.Value) map[string]catalog.Value {
	out := make(map[string]catalog.Value, len(values))
	for k, v := range values {
		out[k] = v
	}
	vendor, hasVendor := out[catalog.KeyWebGLVendor]
	renderer, hasRenderer := out[catalog.KeyWebGLRenderer]
	if hasVendor && hasRenderer {
		out[catalog.KeyGPU] = catalog.Object(map[string]catalog.Value{"vendor": vendor, "renderer": renderer})
		delete(out, catalog.KeyWebGLVendor)
		delete(out, catalog.KeyWebGLRenderer)
	}
	return out
}

// ApplyOverrides returns a copy of base with the sparse override map merged
// over it. Keys are applied in sorted order so the result does not depend on
// map iteration.
func ApplyOverrides(base *Profile, overrides map[string]catalog.Value) (*Profile, error) {
	out := base.Clone()
	folded := foldPairs(overrides)
	keys := make([]string, 0, len(folded))
	for k := range folded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := out.Set(k, folded[k]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// defaultVersion is the Chrome build assumed when a profile carries none.
const defaultVersion = "142.0.7444.176"

// Defaults returns a complete, internally consistent profile for an OS. It is
// the base layer that sparse overrides and missing compiled fields fall back to.
func Defaults(os string) *Profile {
	if _, ok := osTable[os]; !ok {
		os = catalog.OSWindows
	}
	class := DeviceClassFor(os)
	platform, vendor := PlatformFor(os)
	ua := UserAgent(os, defaultVersion)
	chUa, chPlatform, chMobile := ClientHints(ua, platform)
	p := &Profile{
		OS:                  os,
		DeviceClass:         class,
		BrowserVersion:      defaultVersion,
		UserAgent:           ua,
		Platform:            platform,
		Vendor:              vendor,
		Locale:              "en-US",
		Timezone:            "America/New_York",
		Languages:           LanguagesFor("en-US"),
		Viewport:            Viewport{Width: 1920, Height: 1080},
		HardwareConcurrency: 8,
		DeviceMemory:        8,
		MaxTouchPoints:      TouchPointsFor(class),
		CanvasNoise:         catalog.NoiseOn,
		WebGLNoise:          catalog.NoiseOn,
		AudioNoise:          catalog.NoiseOn,
		ConnectionType:      "4g",
		RTT:                 50,
		Downlink:            10,
		SecChUa:             chUa,
		SecChUaPlatform:     chPlatform,
		SecChUaMobile:       chMobile,
		Fonts:               []string{},
		Plugins:             PluginsFor(class),
	}
	if class == catalog.DeviceMobile {
		p.Viewport = Viewport{Width: 412, Height: 915}
		p.RTT, p.Downlink = 100, 5.5
	}
	return p
}
