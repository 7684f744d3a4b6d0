package catalog

// Operating systems the built-in seed carries pools for.
const (
	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"
	OSAndroid = "android"
)

// DesktopOSes lists the desktop systems in seed order.
var DesktopOSes = []string{OSWindows, OSMacOS, OSLinux}

// Trait keys of the built-in seed.
const (
	KeyLocalePair      = "locale.pair"
	KeyLocale          = "locale.locale"
	KeyTimezone        = "locale.timezone"
	KeyBrowserVersion  = "browser.version"
	KeyUserAgent       = "browser.user_agent"
	KeyPlatform        = "browser.platform"
	KeyVendor          = "browser.vendor"
	KeyLanguages       = "browser.languages"
	KeyPlugins         = "browser.plugins"
	KeyCores           = "device.hardware_concurrency"
	KeyMemory          = "device.device_memory"
	KeyTouchPoints     = "device.max_touch_points"
	KeyViewport        = "device.viewport"
	KeyGPU             = "graphics.webgl.pair"
	KeyWebGLVendor     = "graphics.webgl.vendor"
	KeyWebGLRenderer   = "graphics.webgl.renderer"
	KeyCanvasNoise     = "graphics.canvas.noise"
	KeyWebGLNoise      = "graphics.webgl.noise"
	KeyAudioNoise      = "graphics.audio.noise"
	KeyFontPool        = "graphics.fonts.pool"
	KeyFonts           = "graphics.fonts"
	KeyNetwork         = "network.profile"
	KeyConnectionType  = "network.connection_type"
	KeyRTT             = "network.rtt"
	KeyDownlink        = "network.downlink"
	KeySecChUa         = "headers.sec_ch_ua"
	KeySecChUaPlatform = "headers.sec_ch_ua_platform"
	KeySecChUaMobile   = "headers.sec_ch_ua_mobile"
	KeyNoiseSeed       = "privacy.noise_seed"
)

// Noise modes for the canvas, WebGL and audio injectors.
const (
	NoiseOn  = "noise"
	NoiseOff = "off"
)

// DefaultSeed returns the built-in catalog content. Each call returns a fresh copy.
func DefaultSeed() Snapshot {
	s := Snapshot{
		Categories: []Category{
			{ID: 1, Name: "Browser", DisplayOrder: 1},
			{ID: 2, Name: "Device", DisplayOrder: 2},
			{ID: 3, Name: "Graphics", DisplayOrder: 3},
			{ID: 4, Name: "Network", DisplayOrder: 4},
			{ID: 5, Name: "Locale", DisplayOrder: 5},
			{ID: 6, Name: "Privacy", DisplayOrder: 6},
			{ID: 7, Name: "Headers", DisplayOrder: 7},
		},
		Definitions: seedDefinitions(),
		Presets:     seedPresets(),
	}
	s.Options = seedOptions()
	for i := range s.Definitions {
		s.Definitions[i].ID = i + 1
	}
	for i := range s.Options {
		s.Options[i].ID = i + 1
	}
	for i := range s.Presets {
		s.Presets[i].ID = i + 1
	}
	return s
}

func def(key, name, category string, vt ValueType, dflt Value, deps ...string) Definition {
	return Definition{Key: key, DisplayName: name, Category: category, ValueType: vt, Default: dflt, Dependencies: deps}
}

func seedDefinitions() []Definition {
	noise := Constraints{Enum: []string{NoiseOn, NoiseOff}}
	defs := []Definition{
		def(KeyLocalePair, "Locale / timezone pair", "Locale", TypeObject,
			Object(map[string]Value{"locale": String("en-US"), "timezone": String("America/New_York")})),
		def(KeyLocale, "Locale", "Locale", TypeString, String("en-US"), KeyLocalePair),
		def(KeyTimezone, "Timezone", "Locale", TypeString, String("America/New_York"), KeyLocalePair),
		def(KeyBrowserVersion, "Browser version", "Browser", TypeString, String("142.0.7444.176")),
		def(KeyUserAgent, "User agent", "Browser", TypeString, String(""), KeyBrowserVersion),
		def(KeyPlatform, "navigator.platform", "Browser", TypeString, String("Win32")),
		def(KeyVendor, "navigator.vendor", "Browser", TypeString, String("Google Inc."), KeyPlatform),
		def(KeyLanguages, "navigator.languages", "Browser", TypeArray, Strings("en-US", "en"), KeyLocale),
		def(KeyPlugins, "navigator.plugins", "Browser", TypeArray, Array(), KeyUserAgent),
		def(KeyCores, "Hardware concurrency", "Device", TypeNumber, Int(8)),
		def(KeyMemory, "Device memory (GB)", "Device", TypeNumber, Int(8)),
		def(KeyTouchPoints, "Max touch points", "Device", TypeNumber, Int(0)),
		def(KeyViewport, "Viewport", "Device", TypeObject,
			Object(map[string]Value{"width": Int(1920), "height": Int(1080)})),
		def(KeyGPU, "WebGL vendor / renderer pair", "Graphics", TypeObject, Object(map[string]Value{})),
		def(KeyWebGLVendor, "WebGL vendor", "Graphics", TypeString, String(""), KeyGPU),
		def(KeyWebGLRenderer, "WebGL renderer", "Graphics", TypeString, String(""), KeyGPU),
		def(KeyCanvasNoise, "Canvas noise", "Privacy", TypeEnum, Enum(NoiseOn)),
		def(KeyWebGLNoise, "WebGL noise", "Privacy", TypeEnum, Enum(NoiseOn)),
		def(KeyAudioNoise, "Audio noise", "Privacy", TypeEnum, Enum(NoiseOn)),
		def(KeyFontPool, "Font pool", "Graphics", TypeString, String("")),
		def(KeyFonts, "Fonts", "Graphics", TypeArray, Array(), KeyFontPool),
		def(KeyNetwork, "Network profile", "Network", TypeObject,
			Object(map[string]Value{"type": String("4g"), "rtt": Int(50), "downlink": Number(10)})),
		def(KeyConnectionType, "Connection type", "Network", TypeString, String("4g"), KeyNetwork),
		def(KeyRTT, "RTT (ms)", "Network", TypeNumber, Int(50), KeyNetwork),
		def(KeyDownlink, "Downlink (Mbps)", "Network", TypeNumber, Number(10), KeyNetwork),
		def(KeySecChUa, "sec-ch-ua", "Headers", TypeString, String(""), KeyUserAgent),
		def(KeySecChUaPlatform, "sec-ch-ua-platform", "Headers", TypeString, String(""), KeyPlatform),
		def(KeySecChUaMobile, "sec-ch-ua-mobile", "Headers", TypeString, String("?0"), KeyUserAgent),
		def(KeyNoiseSeed, "Noise seed", "Privacy", TypeNumber, Int(0)),
	}
	for i := range defs {
		switch defs[i].Key {
		case KeyCanvasNoise, KeyWebGLNoise, KeyAudioNoise:
			defs[i].Constraints = noise
		}
	}
	return defs
}

func opt(key string, v Value, weight float64) Option {
	return Option{DefinitionKey: key, Value: v, Weight: weight}
}

func seedOptions() []Option {
	var out []Option

	locales := []struct {
		locale, timezone, region string
		weight                   float64
	}{
		{"en-US", "America/New_York", "us", 5},
		{"en-US", "America/Chicago", "us", 3},
		{"en-US", "America/Los_Angeles", "us", 3},
		{"en-GB", "Europe/London", "gb", 3},
		{"de-DE", "Europe/Berlin", "de", 2},
		{"fr-FR", "Europe/Paris", "fr", 2},
		{"es-ES", "Europe/Madrid", "es", 1},
		{"pt-BR", "America/Sao_Paulo", "br", 1},
		{"ja-JP", "Asia/Tokyo", "jp", 1},
		{"zh-CN", "Asia/Shanghai", "cn", 2},
		{"ru-RU", "Europe/Moscow", "ru", 1},
	}
	for _, l := range locales {
		o := opt(KeyLocalePair, Object(map[string]Value{"locale": String(l.locale), "timezone": String(l.timezone)}), l.weight)
		o.Region = l.region
		out = append(out, o)
	}

	versions := []struct {
		version string
		weight  float64
	}{
		{"143.0.7499.110", 3},
		{"142.0.7444.176", 3},
		{"141.0.7390.123", 2},
		{"140.0.7339.208", 1},
		{"139.0.7258.155", 1},
	}
	for _, os := range append(append([]string(nil), DesktopOSes...), OSAndroid) {
		for _, v := range versions {
			o := opt(KeyBrowserVersion, String(v.version), v.weight)
			o.OS = os
			out = append(out, o)
		}
	}

	for _, c := range []struct {
		cores  int
		weight float64
		class  string
	}{
		{4, 2, DeviceDesktop}, {6, 1, DeviceDesktop}, {8, 4, DeviceDesktop}, {12, 2, DeviceDesktop}, {16, 2, DeviceDesktop},
		{4, 1, DeviceMobile}, {6, 1, DeviceMobile}, {8, 4, DeviceMobile},
	} {
		o := opt(KeyCores, Int(c.cores), c.weight)
		o.DeviceClass = c.class
		out = append(out, o)
	}
	for _, m := range []struct {
		gb     int
		weight float64
		class  string
	}{
		{4, 1, DeviceDesktop}, {8, 5, DeviceDesktop},
		{2, 1, DeviceMobile}, {4, 3, DeviceMobile}, {8, 2, DeviceMobile},
	} {
		o := opt(KeyMemory, Int(m.gb), m.weight)
		o.DeviceClass = m.class
		out = append(out, o)
	}

	for _, vp := range []struct {
		w, h   int
		weight float64
		class  string
		os     string
	}{
		{1920, 1080, 5, DeviceDesktop, ""},
		{1536, 864, 3, DeviceDesktop, ""},
		{1366, 768, 2, DeviceDesktop, ""},
		{2560, 1440, 1, DeviceDesktop, ""},
		{1440, 900, 3, DeviceDesktop, OSMacOS},
		{1512, 982, 2, DeviceDesktop, OSMacOS},
		{1728, 1117, 1, DeviceDesktop, OSMacOS},
		{412, 915, 3, DeviceMobile, ""},
		{393, 873, 2, DeviceMobile, ""},
		{360, 800, 2, DeviceMobile, ""},
	} {
		o := opt(KeyViewport, Object(map[string]Value{"width": Int(vp.w), "height": Int(vp.h)}), vp.weight)
		o.DeviceClass = vp.class
		o.OS = vp.os
		out = append(out, o)
	}

	for _, g := range seedGPUs {
		o := opt(KeyGPU, Object(map[string]Value{"vendor": String(g.vendor), "renderer": String(g.renderer)}), g.weight)
		o.OS = g.os
		o.Vendor = g.tag
		out = append(out, o)
	}

	for _, key := range []string{KeyCanvasNoise, KeyWebGLNoise} {
		out = append(out, opt(key, Enum(NoiseOn), 9), opt(key, Enum(NoiseOff), 1))
	}
	out = append(out, opt(KeyAudioNoise, Enum(NoiseOn), 8), opt(KeyAudioNoise, Enum(NoiseOff), 2))

	// Fonts go in fixed OS order so option IDs, and seeded sampling, are stable.
	for _, os := range append(append([]string(nil), DesktopOSes...), OSAndroid) {
		for _, f := range seedFonts[os] {
			o := opt(KeyFontPool, String(f), 1)
			o.OS = os
			out = append(out, o)
		}
	}

	for _, n := range []struct {
		kind     string
		rtt      int
		downlink float64
		weight   float64
		class    string
	}{
		{"4g", 50, 10, 4, DeviceDesktop},
		{"4g", 100, 5.6, 2, DeviceDesktop},
		{"4g", 150, 3.2, 1, DeviceDesktop},
		{"4g", 100, 5.5, 3, DeviceMobile},
		{"4g", 200, 2.1, 2, DeviceMobile},
		{"3g", 300, 1.4, 1, DeviceMobile},
	} {
		o := opt(KeyNetwork, Object(map[string]Value{"type": String(n.kind), "rtt": Int(n.rtt), "downlink": Number(n.downlink)}), n.weight)
		o.DeviceClass = n.class
		out = append(out, o)
	}

	return out
}

var seedGPUs = []struct {
	os, tag, vendor, renderer string
	weight                    float64
}{
	{OSWindows, "intel", "Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)", 4},
	{OSWindows, "intel", "Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 770 Direct3D11 vs_5_0 ps_5_0, D3D11)", 3},
	{OSWindows, "intel", "Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)", 3},
	{OSWindows, "nvidia", "Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 Direct3D11 vs_5_0 ps_5_0, D3D11)", 2},
	{OSWindows, "nvidia", "Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)", 3},
	{OSWindows, "nvidia", "Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 4070 Direct3D11 vs_5_0 ps_5_0, D3D11)", 1},
	{OSWindows, "amd", "Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)", 1},
	{OSMacOS, "apple", "Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M1, Unspecified Version)", 3},
	{OSMacOS, "apple", "Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M2, Unspecified Version)", 3},
	{OSMacOS, "apple", "Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M3 Pro, Unspecified Version)", 1},
	{OSMacOS, "intel", "Google Inc. (Intel Inc.)", "ANGLE (Intel Inc., Intel(R) Iris(TM) Plus Graphics 655, OpenGL 4.1)", 1},
	{OSLinux, "intel", "Google Inc. (Intel)", "ANGLE (Intel, Mesa Intel(R) UHD Graphics 620 (KBL GT2), OpenGL 4.6)", 3},
	{OSLinux, "amd", "Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon Graphics (radeonsi, renoir, LLVM 15.0.7), OpenGL 4.6)", 1},
	{OSLinux, "nvidia", "Google Inc. (NVIDIA Corporation)", "ANGLE (NVIDIA Corporation, NVIDIA GeForce GTX 1660/PCIe/SSE2, OpenGL 4.5.0)", 2},
	{OSAndroid, "qualcomm", "Qualcomm", "Adreno (TM) 740", 3},
	{OSAndroid, "qualcomm", "Qualcomm", "Adreno (TM) 650", 2},
	{OSAndroid, "arm", "ARM", "Mali-G78 MC14", 2},
	{OSAndroid, "arm", "ARM", "Mali-G710 MC10", 1},
}

var seedFonts = map[string][]string{
	OSWindows: {
		"Arial", "Arial Black", "Bahnschrift", "Calibri", "Cambria", "Cambria Math", "Candara",
		"Comic Sans MS", "Consolas", "Constantia", "Corbel", "Courier New", "Ebrima",
		"Franklin Gothic Medium", "Gabriola", "Gadugi", "Georgia", "HoloLens MDL2 Assets", "Impact",
		"Ink Free", "Javanese Text", "Leelawadee UI", "Lucida Console", "Lucida Sans Unicode",
		"Malgun Gothic", "Marlett", "Microsoft Himalaya", "Microsoft JhengHei", "Microsoft New Tai Lue",
		"Microsoft PhagsPa", "Microsoft Sans Serif", "Microsoft Tai Le", "Microsoft YaHei",
		"Microsoft Yi Baiti", "MingLiU-ExtB", "Mongolian Baiti", "MS Gothic", "MV Boli",
		"Myanmar Text", "Nirmala UI", "Palatino Linotype", "Segoe MDL2 Assets", "Segoe Print",
		"Segoe Script", "Segoe UI", "Segoe UI Emoji", "Segoe UI Historic", "Segoe UI Symbol",
		"SimSun", "Sitka Text", "Sylfaen", "Symbol", "Tahoma", "Times New Roman", "Trebuchet MS",
		"Verdana", "Webdings", "Wingdings", "Yu Gothic",
	},
	OSMacOS: {
		"American Typewriter", "Andale Mono", "Arial", "Arial Black", "Arial Hebrew", "Arial Narrow",
		"Arial Rounded MT Bold", "Arial Unicode MS", "Avenir", "Avenir Next", "Avenir Next Condensed",
		"Baskerville", "Big Caslon", "Bradley Hand", "Brush Script MT", "Chalkboard", "Chalkboard SE",
		"Chalkduster", "Charter", "Cochin", "Comic Sans MS", "Copperplate", "Courier", "Courier New",
		"Didot", "DIN Alternate", "DIN Condensed", "Futura", "Geneva", "Georgia", "Gill Sans",
		"Helvetica", "Helvetica Neue", "Herculanum", "Hoefler Text", "Impact", "Lucida Grande",
		"Luminari", "Marker Felt", "Menlo", "Monaco", "Noteworthy", "Optima", "Palatino",
		"Papyrus", "Phosphate", "Rockwell", "Savoye LET", "SignPainter", "Skia", "Snell Roundhand",
		"Tahoma", "Times", "Times New Roman", "Trattatello", "Trebuchet MS", "Verdana", "Zapfino",
	},
	OSLinux: {
		"Cantarell", "DejaVu Sans", "DejaVu Sans Mono", "DejaVu Serif", "Droid Sans", "Droid Sans Mono",
		"FreeMono", "FreeSans", "FreeSerif", "Liberation Mono", "Liberation Sans", "Liberation Sans Narrow",
		"Liberation Serif", "Noto Color Emoji", "Noto Mono", "Noto Sans", "Noto Sans CJK JP",
		"Noto Sans CJK SC", "Noto Sans Mono", "Noto Serif", "Noto Serif CJK SC", "Open Sans",
		"Ubuntu", "Ubuntu Condensed", "Ubuntu Mono", "URW Bookman", "URW Gothic", "Nimbus Mono PS",
		"Nimbus Roman", "Nimbus Sans", "Nimbus Sans Narrow", "P052", "C059", "D050000L",
		"Z003", "Standard Symbols PS", "Source Code Pro", "Source Sans Pro", "Lato", "Roboto",
	},
	OSAndroid: {
		"Roboto", "Roboto Condensed", "Roboto Mono", "Noto Sans", "Noto Serif", "Noto Color Emoji",
		"Noto Sans CJK SC", "Noto Sans CJK JP", "Noto Sans Devanagari", "Noto Sans Arabic",
		"Noto Sans Hebrew", "Noto Sans Thai", "Droid Sans Mono", "Cutive Mono", "Coming Soon",
		"Dancing Script", "Carrois Gothic SC", "Source Sans Pro", "Google Sans", "Product Sans",
		"Noto Sans Symbols", "Noto Naskh Arabic", "Noto Sans Bengali", "Noto Sans Tamil",
		"Noto Sans Telugu", "Noto Sans Kannada", "Noto Sans Malayalam", "Noto Sans Gujarati",
		"Noto Sans Gurmukhi", "Noto Sans Khmer", "Noto Sans Lao", "Noto Sans Myanmar",
		"Noto Sans Sinhala", "Noto Sans Georgian", "Noto Sans Armenian", "Noto Sans Ethiopic",
	},
}

func seedPresets() []Preset {
	return []Preset{
		{Name: "us-east", Items: map[string]Value{
			KeyLocale:   String("en-US"),
			KeyTimezone: String("America/New_York"),
		}},
		{Name: "germany", Items: map[string]Value{
			KeyLocale:   String("de-DE"),
			KeyTimezone: String("Europe/Berlin"),
		}},
		{Name: "china-mainland", Items: map[string]Value{
			KeyLocale:   String("zh-CN"),
			KeyTimezone: String("Asia/Shanghai"),
		}},
		{Name: "workstation", Items: map[string]Value{
			KeyCores:    Int(16),
			KeyMemory:   Int(8),
			KeyViewport: Object(map[string]Value{"width": Int(2560), "height": Int(1440)}),
		}},
		{Name: "privacy-quiet", Items: map[string]Value{
			KeyCanvasNoise: Enum(NoiseOff),
			KeyWebGLNoise:  Enum(NoiseOff),
			KeyAudioNoise:  Enum(NoiseOff),
		}},
	}
}
