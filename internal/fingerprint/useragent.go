package fingerprint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
)

// osTraits are the fields fully determined by the operating system.
type osTraits struct {
	class      string
	uaTemplate string // %s is the reduced Chrome version
	platform   string
	vendor     string
	chPlatform string
	touch      int
}

// Chrome freezes the UA platform tokens, so these templates match what a real
// browser of any minor version sends.
var osTable = map[string]osTraits{
	catalog.OSWindows: {
		class:      catalog.DeviceDesktop,
		uaTemplate: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
		platform:   "Win32",
		vendor:     "Google Inc.",
		chPlatform: "Windows",
	},
	catalog.OSMacOS: {
		class:      catalog.DeviceDesktop,
		uaTemplate: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
		platform:   "MacIntel",
		vendor:     "Apple Computer, Inc.",
		chPlatform: "macOS",
	},
	catalog.OSLinux: {
		class:      catalog.DeviceDesktop,
		uaTemplate: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
		platform:   "Linux x86_64",
		vendor:     "Google Inc.",
		chPlatform: "Linux",
	},
	catalog.OSAndroid: {
		class:      catalog.DeviceMobile,
		uaTemplate: "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Mobile Safari/537.36",
		platform:   "Linux armv81",
		vendor:     "Google Inc.",
		chPlatform: "Android",
		touch:      5,
	},
}

var osAliases = map[string]string{
	"windows": catalog.OSWindows, "win": catalog.OSWindows, "win32": catalog.OSWindows, "win64": catalog.OSWindows,
	"macos": catalog.OSMacOS, "mac": catalog.OSMacOS, "osx": catalog.OSMacOS, "darwin": catalog.OSMacOS, "macintel": catalog.OSMacOS,
	"linux": catalog.OSLinux, "ubuntu": catalog.OSLinux, "x11": catalog.OSLinux,
	"android": catalog.OSAndroid,
}

// NormalizeOS maps a user supplied OS name onto one of the catalog OS tags.
func NormalizeOS(name string) (string, error) {
	if os, ok := osAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return os, nil
	}
	return "", schemas.E(schemas.KindInvalidArgument, "fingerprint.NormalizeOS", name,
		fmt.Errorf("unsupported operating system %q", name))
}

// DeviceClassFor returns the device class implied by an OS tag.
func DeviceClassFor(os string) string {
	if t, ok := osTable[os]; ok {
		return t.class
	}
	return catalog.DeviceDesktop
}

// PlatformFor returns navigator.platform and navigator.vendor for an OS tag.
// The pair is never sampled on its own.
func PlatformFor(os string) (platform, vendor string) {
	t := osTable[os]
	return t.platform, t.vendor
}

// TouchPointsFor returns the fixed navigator.maxTouchPoints of a device class.
func TouchPointsFor(class string) int {
	if class == catalog.DeviceMobile {
		return osTable[catalog.OSAndroid].touch
	}
	return 0
}

// UserAgent builds the Chrome user agent string. Chrome reports the reduced
// form MAJOR.0.0.0 regardless of the full build number.
func UserAgent(os, version string) string {
	t, ok := osTable[os]
	if !ok {
		t = osTable[catalog.OSWindows]
	}
	return fmt.Sprintf(t.uaTemplate, reducedVersion(version))
}

func reducedVersion(version string) string {
	if major, ok := MajorVersion(version); ok {
		return strconv.Itoa(major) + ".0.0.0"
	}
	return version
}

// MajorVersion parses the leading component of a dotted version string.
func MajorVersion(version string) (int, bool) {
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

var chromeToken = regexp.MustCompile(`(?:Chrome|CriOS|HeadlessChrome)/(\d+)(?:\.[\d.]+)?`)

// ChromeMajor extracts the Chrome major version from a user agent string.
func ChromeMajor(ua string) (int, bool) {
	m := chromeToken.FindStringSubmatch(ua)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// FamilyFromUserAgent classifies a user agent into an OS tag, or "" when the
// string names none of the known systems.
func FamilyFromUserAgent(ua string) string {
	switch {
	case strings.Contains(ua, "Android"):
		return catalog.OSAndroid
	case strings.Contains(ua, "Windows"):
		return catalog.OSWindows
	case strings.Contains(ua, "Macintosh"), strings.Contains(ua, "Mac OS X"):
		return catalog.OSMacOS
	case strings.Contains(ua, "Linux"), strings.Contains(ua, "X11"), strings.Contains(ua, "CrOS"):
		return catalog.OSLinux
	}
	return ""
}

// FamilyFromPlatform classifies a navigator.platform value into an OS tag.
func FamilyFromPlatform(platform string) string {
	p := strings.ToLower(platform)
	switch {
	case strings.HasPrefix(p, "win"):
		return catalog.OSWindows
	case strings.HasPrefix(p, "mac"):
		return catalog.OSMacOS
	case strings.Contains(p, "arm"), strings.Contains(p, "aarch64"), p == "android":
		return catalog.OSAndroid
	case strings.HasPrefix(p, "linux"), strings.HasPrefix(p, "x11"):
		return catalog.OSLinux
	}
	return ""
}

// ClientHintPlatform returns the sec-ch-ua-platform brand for a
// navigator.platform value, unquoted.
func ClientHintPlatform(platform string) string {
	if t, ok := osTable[FamilyFromPlatform(platform)]; ok {
		return t.chPlatform
	}
	return "Unknown"
}

// Chromium's GREASE table for the fake brand of the sec-ch-ua list.
var (
	greaseChars    = []string{" ", "(", ":", "-", ".", "/", ")", ";", "=", "?", "_"}
	greaseVersions = []string{"8", "99", "24"}
	greaseOrders   = [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
)

// SecChUa renders the sec-ch-ua header Chrome sends for a major version. The
// GREASE brand and brand order are seeded by the major version exactly as
// Chromium does, so the value matches a real browser of that version.
func SecChUa(major int) string {
	grease := fmt.Sprintf(`"Not%sA%sBrand";v="%s"`,
		greaseChars[major%len(greaseChars)],
		greaseChars[(major+1)%len(greaseChars)],
		greaseVersions[major%len(greaseVersions)])
	order := greaseOrders[major%len(greaseOrders)]

	brands := make([]string, 3)
	brands[order[0]] = grease
	brands[order[1]] = fmt.Sprintf(`"Chromium";v="%d"`, major)
	brands[order[2]] = fmt.Sprintf(`"Google Chrome";v="%d"`, major)
	return strings.Join(brands, ", ")
}

// ClientHints derives the three low-entropy Client-Hints headers from a user
// agent and platform. secChUa is empty when the agent is not Chrome.
func ClientHints(ua, platform string) (secChUa, secChUaPlatform, secChUaMobile string) {
	if major, ok := ChromeMajor(ua); ok {
		secChUa = SecChUa(major)
	}
	secChUaPlatform = strconv.Quote(ClientHintPlatform(platform))
	secChUaMobile = "?0"
	if strings.Contains(ua, "Mobile") {
		secChUaMobile = "?1"
	}
	return secChUa, secChUaPlatform, secChUaMobile
}

// PluginsFor returns Chrome's fixed navigator.plugins list. Mobile Chrome
// exposes an empty, non-nil list.
func PluginsFor(class string) []Plugin {
	if class == catalog.DeviceMobile {
		return []Plugin{}
	}
	names := []string{"PDF Viewer", "Chrome PDF Viewer", "Chromium PDF Viewer", "Microsoft Edge PDF Viewer", "WebKit built-in PDF"}
	out := make([]Plugin, 0, len(names))
	for _, n := range names {
		out = append(out, Plugin{Name: n, Filename: "internal-pdf-viewer", Description: "Portable Document Format"})
	}
	return out
}

// LanguagesFor derives navigator.languages from a locale: the locale itself
// followed by its bare language, with English appended for non-English locales.
func LanguagesFor(locale string) []string {
	if locale == "" {
		return nil
	}
	out := []string{locale}
	lang, _, found := strings.Cut(locale, "-")
	if found && lang != "" {
		out = append(out, lang)
	}
	if lang != "en" {
		out = append(out, "en-US", "en")
	}
	return out
}
