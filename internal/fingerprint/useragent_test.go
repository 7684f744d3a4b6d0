package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
)

func TestSecChUa(t *testing.T) {
	// Values captured from real Chrome builds.
	assert.Equal(t, `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`, SecChUa(131))
	assert.Equal(t, `"Not(A:Brand";v="99", "Google Chrome";v="133", "Chromium";v="133"`, SecChUa(133))
}

func TestClientHints(t *testing.T) {
	ua := UserAgent(catalog.OSAndroid, "142.0.7444.176")
	chUa, platform, mobile := ClientHints(ua, "Linux armv81")
	assert.Equal(t, SecChUa(142), chUa)
	assert.Equal(t, `"Android"`, platform)
	assert.Equal(t, "?1", mobile)

	chUa, platform, mobile = ClientHints("Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0", "Linux x86_64")
	assert.Empty(t, chUa, "Firefox sends no sec-ch-ua")
	assert.Equal(t, `"Linux"`, platform)
	assert.Equal(t, "?0", mobile)
}

func TestNormalizeOS(t *testing.T) {
	for in, want := range map[string]string{
		"Windows": catalog.OSWindows,
		" MacOS ": catalog.OSMacOS,
		"darwin":  catalog.OSMacOS,
		"Linux":   catalog.OSLinux,
		"Android": catalog.OSAndroid,
	} {
		got, err := NormalizeOS(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := NormalizeOS("ios")
	assert.Error(t, err)
}

func TestFamilies(t *testing.T) {
	assert.Equal(t, catalog.OSWindows, FamilyFromPlatform("Win32"))
	assert.Equal(t, catalog.OSMacOS, FamilyFromPlatform("MacIntel"))
	assert.Equal(t, catalog.OSLinux, FamilyFromPlatform("Linux x86_64"))
	assert.Equal(t, catalog.OSAndroid, FamilyFromPlatform("Linux armv81"))
	assert.Equal(t, "", FamilyFromPlatform("PlayStation 4"))

	assert.Equal(t, catalog.OSAndroid, FamilyFromUserAgent(UserAgent(catalog.OSAndroid, "140.0.1.1")))
	assert.Equal(t, "", FamilyFromUserAgent("curl/8.4.0"))
}

func TestVersions(t *testing.T) {
	major, ok := MajorVersion("143.0.7499.110")
	assert.True(t, ok)
	assert.Equal(t, 143, major)

	_, ok = MajorVersion("latest")
	assert.False(t, ok)

	major, ok = ChromeMajor("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/120.0.6099.109 Safari/537.36")
	assert.True(t, ok)
	assert.Equal(t, 120, major)
}

func TestLanguagesFor(t *testing.T) {
	assert.Equal(t, []string{"en-US", "en"}, LanguagesFor("en-US"))
	assert.Equal(t, []string{"zh-CN", "zh", "en-US", "en"}, LanguagesFor("zh-CN"))
	assert.Nil(t, LanguagesFor(""))
}
