// Package validator scores fingerprint profiles for internal consistency,
// realism and detection risk. Scoring is pure: no I/O and no shared state.
package validator

import (
	"strconv"
	"strings"

	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// Category groups checks into the three sub-scores.
type Category string

const (
	CategoryConsistency Category = "consistency"
	CategoryRealism     Category = "realism"
	CategoryRisk        Category = "cloudflare_risk"
)

// RiskLevel is the coarse verdict derived from the scores.
type RiskLevel string

const (
	RiskSafe   RiskLevel = "safe"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DefaultNewestMajor is used when no newer Chrome major is configured.
const DefaultNewestMajor = 143

// Check is the outcome of one rule. For risk checks Weight is the penalty the
// rule adds when it fails.
type Check struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Applicable bool     `json:"applicable"`
	Passed     bool     `json:"passed"`
	Score      int      `json:"score"`
	Weight     float64  `json:"weight"`
	Detail     string   `json:"detail,omitempty"`
}

// Report is the full result of one validation run.
type Report struct {
	ConsistencyScore    int       `json:"consistencyScore"`
	RealismScore        int       `json:"realismScore"`
	CloudflareRiskScore int       `json:"cloudflareRiskScore"`
	TotalScore          int       `json:"totalScore"`
	RiskLevel           RiskLevel `json:"riskLevel"`
	Degraded            bool      `json:"degraded,omitempty"`
	Checks              []Check   `json:"checks"`
	Recommendations     []string  `json:"recommendations"`
}

// NoActionNeeded is the sole recommendation of a clean report.
const NoActionNeeded = "No action needed: the profile is consistent and low risk."

// Validator holds scoring parameters. The zero value is not usable; call New.
type Validator struct {
	newestMajor int
}

// New creates a Validator from configuration.
func New(cfg config.ValidatorConfig) *Validator {
	newest := cfg.NewestMajor
	if newest <= 0 {
		newest = DefaultNewestMajor
	}
	return &Validator{newestMajor: newest}
}

// Validate scores p with default parameters.
func Validate(p *fingerprint.Profile) Report {
	return New(config.ValidatorConfig{}).Validate(p)
}

// Validate scores p. It never fails; missing data lowers scores instead.
func (v *Validator) Validate(p *fingerprint.Profile) Report {
	var r Report
	consistency := consistencyChecks(p)
	realism := v.realismChecks(p)
	risk := riskChecks(p)

	r.ConsistencyScore = consistencyScore(consistency)
	r.RealismScore = average(realism)
	r.CloudflareRiskScore = riskScore(risk)
	r.TotalScore = (r.ConsistencyScore + r.RealismScore + (100 - r.CloudflareRiskScore)) / 3
	r.RiskLevel = riskLevel(r.TotalScore, r.CloudflareRiskScore)
	r.Degraded = p.Degraded

	r.Checks = append(append(append(r.Checks, consistency...), realism...), risk...)
	r.Recommendations = recommend(r, consistency, realism, risk)
	return r
}

func consistencyChecks(p *fingerprint.Profile) []Check {
	checks := make([]Check, 0, 3)

	uaPlatform := Check{Name: "ua_platform_match", Category: CategoryConsistency, Weight: 1}
	if p.UserAgent != "" && p.Platform != "" {
		uaPlatform.Applicable = true
		uaFamily := fingerprint.FamilyFromUserAgent(p.UserAgent)
		platformFamily := fingerprint.FamilyFromPlatform(p.Platform)
		uaPlatform.Passed = uaFamily != "" && uaFamily == platformFamily
		uaPlatform.Detail = "user agent reports " + orUnknown(uaFamily) + ", platform reports " + orUnknown(platformFamily)
	}
	checks = append(checks, uaPlatform)

	hints := Check{Name: "platform_client_hints_match", Category: CategoryConsistency, Weight: 1}
	if p.Platform != "" && p.SecChUaPlatform != "" {
		hints.Applicable = true
		want := fingerprint.ClientHintPlatform(p.Platform)
		hints.Passed = strings.Contains(strings.ToLower(p.SecChUaPlatform), strings.ToLower(want))
		hints.Detail = "sec-ch-ua-platform " + p.SecChUaPlatform + ", expected " + strconv.Quote(want)
	}
	checks = append(checks, hints)

	locale := Check{Name: "locale_in_languages", Category: CategoryConsistency, Weight: 1}
	if p.Locale != "" && len(p.Languages) > 0 {
		locale.Applicable = true
		for _, l := range p.Languages {
			if strings.EqualFold(l, p.Locale) {
				locale.Passed = true
				break
			}
		}
		locale.Detail = "locale " + p.Locale + ", languages " + strings.Join(p.Languages, ",")
	}
	checks = append(checks, locale)

	for i := range checks {
		if checks[i].Passed {
			checks[i].Score = 100
		}
	}
	return checks
}

// consistencyScore is the weighted pass percentage over applicable checks.
// Inapplicable checks leave the denominator; none applicable scores 100.
func consistencyScore(checks []Check) int {
	var passed, total float64
	for _, c := range checks {
		if !c.Applicable {
			continue
		}
		total += c.Weight
		if c.Passed {
			passed += c.Weight
		}
	}
	if total == 0 {
		return 100
	}
	return int(passed * 100 / total)
}

func (v *Validator) realismChecks(p *fingerprint.Profile) []Check {
	version := Check{Name: "browser_version_recency", Category: CategoryRealism, Applicable: true, Weight: 1}
	major, ok := fingerprint.MajorVersion(p.BrowserVersion)
	if !ok {
		major, ok = fingerprint.ChromeMajor(p.UserAgent)
	}
	if ok {
		version.Score = v.recency(major)
		version.Detail = "major version " + strconv.Itoa(major) + ", newest " + strconv.Itoa(v.newestMajor)
	} else {
		version.Score = 60
		version.Detail = "browser version is not parseable"
	}

	hardware := Check{Name: "hardware_plausible", Category: CategoryRealism, Applicable: true, Weight: 1, Score: 70}
	if p.HardwareConcurrency >= 8 && p.HardwareConcurrency <= 16 {
		hardware.Score = 100
	}
	hardware.Detail = strconv.Itoa(p.HardwareConcurrency) + " logical cores"

	gpu := Check{Name: "gpu_present", Category: CategoryRealism, Applicable: true, Weight: 1, Score: 50}
	if p.WebGLRenderer != "" {
		gpu.Score = 100
	}

	complete := Check{Name: "anti_detection_data_complete", Category: CategoryRealism, Applicable: true, Weight: 1, Score: 60}
	if hasPlugins(p) && hasLanguages(p) && hasClientHints(p) {
		complete.Score = 100
	}

	checks := []Check{version, hardware, gpu, complete}
	for i := range checks {
		checks[i].Passed = checks[i].Score == 100
	}
	return checks
}

// recency buckets a major version against the newest known one.
func (v *Validator) recency(major int) int {
	switch behind := v.newestMajor - major; {
	case behind <= 2:
		return 100
	case behind <= 6:
		return 85
	case behind <= 12:
		return 70
	default:
		return 50
	}
}

func average(checks []Check) int {
	if len(checks) == 0 {
		return 0
	}
	sum := 0
	for _, c := range checks {
		sum += c.Score
	}
	return sum / len(checks)
}

var headlessMarkers = []string{"headless", "phantomjs", "slimerjs"}

func riskChecks(p *fingerprint.Profile) []Check {
	ua := strings.ToLower(p.UserAgent)
	headless := false
	for _, m := range headlessMarkers {
		if strings.Contains(ua, m) {
			headless = true
			break
		}
	}

	checks := []Check{
		{Name: "headless_marker", Weight: 30, Passed: !headless},
		{Name: "plugins_present", Weight: 20, Passed: hasPlugins(p)},
		{Name: "languages_present", Weight: 20, Passed: hasLanguages(p)},
		{Name: "client_hints_present", Weight: 20, Passed: hasClientHints(p)},
		{Name: "desktop_touch_points", Weight: 10, Passed: !(p.MaxTouchPoints > 0 && isDesktop(p))},
	}
	for i := range checks {
		checks[i].Category = CategoryRisk
		checks[i].Applicable = true
		if checks[i].Passed {
			checks[i].Score = 100
		}
	}
	return checks
}

func riskScore(checks []Check) int {
	score := 0
	for _, c := range checks {
		if !c.Passed {
			score += int(c.Weight)
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// riskLevel maps the total onto a level, then escalates it when the risk score
// alone is high enough that a good total would hide it.
func riskLevel(total, risk int) RiskLevel {
	level := RiskHigh
	switch {
	case total >= 90:
		level = RiskSafe
	case total >= 70:
		level = RiskLow
	case total >= 50:
		level = RiskMedium
	}
	switch {
	case risk >= 80:
		level = RiskHigh
	case risk >= 50 && (level == RiskSafe || level == RiskLow):
		level = RiskMedium
	}
	return level
}

func hasPlugins(p *fingerprint.Profile) bool     { return p.Plugins != nil }
func hasLanguages(p *fingerprint.Profile) bool   { return len(p.Languages) > 0 }
func hasClientHints(p *fingerprint.Profile) bool { return p.SecChUa != "" }

// isDesktop infers the device class from the platform, then the user agent,
// and only then trusts the stored class.
func isDesktop(p *fingerprint.Profile) bool {
	family := fingerprint.FamilyFromPlatform(p.Platform)
	if family == "" {
		family = fingerprint.FamilyFromUserAgent(p.UserAgent)
	}
	if family == "" {
		return p.DeviceClass == catalog.DeviceDesktop
	}
	return family != catalog.OSAndroid
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
