package validator

import "fmt"

var consistencyAdvice = map[string]string{
	"ua_platform_match":           "User agent and navigator.platform describe different operating systems; regenerate or edit one to match",
	"platform_client_hints_match": "sec-ch-ua-platform does not match navigator.platform; derive the Client-Hints from the platform",
	"locale_in_languages":         "navigator.languages does not contain the locale; put the locale first in the language list",
}

var missingAdvice = map[string]string{
	"plugins_present":      "Plugin list is missing; desktop Chrome exposes the built-in PDF viewer plugins",
	"languages_present":    "Language list is missing; derive navigator.languages from the locale",
	"client_hints_present": "Client-Hints are missing; derive sec-ch-ua from the user agent version",
}

// recommend renders one line per failing or degraded check, grouped in a fixed
// order: consistency, realism, missing anti-detection data, then risk flags.
func recommend(r Report, consistency, realism, risk []Check) []string {
	var out []string

	for _, c := range consistency {
		if c.Applicable && !c.Passed {
			out = append(out, fmt.Sprintf("%s (%s)", consistencyAdvice[c.Name], c.Detail))
		}
	}

	for _, c := range realism {
		if c.Passed {
			continue
		}
		switch c.Name {
		case "browser_version_recency":
			out = append(out, fmt.Sprintf("Browser version is dated (%s); move to a recent Chrome release", c.Detail))
		case "hardware_plausible":
			out = append(out, fmt.Sprintf("Hardware concurrency is uncommon (%s); 8 to 16 cores is the typical range", c.Detail))
		case "gpu_present":
			out = append(out, "WebGL vendor and renderer are empty; pick a GPU pair for the operating system")
		}
	}

	byName := map[string]Check{}
	for _, c := range risk {
		byName[c.Name] = c
	}
	for _, name := range []string{"plugins_present", "languages_present", "client_hints_present"} {
		if !byName[name].Passed {
			out = append(out, missingAdvice[name])
		}
	}
	if r.Degraded {
		out = append(out, "Compiled overrides fell back to defaults for missing fields; fill them in and recompile")
	}

	if !byName["headless_marker"].Passed {
		out = append(out, "User agent contains a headless browser marker; remove it")
	}
	if !byName["desktop_touch_points"].Passed {
		out = append(out, "Desktop profile reports touch points; set maxTouchPoints to 0")
	}

	if len(out) == 0 {
		return []string{NoActionNeeded}
	}
	return out
}
