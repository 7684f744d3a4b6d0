package catalog

// Targeting dimensions shared by options and filters.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// Category groups trait definitions for display. Immutable after seeding.
type Category struct {
	ID           int    `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	DisplayOrder int    `json:"display_order" yaml:"display_order"`
}

// Constraints restricts the value space of a definition.
type Constraints struct {
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Definition describes one fingerprint dimension.
type Definition struct {
	ID          int         `json:"id"`
	Key         string      `json:"key"`
	DisplayName string      `json:"display_name"`
	Category    string      `json:"category"`
	ValueType   ValueType   `json:"value_type"`
	Default     Value       `json:"default"`
	Constraints Constraints `json:"constraints"`
	// Dependencies lists keys that must be resolved before this one.
	Dependencies []string `json:"dependencies,omitempty"`
	Conflicts    []string `json:"conflicts,omitempty"`
}

// Option is one weighted candidate value for a definition. Empty tags match
// any filter value.
type Option struct {
	ID            int     `json:"id"`
	DefinitionKey string  `json:"definition_key"`
	Value         Value   `json:"value"`
	Weight        float64 `json:"weight"`
	Region        string  `json:"region,omitempty"`
	Vendor        string  `json:"vendor,omitempty"`
	DeviceClass   string  `json:"device_class,omitempty"`
	OS            string  `json:"os,omitempty"`
}

// Preset is a named bundle of trait values used as a generation seed.
type Preset struct {
	ID    int              `json:"id"`
	Name  string           `json:"name"`
	Items map[string]Value `json:"items"`
}

// Filter biases sampling. OS is a hard scope; the other fields are soft and
// are dropped when no option matches them.
type Filter struct {
	OS          string
	Region      string
	Vendor      string
	DeviceClass string
}

func (f Filter) soft() bool {
	return f.Region != "" || f.Vendor != "" || f.DeviceClass != ""
}

func (o Option) matchesOS(os string) bool {
	return os == "" || o.OS == "" || o.OS == os
}

func (o Option) matchesSoft(f Filter) bool {
	return tagMatches(o.Region, f.Region) &&
		tagMatches(o.Vendor, f.Vendor) &&
		tagMatches(o.DeviceClass, f.DeviceClass)
}

func tagMatches(tag, want string) bool {
	return want == "" || tag == "" || tag == want
}

// Snapshot is the full catalog content as loaded from storage or a seed.
type Snapshot struct {
	Categories  []Category   `json:"categories"`
	Definitions []Definition `json:"definitions"`
	Options     []Option     `json:"options"`
	Presets     []Preset     `json:"presets"`
}
