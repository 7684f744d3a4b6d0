package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Backfill to rows written before a column existed.
const (
	DefaultCategory  = "General"
	DefaultWeight    = 1.0
	DefaultValueType = TypeString
)

// Backfill replaces legacy empty columns with their documented defaults. It
// must run before Merge so natural keys compare equal across old and new rows.
func (s *Snapshot) Backfill() int {
	fixed := 0
	for i := range s.Categories {
		if s.Categories[i].DisplayOrder == 0 {
			s.Categories[i].DisplayOrder = i + 1
			fixed++
		}
	}
	for i := range s.Definitions {
		d := &s.Definitions[i]
		if d.ValueType == "" {
			d.ValueType = DefaultValueType
			fixed++
		}
		if d.DisplayName == "" {
			d.DisplayName = d.Key
			fixed++
		}
		if d.Category == "" {
			d.Category = DefaultCategory
			fixed++
		}
	}
	for i := range s.Options {
		if s.Options[i].Weight <= 0 {
			s.Options[i].Weight = DefaultWeight
			fixed++
		}
	}
	for i := range s.Presets {
		if s.Presets[i].Items == nil {
			s.Presets[i].Items = map[string]Value{}
			fixed++
		}
	}
	return fixed
}

func optionKey(o Option) string {
	raw, _ := json.Marshal(o.Value)
	return o.DefinitionKey + "\x00" + string(raw) + "\x00" + o.Region + "\x00" + o.Vendor + "\x00" + o.DeviceClass + "\x00" + o.OS
}

// Merge adds every row of seed that s does not already have, matched by
// natural key. Existing rows are never removed or rewritten, so merging the
// same seed twice is a no-op. It returns the number of rows added.
func (s *Snapshot) Merge(seed Snapshot) int {
	s.Backfill()
	seed.Backfill()
	added := 0

	categories := make(map[string]bool, len(s.Categories))
	maxCategory := 0
	for _, c := range s.Categories {
		categories[c.Name] = true
		maxCategory = max(maxCategory, c.ID)
	}
	for _, c := range seed.Categories {
		if categories[c.Name] {
			continue
		}
		maxCategory++
		c.ID = maxCategory
		s.Categories = append(s.Categories, c)
		categories[c.Name] = true
		added++
	}

	definitions := make(map[string]bool, len(s.Definitions))
	maxDefinition := 0
	for _, d := range s.Definitions {
		definitions[d.Key] = true
		maxDefinition = max(maxDefinition, d.ID)
	}
	for _, d := range seed.Definitions {
		if definitions[d.Key] {
			continue
		}
		maxDefinition++
		d.ID = maxDefinition
		s.Definitions = append(s.Definitions, d)
		definitions[d.Key] = true
		added++
	}

	options := make(map[string]bool, len(s.Options))
	maxOption := 0
	for _, o := range s.Options {
		options[optionKey(o)] = true
		maxOption = max(maxOption, o.ID)
	}
	for _, o := range seed.Options {
		k := optionKey(o)
		if options[k] {
			continue
		}
		maxOption++
		o.ID = maxOption
		s.Options = append(s.Options, o)
		options[k] = true
		added++
	}

	presets := make(map[string]bool, len(s.Presets))
	maxPreset := 0
	for _, p := range s.Presets {
		presets[p.Name] = true
		maxPreset = max(maxPreset, p.ID)
	}
	for _, p := range seed.Presets {
		if presets[p.Name] {
			continue
		}
		maxPreset++
		p.ID = maxPreset
		s.Presets = append(s.Presets, p)
		presets[p.Name] = true
		added++
	}
	return added
}

// seedFile is the YAML layout of an extra seed file.
type seedFile struct {
	Categories  []Category `yaml:"categories"`
	Definitions []struct {
		Key          string      `yaml:"key"`
		DisplayName  string      `yaml:"display_name"`
		Category     string      `yaml:"category"`
		ValueType    ValueType   `yaml:"value_type"`
		Default      interface{} `yaml:"default"`
		Constraints  Constraints `yaml:"constraints"`
		Dependencies []string    `yaml:"dependencies"`
		Conflicts    []string    `yaml:"conflicts"`
	} `yaml:"definitions"`
	Options []struct {
		Definition  string      `yaml:"definition"`
		Value       interface{} `yaml:"value"`
		Weight      float64     `yaml:"weight"`
		Region      string      `yaml:"region"`
		Vendor      string      `yaml:"vendor"`
		DeviceClass string      `yaml:"device_class"`
		OS          string      `yaml:"os"`
	} `yaml:"options"`
	Presets []struct {
		Name  string                 `yaml:"name"`
		Items map[string]interface{} `yaml:"items"`
	} `yaml:"presets"`
}

// LoadSeed parses a YAML seed document. Option values are typed against the
// definitions in the same document or, failing that, in base.
func LoadSeed(r io.Reader, base Snapshot) (Snapshot, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return Snapshot{}, fmt.Errorf("catalog: parse seed: %w", err)
	}

	types := make(map[string]ValueType)
	for _, d := range base.Definitions {
		types[d.Key] = d.ValueType
	}

	var out Snapshot
	out.Categories = f.Categories
	for _, d := range f.Definitions {
		def, err := FromInterface(d.Default)
		if err != nil {
			return Snapshot{}, fmt.Errorf("catalog: definition %s default: %w", d.Key, err)
		}
		vt := d.ValueType
		if vt == "" {
			vt = DefaultValueType
		}
		if def, err = coerce(vt, def); err != nil {
			return Snapshot{}, fmt.Errorf("catalog: definition %s default: %w", d.Key, err)
		}
		types[d.Key] = vt
		out.Definitions = append(out.Definitions, Definition{
			Key:          d.Key,
			DisplayName:  d.DisplayName,
			Category:     d.Category,
			ValueType:    vt,
			Default:      def,
			Constraints:  d.Constraints,
			Dependencies: d.Dependencies,
			Conflicts:    d.Conflicts,
		})
	}
	for _, o := range f.Options {
		v, err := FromInterface(o.Value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("catalog: option for %s: %w", o.Definition, err)
		}
		if vt, ok := types[o.Definition]; ok {
			if v, err = coerce(vt, v); err != nil {
				return Snapshot{}, fmt.Errorf("catalog: option for %s: %w", o.Definition, err)
			}
		}
		out.Options = append(out.Options, Option{
			DefinitionKey: o.Definition,
			Value:         v,
			Weight:        o.Weight,
			Region:        o.Region,
			Vendor:        o.Vendor,
			DeviceClass:   o.DeviceClass,
			OS:            o.OS,
		})
	}
	for _, p := range f.Presets {
		items := make(map[string]Value, len(p.Items))
		for k, raw := range p.Items {
			v, err := FromInterface(raw)
			if err != nil {
				return Snapshot{}, fmt.Errorf("catalog: preset %s item %s: %w", p.Name, k, err)
			}
			items[k] = v
		}
		out.Presets = append(out.Presets, Preset{Name: p.Name, Items: items})
	}
	return out, nil
}

// LoadSeedFiles merges the built-in seed with every file in paths, in order.
func LoadSeedFiles(paths []string) (Snapshot, error) {
	snap := Snapshot{}
	snap.Merge(DefaultSeed())
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return Snapshot{}, fmt.Errorf("catalog: open seed %s: %w", path, err)
		}
		extra, err := LoadSeed(f, snap)
		f.Close()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Merge(extra)
	}
	return snap, nil
}
