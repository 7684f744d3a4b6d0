// Package catalog holds the trait reference data fingerprints are sampled from:
// categories, typed trait definitions, weighted options and named presets.
//
// A Catalog is built once from a Snapshot and is read-only afterwards, so it can
// be shared between goroutines without locking. Callers own the random source;
// sampling with the same seeded *rand.Rand over the same snapshot is deterministic.
package catalog

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
)

// Catalog is an immutable, indexed view over a Snapshot.
type Catalog struct {
	snapshot    Snapshot
	definitions map[string]Definition
	options     map[string][]Option
	presets     map[string]Preset
	order       []string
}

// New validates the snapshot and indexes it.
func New(snap Snapshot) (*Catalog, error) {
	c := &Catalog{
		snapshot:    snap,
		definitions: make(map[string]Definition, len(snap.Definitions)),
		options:     make(map[string][]Option),
		presets:     make(map[string]Preset, len(snap.Presets)),
	}

	for _, def := range snap.Definitions {
		if def.Key == "" {
			return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", "", fmt.Errorf("definition with empty key"))
		}
		if _, dup := c.definitions[def.Key]; dup {
			return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", def.Key, fmt.Errorf("duplicate definition key"))
		}
		if !def.ValueType.Valid() {
			return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", def.Key, fmt.Errorf("unknown value type %q", def.ValueType))
		}
		c.definitions[def.Key] = def
	}

	for _, def := range snap.Definitions {
		for _, dep := range def.Dependencies {
			if _, ok := c.definitions[dep]; !ok {
				return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", def.Key, fmt.Errorf("dependency %q does not exist", dep))
			}
		}
		for _, conflict := range def.Conflicts {
			if _, ok := c.definitions[conflict]; !ok {
				return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", def.Key, fmt.Errorf("conflict %q does not exist", conflict))
			}
		}
	}

	order, err := topoSort(snap.Definitions)
	if err != nil {
		return nil, err
	}
	c.order = order

	for _, opt := range snap.Options {
		if _, ok := c.definitions[opt.DefinitionKey]; !ok {
			return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", opt.DefinitionKey, fmt.Errorf("option references unknown definition"))
		}
		if opt.Weight <= 0 {
			return nil, schemas.E(schemas.KindInvalidArgument, "catalog.New", opt.DefinitionKey, fmt.Errorf("option weight must be positive, got %v", opt.Weight))
		}
		c.options[opt.DefinitionKey] = append(c.options[opt.DefinitionKey], opt)
	}

	for _, p := range snap.Presets {
		c.presets[p.Name] = p
	}
	return c, nil
}

// topoSort orders definitions so every key follows its dependencies. Ties keep
// snapshot order. A cycle is reported with the path that closes it.
func topoSort(defs []Definition) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	byKey := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byKey[d.Key] = d
	}
	state := make(map[string]int, len(defs))
	order := make([]string, 0, len(defs))
	var stack []string

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case done:
			return nil
		case visiting:
			return schemas.E(schemas.KindInvalidArgument, "catalog.New", key,
				fmt.Errorf("dependency cycle: %s -> %s", strings.Join(stack, " -> "), key))
		}
		state[key] = visiting
		stack = append(stack, key)
		for _, dep := range byKey[key].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[key] = done
		order = append(order, key)
		return nil
	}

	for _, d := range defs {
		if err := visit(d.Key); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// GetDefinition looks up a trait definition by key.
func (c *Catalog) GetDefinition(key string) (Definition, error) {
	def, ok := c.definitions[key]
	if !ok {
		return Definition{}, schemas.E(schemas.KindNotFound, "catalog.GetDefinition", key, nil)
	}
	return def, nil
}

// Definitions returns every definition in dependency order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.definitions[key])
	}
	return out
}

// ResolutionOrder returns definition keys ordered so dependencies come first.
func (c *Catalog) ResolutionOrder() []string {
	return append([]string(nil), c.order...)
}

// Categories returns the categories sorted by display order.
func (c *Catalog) Categories() []Category {
	out := append([]Category(nil), c.snapshot.Categories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// Snapshot returns the content the catalog was built from.
func (c *Catalog) Snapshot() Snapshot {
	return c.snapshot
}

// Candidates returns the options of key that satisfy filter, in insertion order.
// Options outside filter.OS are never returned. When the soft dimensions match
// nothing, the OS-scoped set is returned instead.
func (c *Catalog) Candidates(key string, filter Filter) ([]Option, error) {
	const op = "catalog.Candidates"
	if _, ok := c.definitions[key]; !ok {
		return nil, schemas.E(schemas.KindNotFound, op, key, nil)
	}
	all := c.options[key]
	if len(all) == 0 {
		return nil, schemas.E(schemas.KindNoOptionsAvailable, op, key, nil)
	}

	scoped := make([]Option, 0, len(all))
	for _, opt := range all {
		if opt.matchesOS(filter.OS) {
			scoped = append(scoped, opt)
		}
	}
	if len(scoped) == 0 {
		return nil, schemas.E(schemas.KindNoOptionsAvailable, op, key, fmt.Errorf("no option for os %q", filter.OS))
	}
	if !filter.soft() {
		return scoped, nil
	}

	matched := make([]Option, 0, len(scoped))
	for _, opt := range scoped {
		if opt.matchesSoft(filter) {
			matched = append(matched, opt)
		}
	}
	if len(matched) == 0 {
		return scoped, nil
	}
	return matched, nil
}

// Roulette performs a cumulative-weight draw over options. Ties resolve to the
// earlier option. It panics on an empty slice.
func Roulette(rng *rand.Rand, options []Option) Option {
	return options[rouletteIndex(rng, options)]
}

func rouletteIndex(rng *rand.Rand, options []Option) int {
	var total float64
	for _, o := range options {
		total += o.Weight
	}
	r := rng.Float64() * total
	var cum float64
	for i, o := range options {
		cum += o.Weight
		if r < cum {
			return i
		}
	}
	return len(options) - 1
}

// SampleOption draws one value for key.
func (c *Catalog) SampleOption(rng *rand.Rand, key string, filter Filter) (Value, error) {
	candidates, err := c.Candidates(key, filter)
	if err != nil {
		return Value{}, err
	}
	return Roulette(rng, candidates).Value, nil
}

// SampleDistinct draws up to n options for key without replacement. Fewer
// values are returned when the candidate set is smaller than n.
func (c *Catalog) SampleDistinct(rng *rand.Rand, key string, filter Filter, n int) ([]Value, error) {
	candidates, err := c.Candidates(key, filter)
	if err != nil {
		return nil, err
	}
	pool := append([]Option(nil), candidates...)
	out := make([]Value, 0, n)
	seen := make(map[string]bool, n)
	for len(out) < n && len(pool) > 0 {
		i := rouletteIndex(rng, pool)
		picked := pool[i]
		pool = append(pool[:i], pool[i+1:]...)
		id := picked.Value.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, picked.Value)
	}
	return out, nil
}

// Preset returns the items of a named preset.
func (c *Catalog) Preset(name string) (map[string]Value, error) {
	p, ok := c.presets[name]
	if !ok {
		return nil, schemas.E(schemas.KindNotFound, "catalog.Preset", name, nil)
	}
	items := make(map[string]Value, len(p.Items))
	for k, v := range p.Items {
		items[k] = v
	}
	return items, nil
}

// PresetNames lists the preset names in sorted order.
func (c *Catalog) PresetNames() []string {
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
