package catalog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIsAdditiveAndIdempotent(t *testing.T) {
	var snap Snapshot
	first := snap.Merge(DefaultSeed())
	require.Greater(t, first, 0)

	counts := func() [4]int {
		return [4]int{len(snap.Categories), len(snap.Definitions), len(snap.Options), len(snap.Presets)}
	}
	before := counts()

	assert.Equal(t, 0, snap.Merge(DefaultSeed()), "re-seeding adds nothing")
	assert.Equal(t, before, counts())

	// A seed that lacks rows must never remove them.
	assert.Equal(t, 0, snap.Merge(Snapshot{}))
	assert.Equal(t, before, counts())

	_, err := New(snap)
	require.NoError(t, err)
}

func TestMergeKeepsExistingRows(t *testing.T) {
	snap := Snapshot{
		Definitions: []Definition{{ID: 10, Key: KeyLocale, ValueType: TypeString, DisplayName: "Custom label"}},
	}
	snap.Merge(DefaultSeed())

	var found []Definition
	for _, d := range snap.Definitions {
		if d.Key == KeyLocale {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, "Custom label", found[0].DisplayName)

	ids := map[int]bool{}
	for _, d := range snap.Definitions {
		assert.False(t, ids[d.ID], "definition id %d assigned twice", d.ID)
		ids[d.ID] = true
	}
}

func TestBackfill(t *testing.T) {
	snap := Snapshot{
		Categories:  []Category{{Name: "Legacy"}},
		Definitions: []Definition{{Key: "legacy.trait"}},
		Options:     []Option{{DefinitionKey: "legacy.trait", Value: String("x")}},
		Presets:     []Preset{{Name: "old"}},
	}
	fixed := snap.Backfill()

	assert.Equal(t, 6, fixed)
	assert.Equal(t, 1, snap.Categories[0].DisplayOrder)
	assert.Equal(t, DefaultValueType, snap.Definitions[0].ValueType)
	assert.Equal(t, "legacy.trait", snap.Definitions[0].DisplayName)
	assert.Equal(t, DefaultCategory, snap.Definitions[0].Category)
	assert.Equal(t, DefaultWeight, snap.Options[0].Weight)
	assert.NotNil(t, snap.Presets[0].Items)

	assert.Equal(t, 0, snap.Backfill(), "backfill is idempotent")
}

func TestLoadSeed(t *testing.T) {
	base := DefaultSeed()
	doc := `
definitions:
  - key: privacy.do_not_track
    display_name: Do Not Track
    category: Privacy
    value_type: enum
    default: unspecified
    constraints:
      enum: ["1", "unspecified"]
options:
  - definition: privacy.do_not_track
    value: "1"
    weight: 2
  - definition: graphics.webgl.pair
    os: linux
    value:
      vendor: Google Inc. (Intel)
      renderer: ANGLE (Intel, Mesa Intel(R) Xe Graphics (TGL GT2), OpenGL 4.6)
    weight: 1
presets:
  - name: dnt
    items:
      privacy.do_not_track: "1"
`
	extra, err := LoadSeed(strings.NewReader(doc), base)
	require.NoError(t, err)
	require.Len(t, extra.Definitions, 1)
	assert.Equal(t, TypeEnum, extra.Definitions[0].Default.Type)
	require.Len(t, extra.Options, 2)
	assert.Equal(t, TypeEnum, extra.Options[0].Value.Type)
	assert.Equal(t, OSLinux, extra.Options[1].OS)

	added := base.Merge(extra)
	assert.Equal(t, 4, added)

	cat, err := New(base)
	require.NoError(t, err)
	items, err := cat.Preset("dnt")
	require.NoError(t, err)
	assert.Equal(t, "1", items["privacy.do_not_track"].String())
}

func TestValueJSON(t *testing.T) {
	v := Object(map[string]Value{
		"vendor": String("ARM"),
		"cores":  Int(8),
		"tags":   Strings("a", "b"),
		"touch":  Bool(true),
	})
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cores":8,"tags":["a","b"],"touch":true,"vendor":"ARM"}`, string(raw))

	decoded, err := DecodeValue(TypeObject, raw)
	require.NoError(t, err)
	assert.True(t, v.Equal(decoded))

	_, err = DecodeValue(TypeNumber, []byte(`"eight"`))
	assert.Error(t, err)

	e, err := DecodeValue(TypeEnum, []byte(`"noise"`))
	require.NoError(t, err)
	assert.Equal(t, TypeEnum, e.Type)
}
