package dataset

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
)

// ============================================================================
// JSON Form
// ============================================================================

func TestEntityJSON(t *testing.T) {
	t.Run("absent attributes take the documented defaults", func(t *testing.T) {
		var entity Entity
		require.NoError(t, json.Unmarshal([]byte(`{"data": [{"value": "london"}]}`), &entity))

		assert.True(t, entity.AutomaticallyExtensible)
		assert.True(t, entity.UseSynonyms)
		assert.Equal(t, 1.0, entity.MatchingStrictness)
		require.Len(t, entity.Utterances, 1)
		assert.Equal(t, "london", entity.Utterances[0].Value)
	})

	t.Run("explicit attributes are preserved", func(t *testing.T) {
		raw := `{
			"automatically_extensible": false,
			"use_synonyms": false,
			"matching_strictness": 0.5,
			"data": []
		}`
		var entity Entity
		require.NoError(t, json.Unmarshal([]byte(raw), &entity))

		assert.False(t, entity.AutomaticallyExtensible)
		assert.False(t, entity.UseSynonyms)
		assert.Equal(t, 0.5, entity.MatchingStrictness)
	})

	t.Run("builtin entity marshals to the empty object", func(t *testing.T) {
		entity := &Entity{Name: "snips/number"}

		raw, err := json.Marshal(entity)
		require.NoError(t, err)

		assert.JSONEq(t, `{}`, string(raw))
	})

	t.Run("custom entity round trips", func(t *testing.T) {
		entity := &Entity{
			Name: "city",
			Utterances: []EntityUtterance{
				{Value: "new york", Synonyms: []string{"big apple"}},
			},
			AutomaticallyExtensible: false,
			UseSynonyms:             true,
			MatchingStrictness:      0.8,
		}

		raw, err := json.Marshal(entity)
		require.NoError(t, err)

		var decoded Entity
		require.NoError(t, json.Unmarshal(raw, &decoded))
		decoded.Name = entity.Name
		assert.Equal(t, *entity, decoded)
	})
}

func TestEntityUtteranceVariations(t *testing.T) {
	u := EntityUtterance{Value: "new york", Synonyms: []string{"big apple", "nyc"}}

	assert.Equal(t, []string{"new york", "big apple", "nyc"}, u.Variations())
}

// ============================================================================
// YAML Form
// ============================================================================

func TestEntityFromYAML(t *testing.T) {
	t.Run("parses values with and without synonyms", func(t *testing.T) {
		doc := `
type: entity
name: city
automatically_extensible: false
use_synonyms: true
matching_strictness: 0.7
values:
  - london
  - [new york, big apple]
`
		entity, err := EntityFromYAML(strings.NewReader(doc))
		require.NoError(t, err)

		assert.Equal(t, "city", entity.Name)
		assert.False(t, entity.AutomaticallyExtensible)
		assert.True(t, entity.UseSynonyms)
		assert.Equal(t, 0.7, entity.MatchingStrictness)
		require.Len(t, entity.Utterances, 2)
		assert.Equal(t, EntityUtterance{Value: "london", Synonyms: []string{}}, entity.Utterances[0])
		assert.Equal(t, EntityUtterance{Value: "new york", Synonyms: []string{"big apple"}}, entity.Utterances[1])
	})

	t.Run("absent attributes take the documented defaults", func(t *testing.T) {
		entity, err := EntityFromYAML(strings.NewReader("name: city"))
		require.NoError(t, err)

		assert.True(t, entity.AutomaticallyExtensible)
		assert.True(t, entity.UseSynonyms)
		assert.Equal(t, 1.0, entity.MatchingStrictness)
	})

	t.Run("wrong type tag is an entity format error", func(t *testing.T) {
		_, err := EntityFromYAML(strings.NewReader("type: intent\nname: city"))

		assert.True(t, errors.Is(err, nluerrors.ErrEntityFormat))
	})

	t.Run("missing name is an entity format error", func(t *testing.T) {
		_, err := EntityFromYAML(strings.NewReader("type: entity"))

		assert.True(t, errors.Is(err, nluerrors.ErrEntityFormat))
	})

	t.Run("non-string value entries are rejected", func(t *testing.T) {
		doc := `
type: entity
name: city
values:
  - 42
`
		_, err := EntityFromYAML(strings.NewReader(doc))

		assert.True(t, errors.Is(err, nluerrors.ErrEntityFormat))
	})

	t.Run("nested non-string items are rejected", func(t *testing.T) {
		doc := `
type: entity
name: city
values:
  - [new york, 7]
`
		_, err := EntityFromYAML(strings.NewReader(doc))

		assert.True(t, errors.Is(err, nluerrors.ErrEntityFormat))
	})
}
