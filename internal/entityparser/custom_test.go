package entityparser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/dataset"
)

// ============================================================================
// Test Helpers
// ============================================================================

func dessertDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Language: "en",
		Entities: map[string]*dataset.Entity{
			"dessert": {
				Name: "dessert",
				Utterances: []dataset.EntityUtterance{
					{Value: "ice cream", Synonyms: []string{"sundae", "favorite"}},
					{Value: "sorbet", Synonyms: []string{"favorïte"}},
				},
				AutomaticallyExtensible: true,
				UseSynonyms:             true,
				MatchingStrictness:      1.0,
			},
			"snips/number": {Name: "snips/number"},
		},
	}
}

// ============================================================================
// Resolution
// ============================================================================

func TestCustomEntityParserResolve(t *testing.T) {
	parser := BuildCustomEntityParser(dessertDataset())

	t.Run("synonym resolves to its canonical value", func(t *testing.T) {
		canonical, ok := parser.Resolve("sundae", "dessert")

		require.True(t, ok)
		assert.Equal(t, "ice cream", canonical)
	})

	t.Run("canonical value resolves to itself", func(t *testing.T) {
		canonical, ok := parser.Resolve("ice cream", "dessert")

		require.True(t, ok)
		assert.Equal(t, "ice cream", canonical)
	})

	t.Run("matching is byte exact, diacritics never fold", func(t *testing.T) {
		canonical, ok := parser.Resolve("favorite", "dessert")
		require.True(t, ok)
		assert.Equal(t, "ice cream", canonical)

		canonical, ok = parser.Resolve("favorïte", "dessert")
		require.True(t, ok)
		assert.Equal(t, "sorbet", canonical)
	})

	t.Run("unknown variation reports no match", func(t *testing.T) {
		_, ok := parser.Resolve("tiramisu", "dessert")

		assert.False(t, ok)
	})

	t.Run("unknown entity reports no match", func(t *testing.T) {
		_, ok := parser.Resolve("sundae", "drink")

		assert.False(t, ok)
	})

	t.Run("builtin entities are not indexed", func(t *testing.T) {
		_, ok := parser.Resolve("3", "snips/number")

		assert.False(t, ok)
	})
}

func TestCustomEntityParserBuild(t *testing.T) {
	t.Run("first declaration of a variation wins", func(t *testing.T) {
		ds := &dataset.Dataset{
			Language: "en",
			Entities: map[string]*dataset.Entity{
				"dessert": {
					Name: "dessert",
					Utterances: []dataset.EntityUtterance{
						{Value: "ice cream", Synonyms: []string{"sweet"}},
						{Value: "sorbet", Synonyms: []string{"sweet"}},
					},
					UseSynonyms: true,
				},
			},
		}
		parser := BuildCustomEntityParser(ds)

		canonical, ok := parser.Resolve("sweet", "dessert")

		require.True(t, ok)
		assert.Equal(t, "ice cream", canonical)
	})

	t.Run("disabled synonyms make every raw value its own canonical", func(t *testing.T) {
		ds := dessertDataset()
		ds.Entities["dessert"].UseSynonyms = false
		parser := BuildCustomEntityParser(ds)

		canonical, ok := parser.Resolve("sundae", "dessert")
		require.True(t, ok)
		assert.Equal(t, "sundae", canonical)

		canonical, ok = parser.Resolve("anything at all", "dessert")
		require.True(t, ok)
		assert.Equal(t, "anything at all", canonical)
	})
}

// ============================================================================
// Persistence
// ============================================================================

func TestCustomEntityParserPersistence(t *testing.T) {
	t.Run("round trip preserves resolution", func(t *testing.T) {
		parser := BuildCustomEntityParser(dessertDataset())
		dir := filepath.Join(t.TempDir(), "custom_entity_parser")
		require.NoError(t, parser.Persist(dir))

		loaded, err := LoadCustomEntityParser(dir)
		require.NoError(t, err)

		canonical, ok := loaded.Resolve("favorïte", "dessert")
		require.True(t, ok)
		assert.Equal(t, "sorbet", canonical)
	})

	t.Run("loading rejects a foreign unit", func(t *testing.T) {
		dir := t.TempDir()
		raw := []byte(`{"unit_name": "builtin_entity_parser"}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644))

		_, err := LoadCustomEntityParser(dir)

		assert.True(t, errors.Is(err, nluerrors.ErrLoading))
	})

	t.Run("missing metadata fails closed", func(t *testing.T) {
		_, err := LoadCustomEntityParser(t.TempDir())

		assert.True(t, errors.Is(err, nluerrors.ErrLoading))
	})
}
