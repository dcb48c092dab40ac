package entityparser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/dataset"
)

// CustomUnitName is the storage name of the custom entity parser.
const CustomUnitName = "custom_entity_parser"

// customEntity is the resolution table of one custom entity. Variations map
// raw strings byte-exactly to canonical values; two byte-distinct variation
// strings never merge, even when they only differ by diacritics.
type customEntity struct {
	AutomaticallyExtensible bool              `json:"automatically_extensible"`
	UseSynonyms             bool              `json:"use_synonyms"`
	MatchingStrictness      float64           `json:"matching_strictness"`
	Variations              map[string]string `json:"variations"`
}

// CustomEntityParser resolves raw values of custom entities through their
// declared variation tables.
type CustomEntityParser struct {
	entities map[string]customEntity
}

// BuildCustomEntityParser constructs the parser from the custom entities of
// a validated dataset. For each entity the variation table is injective per
// distinct raw string: the first declaration of a variation wins.
func BuildCustomEntityParser(ds *dataset.Dataset) *CustomEntityParser {
	parser := &CustomEntityParser{entities: map[string]customEntity{}}
	for name, entity := range ds.Entities {
		if entity.IsBuiltin() {
			continue
		}
		variations := map[string]string{}
		for _, entityUtterance := range entity.Utterances {
			if entity.UseSynonyms {
				for _, variation := range entityUtterance.Variations() {
					if _, seen := variations[variation]; !seen {
						variations[variation] = entityUtterance.Value
					}
				}
			} else {
				if _, seen := variations[entityUtterance.Value]; !seen {
					variations[entityUtterance.Value] = entityUtterance.Value
				}
			}
		}
		parser.entities[name] = customEntity{
			AutomaticallyExtensible: entity.AutomaticallyExtensible,
			UseSynonyms:             entity.UseSynonyms,
			MatchingStrictness:      entity.MatchingStrictness,
			Variations:              variations,
		}
	}
	return parser
}

// Resolve looks up the raw value in the entity's variation table without any
// implicit normalization. It returns the canonical value and whether a
// variation matched. Unknown entities and misses report no match.
func (p *CustomEntityParser) Resolve(rawValue, entityName string) (string, bool) {
	entity, ok := p.entities[entityName]
	if !ok {
		return "", false
	}
	if !entity.UseSynonyms {
		// The raw string is its own canonical value.
		return rawValue, true
	}
	canonical, ok := entity.Variations[rawValue]
	if !ok {
		return "", false
	}
	return canonical, true
}

type customMetadata struct {
	UnitName string                  `json:"unit_name"`
	Entities map[string]customEntity `json:"entities"`
}

// Persist writes the resolution tables under dir.
func (p *CustomEntityParser) Persist(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nluerrors.NewPersistingError(err)
	}
	meta := customMetadata{UnitName: CustomUnitName, Entities: p.entities}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nluerrors.NewPersistingError(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644); err != nil {
		return nluerrors.NewPersistingError(err)
	}
	return nil
}

// LoadCustomEntityParser restores a persisted custom entity parser.
func LoadCustomEntityParser(dir string) (*CustomEntityParser, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("custom entity parser: %v", err))
	}
	var meta customMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("custom entity parser: %v", err))
	}
	if meta.UnitName != CustomUnitName {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf(
			"custom entity parser: unexpected unit name %q", meta.UnitName))
	}
	if meta.Entities == nil {
		meta.Entities = map[string]customEntity{}
	}
	return &CustomEntityParser{entities: meta.Entities}, nil
}
