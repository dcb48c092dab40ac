package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/ontology"
)

// Entity is the in-memory representation of an entity declaration. It can
// represent both a custom and a builtin entity; for builtin entities only the
// name is relevant and no custom attribute is consulted.
type Entity struct {
	Name                    string
	Utterances              []EntityUtterance
	AutomaticallyExtensible bool
	UseSynonyms             bool
	MatchingStrictness      float64
}

// EntityUtterance is one canonical entity value with its synonyms. Every
// variation must resolve back to the canonical value.
type EntityUtterance struct {
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms"`
}

// Variations returns the canonical value followed by its synonyms.
func (u EntityUtterance) Variations() []string {
	variations := make([]string, 0, 1+len(u.Synonyms))
	variations = append(variations, u.Value)
	variations = append(variations, u.Synonyms...)
	return variations
}

// IsBuiltin reports whether the entity name belongs to the builtin catalogue.
func (e *Entity) IsBuiltin() bool {
	return ontology.IsBuiltinEntity(e.Name)
}

// entityJSON is the wire form of a custom entity inside a dataset document.
// Pointers keep absent fields distinguishable from zero values so that
// defaults can be applied.
type entityJSON struct {
	AutomaticallyExtensible *bool             `json:"automatically_extensible,omitempty"`
	UseSynonyms             *bool             `json:"use_synonyms,omitempty"`
	MatchingStrictness      *float64          `json:"matching_strictness,omitempty"`
	Data                    []EntityUtterance `json:"data,omitempty"`
}

// UnmarshalJSON decodes a custom entity definition, applying the documented
// defaults: automatically_extensible=true, use_synonyms=true,
// matching_strictness=1.0. A builtin entity is declared as the empty object
// and decodes to an Entity with no custom data.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Utterances = raw.Data
	e.AutomaticallyExtensible = true
	if raw.AutomaticallyExtensible != nil {
		e.AutomaticallyExtensible = *raw.AutomaticallyExtensible
	}
	e.UseSynonyms = true
	if raw.UseSynonyms != nil {
		e.UseSynonyms = *raw.UseSynonyms
	}
	e.MatchingStrictness = 1.0
	if raw.MatchingStrictness != nil {
		e.MatchingStrictness = *raw.MatchingStrictness
	}
	return nil
}

// MarshalJSON encodes the entity in its dataset document form. Builtin
// entities serialize to the empty object.
func (e *Entity) MarshalJSON() ([]byte, error) {
	if e.IsBuiltin() {
		return []byte("{}"), nil
	}
	data := e.Utterances
	if data == nil {
		data = []EntityUtterance{}
	}
	return json.Marshal(entityJSON{
		AutomaticallyExtensible: &e.AutomaticallyExtensible,
		UseSynonyms:             &e.UseSynonyms,
		MatchingStrictness:      &e.MatchingStrictness,
		Data:                    data,
	})
}

// entityYAML mirrors the declarative YAML form of an entity:
//
//	type: entity
//	name: city
//	automatically_extensible: false
//	use_synonyms: false
//	matching_strictness: 0.8
//	values:
//	  - london
//	  - [new york, big apple]
type entityYAML struct {
	Type                    string        `yaml:"type"`
	Name                    string        `yaml:"name"`
	AutomaticallyExtensible *bool         `yaml:"automatically_extensible"`
	UseSynonyms             *bool         `yaml:"use_synonyms"`
	MatchingStrictness      *float64      `yaml:"matching_strictness"`
	Values                  []interface{} `yaml:"values"`
}

// EntityFromYAML builds an Entity from its declarative YAML definition.
// A wrong type tag, a missing name or a malformed value entry is an entity
// format error.
func EntityFromYAML(r io.Reader) (*Entity, error) {
	var doc entityYAML
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nluerrors.NewEntityFormatError(err.Error())
	}
	if doc.Type != "" && doc.Type != "entity" {
		return nil, nluerrors.NewEntityFormatError(fmt.Sprintf("wrong type: %q", doc.Type))
	}
	if doc.Name == "" {
		return nil, nluerrors.NewEntityFormatError("missing 'name' attribute")
	}

	entity := &Entity{
		Name:                    doc.Name,
		AutomaticallyExtensible: true,
		UseSynonyms:             true,
		MatchingStrictness:      1.0,
	}
	if doc.AutomaticallyExtensible != nil {
		entity.AutomaticallyExtensible = *doc.AutomaticallyExtensible
	}
	if doc.UseSynonyms != nil {
		entity.UseSynonyms = *doc.UseSynonyms
	}
	if doc.MatchingStrictness != nil {
		entity.MatchingStrictness = *doc.MatchingStrictness
	}

	for _, value := range doc.Values {
		utterance, err := entityValueFromYAML(value)
		if err != nil {
			return nil, err
		}
		entity.Utterances = append(entity.Utterances, utterance)
	}
	return entity, nil
}

func entityValueFromYAML(value interface{}) (EntityUtterance, error) {
	switch v := value.(type) {
	case string:
		return EntityUtterance{Value: v, Synonyms: []string{}}, nil
	case []interface{}:
		if len(v) == 0 {
			return EntityUtterance{}, nluerrors.NewEntityFormatError("empty entity value list")
		}
		items := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return EntityUtterance{}, nluerrors.NewEntityFormatError(
					fmt.Sprintf("entity value list items must be strings, found: %T", item))
			}
			items[i] = s
		}
		return EntityUtterance{Value: items[0], Synonyms: items[1:]}, nil
	default:
		return EntityUtterance{}, nluerrors.NewEntityFormatError(
			fmt.Sprintf("entity values must be either strings or lists, found: %T", value))
	}
}
