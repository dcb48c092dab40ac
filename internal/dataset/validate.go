package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
)

// datasetSchema is the JSON schema every dataset document must satisfy
// before semantic validation runs.
const datasetSchema = `{
  "type": "object",
  "required": ["language", "intents", "entities"],
  "properties": {
    "language": {"type": "string", "minLength": 1},
    "intents": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["utterances"],
        "properties": {
          "utterances": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["data"],
              "properties": {
                "data": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["text"],
                    "properties": {
                      "text": {"type": "string"},
                      "entity": {"type": "string"},
                      "slot_name": {"type": "string"}
                    }
                  }
                }
              }
            }
          }
        }
      }
    },
    "entities": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "automatically_extensible": {"type": "boolean"},
          "use_synonyms": {"type": "boolean"},
          "matching_strictness": {"type": "number", "minimum": 0, "maximum": 1},
          "data": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["value"],
              "properties": {
                "value": {"type": "string"},
                "synonyms": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`

// ValidateDocument checks the raw dataset document against the dataset
// schema. Schema violations surface as dataset format errors.
func ValidateDocument(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(datasetSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return nluerrors.NewDatasetFormatError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		sort.Strings(details)
		return nluerrors.NewDatasetFormatError(strings.Join(details, "; "))
	}
	return nil
}

// Validate performs the semantic checks on a decoded dataset: a language
// must be declared, slot chunks must carry both entity and slot name, and
// every referenced entity must be declared. An empty dataset is valid.
func Validate(d *Dataset) error {
	if d == nil {
		return nluerrors.NewDatasetFormatError("nil dataset")
	}
	if d.Language == "" {
		return nluerrors.NewDatasetFormatError("missing language")
	}
	for intentName, intent := range d.Intents {
		for _, utterance := range intent.Utterances {
			for _, chunk := range utterance.Data {
				if chunk.Entity == "" && chunk.SlotName == "" {
					continue
				}
				if chunk.Entity == "" || chunk.SlotName == "" {
					return nluerrors.NewDatasetFormatError(fmt.Sprintf(
						"intent %q: slot chunks must declare both entity and slot_name", intentName))
				}
				if _, declared := d.Entities[chunk.Entity]; !declared {
					return nluerrors.NewDatasetFormatError(fmt.Sprintf(
						"intent %q references undeclared entity %q", intentName, chunk.Entity))
				}
			}
		}
	}
	for name, entity := range d.Entities {
		if entity == nil {
			return nluerrors.NewDatasetFormatError(fmt.Sprintf("entity %q: null definition", name))
		}
		if entity.MatchingStrictness < 0 || entity.MatchingStrictness > 1 {
			return nluerrors.NewDatasetFormatError(fmt.Sprintf(
				"entity %q: matching_strictness must be in [0,1]", name))
		}
		if entity.IsBuiltin() && len(entity.Utterances) > 0 {
			return nluerrors.NewDatasetFormatError(fmt.Sprintf(
				"entity %q: builtin entities must not carry custom data", name))
		}
	}
	return nil
}
