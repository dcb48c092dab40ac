package nlu

import "github.com/storewaladotcom/snips-nlu/internal/dataset"

// DatasetMetadata is the read-only training context computed once at fit
// time and shared by every parser and the entity resolver. It is never
// mutated after fit.
type DatasetMetadata struct {
	LanguageCode     string                       `json:"language_code"`
	Entities         map[string]EntityMetadata    `json:"entities"`
	SlotNameMappings map[string]map[string]string `json:"slot_name_mappings"`
}

// EntityMetadata is the resolution metadata of one custom entity. Utterances
// maps every variation string, byte-exact, to its canonical value.
type EntityMetadata struct {
	AutomaticallyExtensible bool              `json:"automatically_extensible"`
	Utterances              map[string]string `json:"utterances"`
}

// computeDatasetMetadata derives the metadata of a validated dataset.
// Builtin entities carry no resolution metadata; they only appear in the
// slot name mappings.
func computeDatasetMetadata(ds *dataset.Dataset) *DatasetMetadata {
	meta := &DatasetMetadata{
		LanguageCode:     ds.Language,
		Entities:         map[string]EntityMetadata{},
		SlotNameMappings: map[string]map[string]string{},
	}

	for name, entity := range ds.Entities {
		if entity.IsBuiltin() {
			continue
		}
		utterances := map[string]string{}
		for _, entityUtterance := range entity.Utterances {
			if entity.UseSynonyms {
				for _, variation := range entityUtterance.Variations() {
					if _, seen := utterances[variation]; !seen {
						utterances[variation] = entityUtterance.Value
					}
				}
			} else {
				if _, seen := utterances[entityUtterance.Value]; !seen {
					utterances[entityUtterance.Value] = entityUtterance.Value
				}
			}
		}
		meta.Entities[name] = EntityMetadata{
			AutomaticallyExtensible: entity.AutomaticallyExtensible,
			Utterances:              utterances,
		}
	}

	for intentName, intent := range ds.Intents {
		mappings := map[string]string{}
		for _, utterance := range intent.Utterances {
			for _, chunk := range utterance.Data {
				if chunk.IsSlot() {
					mappings[chunk.SlotName] = chunk.Entity
				}
			}
		}
		meta.SlotNameMappings[intentName] = mappings
	}

	return meta
}
