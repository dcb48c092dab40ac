// Package dataset defines the training dataset document consumed by the
// engine: intents with slot-tagged utterances and custom or builtin entity
// declarations.
package dataset

import "encoding/json"

// Dataset is the validated training document.
type Dataset struct {
	Language string             `json:"language"`
	Intents  map[string]Intent  `json:"intents"`
	Entities map[string]*Entity `json:"entities"`
}

// Intent groups the training utterances of one intent.
type Intent struct {
	Utterances []Utterance `json:"utterances"`
}

// Utterance is a sequence of plain-text and slot-tagged chunks.
type Utterance struct {
	Data []Chunk `json:"data"`
}

// Chunk is a span of an utterance. Plain text chunks carry only Text; slot
// chunks additionally name the entity and the slot.
type Chunk struct {
	Text     string `json:"text"`
	Entity   string `json:"entity,omitempty"`
	SlotName string `json:"slot_name,omitempty"`
}

// IsSlot reports whether the chunk is slot-tagged.
func (c Chunk) IsSlot() bool {
	return c.Entity != "" && c.SlotName != ""
}

// UnmarshalJSON decodes the dataset document and propagates entity map keys
// onto the entity values, which need their names to detect builtin entities.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	type alias Dataset
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Dataset(raw)
	for name, entity := range d.Entities {
		if entity != nil {
			entity.Name = name
		}
	}
	return nil
}

// FromJSON decodes and validates a dataset document.
func FromJSON(doc []byte) (*Dataset, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	var d Dataset
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, err
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
