// Package nlu implements the engine orchestration layer: the processing
// unit contract, the intent parser ensemble, entity resolution of parsed
// slots and the model serialization format.
package nlu

import (
	"encoding/json"

	"github.com/storewaladotcom/snips-nlu/internal/dataset"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// UnitConfig is the declared configuration of a processing unit. Configs are
// immutable value objects; they serialize with a unit_name discriminator
// which is stripped again on decoding.
type UnitConfig interface {
	UnitName() string
}

// ProcessingUnit is the capability set shared by every pluggable component:
// fit, observable fitted state and directory persistence. Loading is covered
// by the per-unit loader registered alongside its constructor.
type ProcessingUnit interface {
	Name() string
	Fitted() bool
	Fit(ds *dataset.Dataset, forceRetrain bool) error
	Persist(dir string) error
}

// IntentParser is one interchangeable intent parsing strategy. Concrete
// parsers own their trained state opaquely to the engine.
type IntentParser interface {
	ProcessingUnit

	Config() UnitConfig

	// Parse returns the parser's single best result. The no-intent sentinel
	// signals that the parser found nothing for this input.
	Parse(text string, intents []string, topN int) (result.ParseResult, error)

	// GetIntents returns the parser's own ranked intent list, including the
	// no-intent sentinel.
	GetIntents(text string) ([]result.IntentClassification, error)

	// GetSlots extracts the slots of one specific intent.
	GetSlots(text string, intent string) ([]result.Slot, error)
}

// MarshalUnitConfig serializes a unit config with its unit_name
// discriminator injected.
func MarshalUnitConfig(cfg UnitConfig) (json.RawMessage, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	name, err := json.Marshal(cfg.UnitName())
	if err != nil {
		return nil, err
	}
	fields["unit_name"] = name
	return json.Marshal(fields)
}

// unitNameOf reads the unit_name discriminator of a serialized config or
// unit metadata document.
func unitNameOf(raw json.RawMessage) (string, error) {
	var probe struct {
		UnitName string `json:"unit_name"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	return probe.UnitName, nil
}
