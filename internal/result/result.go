// Package result defines the structured interpretation types produced by
// intent parsers and the engine: ranked intent classifications and resolved
// slots.
package result

// IntentClassification is one ranked intent candidate. An empty IntentName
// is the no-intent sentinel.
type IntentClassification struct {
	IntentName  string  `json:"intentName"`
	Probability float64 `json:"probability"`
}

// IsNone reports whether the classification is the no-intent sentinel.
func (c IntentClassification) IsNone() bool {
	return c.IntentName == ""
}

// MatchRange is a [start, end) byte range over the input text.
type MatchRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SlotValue is the resolved, typed value of a slot. Kind is "Custom" for
// developer-declared entities or the builtin entity kind (e.g. "Number").
type SlotValue struct {
	Kind  string      `json:"kind"`
	Value interface{} `json:"value"`
}

// Slot is a named, typed span extracted for a recognized intent. Parsers
// emit unresolved slots (zero Value); the entity resolver fills Value.
type Slot struct {
	Range    MatchRange `json:"range"`
	RawValue string     `json:"rawValue"`
	Value    SlotValue  `json:"value"`
	Entity   string     `json:"entity"`
	SlotName string     `json:"slotName"`
}

// Resolved returns a copy of the slot carrying the given resolved value.
func (s Slot) Resolved(value SlotValue) Slot {
	s.Value = value
	return s
}

// ParseResult is the outcome of parsing one input in single-best mode.
type ParseResult struct {
	Input  string               `json:"input"`
	Intent IntentClassification `json:"intent"`
	Slots  []Slot               `json:"slots"`
}

// IsEmpty reports whether no intent was recognized.
func (r ParseResult) IsEmpty() bool {
	return r.Intent.IsNone()
}

// ExtractionResult is one entry of a ranked multi-intent parse.
type ExtractionResult struct {
	Intent IntentClassification `json:"intent"`
	Slots  []Slot               `json:"slots"`
}

// UnresolvedSlot builds a slot as emitted by intent parsers, before entity
// resolution.
func UnresolvedSlot(start, end int, rawValue, entity, slotName string) Slot {
	return Slot{
		Range:    MatchRange{Start: start, End: end},
		RawValue: rawValue,
		Entity:   entity,
		SlotName: slotName,
	}
}

// EmptyResult is the parse result carrying the no-intent sentinel.
func EmptyResult(input string) ParseResult {
	return ParseResult{
		Input:  input,
		Intent: IntentClassification{Probability: 1.0},
		Slots:  []Slot{},
	}
}
