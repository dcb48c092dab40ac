package nlu

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/storewaladotcom/snips-nlu/internal/dataset"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// ============================================================================
// Mock Intent Parser
// ============================================================================

// mockConfig is the configuration of a mock parser strategy.
type mockConfig struct {
	name          string
	MaxCandidates int `json:"max_candidates"`
}

func (c mockConfig) UnitName() string { return c.name }

// mockParser is a canned-response intent parser used to drive the engine in
// isolation from any real parsing strategy.
type mockParser struct {
	unitName string
	config   UnitConfig
	fitted   bool
	fitCalls int

	// Canned behavior. An empty intent makes Parse return the sentinel.
	intent      string
	probability float64
	slots       map[string][]result.Slot
	intentList  []result.IntentClassification
	parseErr    error
}

func newMockParser(unitName string) *mockParser {
	return &mockParser{
		unitName: unitName,
		config:   mockConfig{name: unitName},
	}
}

func (m *mockParser) Name() string       { return m.unitName }
func (m *mockParser) Fitted() bool       { return m.fitted }
func (m *mockParser) Config() UnitConfig { return m.config }

func (m *mockParser) Fit(ds *dataset.Dataset, forceRetrain bool) error {
	if m.fitted && !forceRetrain {
		return nil
	}
	m.fitCalls++
	m.fitted = true
	return nil
}

func (m *mockParser) Parse(text string, intents []string, topN int) (result.ParseResult, error) {
	if m.parseErr != nil {
		return result.ParseResult{}, m.parseErr
	}
	if m.intent == "" {
		return result.EmptyResult(text), nil
	}
	if len(intents) > 0 && !contains(intents, m.intent) {
		return result.EmptyResult(text), nil
	}
	return result.ParseResult{
		Input:  text,
		Intent: result.IntentClassification{IntentName: m.intent, Probability: m.probability},
		Slots:  m.slots[m.intent],
	}, nil
}

func (m *mockParser) GetIntents(text string) ([]result.IntentClassification, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	if m.intentList != nil {
		return append([]result.IntentClassification(nil), m.intentList...), nil
	}
	if m.intent == "" {
		return []result.IntentClassification{{Probability: 1.0}}, nil
	}
	return []result.IntentClassification{
		{IntentName: m.intent, Probability: m.probability},
		{Probability: 1.0 - m.probability},
	}, nil
}

func (m *mockParser) GetSlots(text string, intent string) ([]result.Slot, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	return m.slots[intent], nil
}

// mockModel is the persisted form of a mock parser.
type mockModel struct {
	UnitName    string                        `json:"unit_name"`
	Intent      string                        `json:"intent"`
	Probability float64                       `json:"probability"`
	Slots       map[string][]result.Slot      `json:"slots"`
	IntentList  []result.IntentClassification `json:"intent_list"`
}

func (m *mockParser) Persist(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return err
	}
	model := mockModel{
		UnitName:    m.unitName,
		Intent:      m.intent,
		Probability: m.probability,
		Slots:       m.slots,
		IntentList:  m.intentList,
	}
	raw, err := json.Marshal(model)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644)
}

func loadMockParser(dir string) (IntentParser, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var model mockModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, err
	}
	parser := newMockParser(model.UnitName)
	parser.intent = model.Intent
	parser.probability = model.Probability
	parser.slots = model.Slots
	parser.intentList = model.IntentList
	parser.fitted = true
	return parser, nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// withMockProviders swaps the registry for mock providers for the duration
// of one test.
func withMockProviders(t *testing.T, names ...string) {
	t.Helper()
	resetIntentParsers()
	t.Cleanup(resetIntentParsers)
	for _, name := range names {
		name := name
		RegisterIntentParser(ParserProvider{
			Name:          name,
			DefaultConfig: func() UnitConfig { return mockConfig{name: name} },
			DecodeConfig: func(raw json.RawMessage) (UnitConfig, error) {
				cfg := mockConfig{name: name}
				if len(raw) > 0 {
					if err := json.Unmarshal(raw, &cfg); err != nil {
						return nil, err
					}
				}
				return cfg, nil
			},
			New: func(cfg UnitConfig) (IntentParser, error) {
				parser := newMockParser(name)
				parser.config = cfg
				return parser, nil
			},
			Load: loadMockParser,
		})
	}
}

// configFor builds an engine config listing the given parsers in order.
func configFor(parsers ...*mockParser) *EngineConfig {
	cfg := &EngineConfig{}
	for _, parser := range parsers {
		cfg.ParserConfigs = append(cfg.ParserConfigs, mockConfig{name: parser.unitName})
	}
	return cfg
}

// ============================================================================
// Dataset Fixtures
// ============================================================================

func beverageDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Language: "en",
		Intents: map[string]dataset.Intent{
			"makeCoffee": {
				Utterances: []dataset.Utterance{
					{Data: []dataset.Chunk{
						{Text: "make me "},
						{Text: "two", Entity: "snips/number", SlotName: "quantity"},
						{Text: " cups of coffee"},
					}},
				},
			},
			"makeTea": {
				Utterances: []dataset.Utterance{
					{Data: []dataset.Chunk{
						{Text: "brew a "},
						{Text: "green tea", Entity: "beverage", SlotName: "drink"},
					}},
				},
			},
		},
		Entities: map[string]*dataset.Entity{
			"snips/number": {Name: "snips/number"},
			"beverage": {
				Name: "beverage",
				Utterances: []dataset.EntityUtterance{
					{Value: "green tea", Synonyms: []string{"sencha"}},
					{Value: "black tea", Synonyms: []string{"earl grey"}},
				},
				AutomaticallyExtensible: true,
				UseSynonyms:             true,
				MatchingStrictness:      1.0,
			},
		},
	}
}
