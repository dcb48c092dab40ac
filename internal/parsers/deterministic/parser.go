// Package deterministic implements a pattern-matching intent parser: every
// training utterance compiles to an anchored regular expression with one
// capture group per slot chunk. It is the strongest strategy on inputs it
// recognizes and yields probability 1.0 matches, so it is listed first in
// the default ensemble.
package deterministic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/dataset"
	"github.com/storewaladotcom/snips-nlu/internal/nlu"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

func init() {
	nlu.RegisterIntentParser(nlu.ParserProvider{
		Name: UnitName,
		DefaultConfig: func() nlu.UnitConfig {
			return DefaultConfig()
		},
		DecodeConfig: func(raw json.RawMessage) (nlu.UnitConfig, error) {
			cfg := DefaultConfig()
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &cfg); err != nil {
					return nil, err
				}
			}
			return cfg, nil
		},
		New: func(cfg nlu.UnitConfig) (nlu.IntentParser, error) {
			parserCfg, ok := cfg.(Config)
			if !ok {
				return nil, fmt.Errorf("deterministic: unexpected config type %T", cfg)
			}
			return New(parserCfg), nil
		},
		Load: FromPath,
	})
}

// groupSlot names the slot captured by one regexp group.
type groupSlot struct {
	SlotName string `json:"slot_name"`
	Entity   string `json:"entity"`
}

// pattern is one compiled training utterance.
type pattern struct {
	expr   string
	re     *regexp.Regexp
	groups []groupSlot
}

// Parser matches inputs against the compiled utterance patterns of every
// intent.
type Parser struct {
	config   Config
	fitted   bool
	language string

	intentOrder []string
	patterns    map[string][]pattern
}

// New creates an unfitted deterministic parser.
func New(config Config) *Parser {
	return &Parser{config: config}
}

// Name implements the processing unit contract.
func (p *Parser) Name() string { return UnitName }

// Config returns the declared parser configuration.
func (p *Parser) Config() nlu.UnitConfig { return p.config }

// Fitted reports whether the parser holds compiled patterns.
func (p *Parser) Fitted() bool { return p.fitted }

// Fit compiles the training utterances of every intent. With forceRetrain
// false an already-fitted parser keeps its compiled state untouched.
func (p *Parser) Fit(ds *dataset.Dataset, forceRetrain bool) error {
	if p.fitted && !forceRetrain {
		return nil
	}

	p.language = ds.Language
	p.patterns = map[string][]pattern{}
	p.intentOrder = make([]string, 0, len(ds.Intents))
	for intentName := range ds.Intents {
		p.intentOrder = append(p.intentOrder, intentName)
	}
	sort.Strings(p.intentOrder)

	for _, intentName := range p.intentOrder {
		intent := ds.Intents[intentName]
		compiled := make([]pattern, 0, len(intent.Utterances))
		for i, utterance := range intent.Utterances {
			if p.config.MaxQueries > 0 && i >= p.config.MaxQueries {
				break
			}
			expr, groups := compileUtterance(utterance)
			if p.config.MaxPatternLength > 0 && len(expr) > p.config.MaxPatternLength {
				continue
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return fmt.Errorf("deterministic: compiling utterance of intent %q: %w", intentName, err)
			}
			compiled = append(compiled, pattern{expr: expr, re: re, groups: groups})
		}
		p.patterns[intentName] = compiled
	}

	p.fitted = true
	return nil
}

// compileUtterance turns a slot-tagged utterance into an anchored,
// case-insensitive expression with one capture group per slot chunk.
// Whitespace runs in text chunks match flexibly.
func compileUtterance(utterance dataset.Utterance) (string, []groupSlot) {
	var sb strings.Builder
	sb.WriteString(`(?i)^\s*`)
	var groups []groupSlot
	for _, chunk := range utterance.Data {
		if chunk.IsSlot() {
			sb.WriteString(`(.+?)`)
			groups = append(groups, groupSlot{SlotName: chunk.SlotName, Entity: chunk.Entity})
			continue
		}
		quoted := regexp.QuoteMeta(strings.TrimSpace(chunk.Text))
		flexible := regexp.MustCompile(`\s+`).ReplaceAllString(quoted, `\s+`)
		if flexible != "" {
			sb.WriteString(`\s*`)
			sb.WriteString(flexible)
			sb.WriteString(`\s*`)
		}
	}
	sb.WriteString(`\s*$`)
	return sb.String(), groups
}

// matchIntent returns the slots of the first pattern of the intent matching
// text, and whether any pattern matched.
func (p *Parser) matchIntent(text, intentName string) ([]result.Slot, bool) {
	for _, pat := range p.patterns[intentName] {
		loc := pat.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		slots := []result.Slot{}
		for i, group := range pat.groups {
			start, end := loc[2*(i+1)], loc[2*(i+1)+1]
			if start < 0 {
				continue
			}
			slots = append(slots, result.UnresolvedSlot(
				start, end, text[start:end], group.Entity, group.SlotName))
		}
		return slots, true
	}
	return nil, false
}

// Parse returns the first matching intent in deterministic (sorted) intent
// order, with probability 1.0, or the no-intent sentinel.
func (p *Parser) Parse(text string, intents []string, topN int) (result.ParseResult, error) {
	if !p.fitted {
		return result.ParseResult{}, nluerrors.NewNotTrainedError("parse")
	}
	for _, intentName := range p.restrictedOrder(intents) {
		if slots, ok := p.matchIntent(text, intentName); ok {
			return result.ParseResult{
				Input:  text,
				Intent: result.IntentClassification{IntentName: intentName, Probability: 1.0},
				Slots:  slots,
			}, nil
		}
	}
	return result.EmptyResult(text), nil
}

// GetIntents ranks the matched intent at probability 1.0 and everything
// else, the no-intent sentinel included, at exact complementary
// probabilities.
func (p *Parser) GetIntents(text string) ([]result.IntentClassification, error) {
	if !p.fitted {
		return nil, nluerrors.NewNotTrainedError("get_intents")
	}

	matched := ""
	for _, intentName := range p.intentOrder {
		if _, ok := p.matchIntent(text, intentName); ok {
			matched = intentName
			break
		}
	}

	intents := make([]result.IntentClassification, 0, len(p.intentOrder)+1)
	if matched != "" {
		intents = append(intents, result.IntentClassification{IntentName: matched, Probability: 1.0})
	}
	for _, intentName := range p.intentOrder {
		if intentName != matched {
			intents = append(intents, result.IntentClassification{IntentName: intentName})
		}
	}
	noneProbability := 1.0
	if matched != "" {
		noneProbability = 0.0
	}
	intents = append(intents, result.IntentClassification{Probability: noneProbability})
	return intents, nil
}

// GetSlots extracts the slots of one specific trained intent.
func (p *Parser) GetSlots(text string, intent string) ([]result.Slot, error) {
	if !p.fitted {
		return nil, nluerrors.NewNotTrainedError("get_slots")
	}
	if _, trained := p.patterns[intent]; !trained {
		return nil, nluerrors.NewIntentNotFoundError(intent)
	}
	slots, ok := p.matchIntent(text, intent)
	if !ok {
		return []result.Slot{}, nil
	}
	return slots, nil
}

// restrictedOrder filters the deterministic intent order by an optional
// restriction.
func (p *Parser) restrictedOrder(intents []string) []string {
	if len(intents) == 0 {
		return p.intentOrder
	}
	allowed := map[string]bool{}
	for _, intent := range intents {
		allowed[intent] = true
	}
	order := make([]string, 0, len(p.intentOrder))
	for _, intentName := range p.intentOrder {
		if allowed[intentName] {
			order = append(order, intentName)
		}
	}
	return order
}

// patternModel is the persisted form of one compiled pattern.
type patternModel struct {
	Pattern string      `json:"pattern"`
	Slots   []groupSlot `json:"slots"`
}

// parserModel is the persisted form of the parser, stored as the
// unit-specific fields of metadata.json.
type parserModel struct {
	UnitName string                    `json:"unit_name"`
	Config   Config                    `json:"config"`
	Language string                    `json:"language"`
	Intents  []string                  `json:"intents"`
	Patterns map[string][]patternModel `json:"patterns"`
}

// Persist writes the compiled patterns under dir.
func (p *Parser) Persist(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nluerrors.NewPersistingError(err)
	}

	model := parserModel{
		UnitName: UnitName,
		Config:   p.config,
		Language: p.language,
		Intents:  p.intentOrder,
		Patterns: map[string][]patternModel{},
	}
	for intentName, compiled := range p.patterns {
		persisted := make([]patternModel, 0, len(compiled))
		for _, pat := range compiled {
			persisted = append(persisted, patternModel{Pattern: pat.expr, Slots: pat.groups})
		}
		model.Patterns[intentName] = persisted
	}

	raw, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return nluerrors.NewPersistingError(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644); err != nil {
		return nluerrors.NewPersistingError(err)
	}
	return nil
}

// FromPath restores a persisted deterministic parser.
func FromPath(dir string) (nlu.IntentParser, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("deterministic parser: %v", err))
	}
	var model parserModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("deterministic parser: %v", err))
	}
	if model.UnitName != UnitName {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf(
			"deterministic parser: unexpected unit name %q", model.UnitName))
	}

	parser := New(model.Config)
	parser.language = model.Language
	parser.intentOrder = model.Intents
	parser.patterns = map[string][]pattern{}
	for intentName, persisted := range model.Patterns {
		compiled := make([]pattern, 0, len(persisted))
		for _, pat := range persisted {
			re, err := regexp.Compile(pat.Pattern)
			if err != nil {
				return nil, nluerrors.NewLoadingError(fmt.Sprintf(
					"deterministic parser: invalid pattern for intent %q: %v", intentName, err))
			}
			compiled = append(compiled, pattern{expr: pat.Pattern, re: re, groups: pat.Slots})
		}
		parser.patterns[intentName] = compiled
	}
	parser.fitted = true
	return parser, nil
}
