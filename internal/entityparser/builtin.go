// Package entityparser implements the two entity parsing units owned by the
// engine: the builtin entity parser contract with its default rule-based
// implementation, the custom entity parser built from the dataset, and the
// resolver that turns raw slot spans into canonical values.
package entityparser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/dataset"
	"github.com/storewaladotcom/snips-nlu/internal/ontology"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// BuiltinUnitName is the storage name of the builtin entity parser.
const BuiltinUnitName = "builtin_entity_parser"

// BuiltinEntity is one builtin entity match inside a text.
type BuiltinEntity struct {
	Entity string            `json:"entity"`
	Range  result.MatchRange `json:"range"`
	Value  result.SlotValue  `json:"value"`
}

// BuiltinEntityParser recognizes builtin entities (numbers, ordinals, ...)
// in text. Implementations are pluggable; the engine consumes this contract
// only.
type BuiltinEntityParser interface {
	// Parse returns the builtin entities found in text, restricted to the
	// given entity names when scope is non-empty.
	Parse(text string, scope []string) ([]BuiltinEntity, error)
	// Persist writes the parser under dir.
	Persist(dir string) error
}

// ruleBuiltinParser is the default BuiltinEntityParser: regex and word-list
// recognition of snips/number and snips/ordinal.
type ruleBuiltinParser struct {
	language string
}

// BuildBuiltinEntityParser creates the default builtin entity parser for
// the dataset's language.
func BuildBuiltinEntityParser(ds *dataset.Dataset) BuiltinEntityParser {
	return &ruleBuiltinParser{language: ds.Language}
}

var (
	numberPattern  = regexp.MustCompile(`(?i)-?\d+(?:\.\d+)?`)
	ordinalPattern = regexp.MustCompile(`(?i)\b(\d+)(?:st|nd|rd|th)\b`)
)

var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "hundred": 100, "thousand": 1000,
}

var ordinalWords = map[string]int64{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

func (p *ruleBuiltinParser) Parse(text string, scope []string) ([]BuiltinEntity, error) {
	inScope := func(name string) bool {
		if len(scope) == 0 {
			return true
		}
		for _, s := range scope {
			if s == name {
				return true
			}
		}
		return false
	}

	var entities []BuiltinEntity
	if inScope(ontology.EntityOrdinal) {
		entities = append(entities, p.parseOrdinals(text)...)
	}
	if inScope(ontology.EntityNumber) {
		entities = append(entities, p.parseNumbers(text, entities)...)
	}
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Range.Start < entities[j].Range.Start
	})
	return entities, nil
}

func (p *ruleBuiltinParser) parseOrdinals(text string) []BuiltinEntity {
	var entities []BuiltinEntity
	for _, loc := range ordinalPattern.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.ParseInt(text[loc[2]:loc[3]], 10, 64)
		if err != nil {
			continue
		}
		entities = append(entities, BuiltinEntity{
			Entity: ontology.EntityOrdinal,
			Range:  result.MatchRange{Start: loc[0], End: loc[1]},
			Value:  result.SlotValue{Kind: ontology.BuiltinEntityKind(ontology.EntityOrdinal), Value: n},
		})
	}
	for _, tok := range tokenize(text) {
		if n, ok := ordinalWords[strings.ToLower(tok.word)]; ok {
			entities = append(entities, BuiltinEntity{
				Entity: ontology.EntityOrdinal,
				Range:  result.MatchRange{Start: tok.start, End: tok.start + len(tok.word)},
				Value:  result.SlotValue{Kind: ontology.BuiltinEntityKind(ontology.EntityOrdinal), Value: n},
			})
		}
	}
	return entities
}

func (p *ruleBuiltinParser) parseNumbers(text string, taken []BuiltinEntity) []BuiltinEntity {
	overlapsTaken := func(start, end int) bool {
		for _, e := range taken {
			if start < e.Range.End && e.Range.Start < end {
				return true
			}
		}
		return false
	}

	var entities []BuiltinEntity
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		if overlapsTaken(loc[0], loc[1]) {
			continue
		}
		f, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
		if err != nil {
			continue
		}
		entities = append(entities, BuiltinEntity{
			Entity: ontology.EntityNumber,
			Range:  result.MatchRange{Start: loc[0], End: loc[1]},
			Value:  result.SlotValue{Kind: ontology.BuiltinEntityKind(ontology.EntityNumber), Value: f},
		})
	}
	for _, tok := range tokenize(text) {
		if overlapsTaken(tok.start, tok.start+len(tok.word)) {
			continue
		}
		if f, ok := numberWords[strings.ToLower(tok.word)]; ok {
			entities = append(entities, BuiltinEntity{
				Entity: ontology.EntityNumber,
				Range:  result.MatchRange{Start: tok.start, End: tok.start + len(tok.word)},
				Value:  result.SlotValue{Kind: ontology.BuiltinEntityKind(ontology.EntityNumber), Value: f},
			})
		}
	}
	return entities
}

// token is one whitespace-separated word of a text together with its byte
// offset.
type token struct {
	start int
	word  string
}

// tokenize returns the whitespace-separated words of text in reading order.
func tokenize(text string) []token {
	var words []token
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' {
			if start >= 0 {
				words = append(words, token{start: start, word: text[start:i]})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, token{start: start, word: text[start:]})
	}
	return words
}

type builtinMetadata struct {
	UnitName string `json:"unit_name"`
	Language string `json:"language"`
}

// Persist writes the parser metadata under dir.
func (p *ruleBuiltinParser) Persist(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nluerrors.NewPersistingError(err)
	}
	meta := builtinMetadata{UnitName: BuiltinUnitName, Language: p.language}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nluerrors.NewPersistingError(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644); err != nil {
		return nluerrors.NewPersistingError(err)
	}
	return nil
}

// LoadBuiltinEntityParser restores a persisted builtin entity parser.
func LoadBuiltinEntityParser(dir string) (BuiltinEntityParser, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("builtin entity parser: %v", err))
	}
	var meta builtinMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("builtin entity parser: %v", err))
	}
	if meta.UnitName != BuiltinUnitName {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf(
			"builtin entity parser: unexpected unit name %q", meta.UnitName))
	}
	return &ruleBuiltinParser{language: meta.Language}, nil
}
