package nlu

import (
	"time"
	"unicode/utf8"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/common/logger"
	"github.com/storewaladotcom/snips-nlu/internal/common/metrics"
	"github.com/storewaladotcom/snips-nlu/internal/dataset"
	"github.com/storewaladotcom/snips-nlu/internal/entityparser"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// Engine orchestrates an ordered ensemble of intent parsers and the two
// entity parsing units. It is constructed unfit; Fit transitions it to fit
// and may be called again to retrain. Read-only inference calls against a
// fit engine are safe to issue concurrently; Fit mutates engine state and
// must not race with anything.
type Engine struct {
	config        *EngineConfig
	intentParsers []IntentParser

	builtinEntityParser entityparser.BuiltinEntityParser
	customEntityParser  *entityparser.CustomEntityParser
	resolver            *entityparser.Resolver

	metadata *DatasetMetadata
	log      logger.Logger
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger attaches a structured logger. The default engine is silent.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBuiltinEntityParser supplies an already-built builtin entity parser,
// avoiding a rebuild when the caller holds an equivalent parser for the same
// dataset.
func WithBuiltinEntityParser(p entityparser.BuiltinEntityParser) Option {
	return func(e *Engine) { e.builtinEntityParser = p }
}

// WithCustomEntityParser supplies an already-built custom entity parser.
func WithCustomEntityParser(p *entityparser.CustomEntityParser) Option {
	return func(e *Engine) { e.customEntityParser = p }
}

// New creates an unfit engine. A nil config selects the default parser
// ensemble at fit time.
func New(config *EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		config: config,
		log:    logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's declared configuration, which may be nil
// before fit when none was supplied.
func (e *Engine) Config() *EngineConfig {
	return e.config
}

// DatasetMetadata returns the metadata computed at fit time, nil before fit.
func (e *Engine) DatasetMetadata() *DatasetMetadata {
	return e.metadata
}

// Fitted reports whether the engine has been fit: metadata is present and
// every configured parser reports itself fitted.
func (e *Engine) Fitted() bool {
	if e.metadata == nil {
		return false
	}
	for _, parser := range e.intentParsers {
		if !parser.Fitted() {
			return false
		}
	}
	return true
}

// Fit validates the dataset, computes the dataset metadata, builds the two
// entity parsing units and fits every configured intent parser.
// forceRetrain is threaded through the whole fit call tree: false lets every
// unit skip sub-components that already report themselves fitted, true
// unconditionally refits everything.
func (e *Engine) Fit(ds *dataset.Dataset, forceRetrain bool) error {
	started := time.Now()
	if err := e.fit(ds, forceRetrain); err != nil {
		metrics.EngineFitTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.EngineFitTotal.WithLabelValues("ok").Inc()
	metrics.EngineFitDuration.Observe(time.Since(started).Seconds())
	return nil
}

func (e *Engine) fit(ds *dataset.Dataset, forceRetrain bool) error {
	if err := dataset.Validate(ds); err != nil {
		return err
	}

	e.log.Info("fitting engine", map[string]interface{}{
		"language":     ds.Language,
		"intents":      len(ds.Intents),
		"entities":     len(ds.Entities),
		"forceRetrain": forceRetrain,
	})

	if e.config == nil {
		cfg, err := DefaultEngineConfig()
		if err != nil {
			return err
		}
		e.config = cfg
	}

	e.metadata = computeDatasetMetadata(ds)
	e.builtinEntityParser = entityparser.BuildBuiltinEntityParser(ds)
	e.customEntityParser = entityparser.BuildCustomEntityParser(ds)
	e.resolver = entityparser.NewResolver(e.builtinEntityParser, e.customEntityParser)

	parsers := make([]IntentParser, 0, len(e.config.ParserConfigs))
	for _, parserConfig := range e.config.ParserConfigs {
		parser := e.recycledParser(parserConfig.UnitName())
		if parser == nil {
			provider, err := lookupParser(parserConfig.UnitName())
			if err != nil {
				return err
			}
			parser, err = provider.New(parserConfig)
			if err != nil {
				return err
			}
		}
		if err := parser.Fit(ds, forceRetrain); err != nil {
			return err
		}
		parsers = append(parsers, parser)
	}
	e.intentParsers = parsers
	return nil
}

// recycledParser returns an already-present parser with the given unit name
// so that partial retraining can reuse its trained sub-components.
func (e *Engine) recycledParser(unitName string) IntentParser {
	for _, parser := range e.intentParsers {
		if parser.Name() == unitName {
			return parser
		}
	}
	return nil
}

// AddIntentParser appends an already-constructed parser to the ensemble.
// Parsers added this way are recycled by fit when their unit name appears in
// the configuration.
func (e *Engine) AddIntentParser(parser IntentParser) {
	e.intentParsers = append(e.intentParsers, parser)
}

// Parse extracts the single best intent and its resolved slots. Parsers are
// consulted strictly in configured order and the first non-empty result wins
// outright. A nil or empty intents slice leaves the intent set unrestricted.
func (e *Engine) Parse(text string, intents []string) (result.ParseResult, error) {
	started := time.Now()
	res, err := e.parse(text, intents)
	if err != nil {
		metrics.EngineParseTotal.WithLabelValues("error").Inc()
		return result.ParseResult{}, err
	}
	metrics.EngineParseTotal.WithLabelValues("ok").Inc()
	metrics.EngineParseDuration.Observe(time.Since(started).Seconds())
	return res, nil
}

func (e *Engine) parse(text string, intents []string) (result.ParseResult, error) {
	if err := e.checkInference(text, "parse"); err != nil {
		return result.ParseResult{}, err
	}
	if err := e.checkIntents(intents); err != nil {
		return result.ParseResult{}, err
	}

	for _, parser := range e.intentParsers {
		res, err := parser.Parse(text, intents, 0)
		if err != nil {
			return result.ParseResult{}, err
		}
		if res.IsEmpty() {
			continue
		}
		slots, err := e.resolveSlots(res.Slots)
		if err != nil {
			return result.ParseResult{}, err
		}
		res.Input = text
		res.Slots = slots
		return res, nil
	}
	return result.EmptyResult(text), nil
}

// ParseTopN extracts the topN best merged intent candidates, each annotated
// with the slots of the parser that produced its winning probability. The
// no-intent sentinel carries an empty slot list.
func (e *Engine) ParseTopN(text string, intents []string, topN int) ([]result.ExtractionResult, error) {
	started := time.Now()
	results, err := e.parseTopN(text, intents, topN)
	if err != nil {
		metrics.EngineParseTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EngineParseTotal.WithLabelValues("ok").Inc()
	metrics.EngineParseDuration.Observe(time.Since(started).Seconds())
	return results, nil
}

func (e *Engine) parseTopN(text string, intents []string, topN int) ([]result.ExtractionResult, error) {
	if err := e.checkInference(text, "parse"); err != nil {
		return nil, err
	}
	if err := e.checkIntents(intents); err != nil {
		return nil, err
	}

	var allowed map[string]bool
	if len(intents) > 0 {
		allowed = map[string]bool{}
		for _, intent := range intents {
			allowed[intent] = true
		}
	}

	merged, err := e.mergedIntents(text, allowed)
	if err != nil {
		return nil, err
	}
	if topN > 0 && len(merged) > topN {
		merged = merged[:topN]
	}

	results := make([]result.ExtractionResult, 0, len(merged))
	for _, candidate := range merged {
		slots := []result.Slot{}
		if !candidate.intent.IsNone() {
			parserSlots, err := e.intentParsers[candidate.parserIndex].GetSlots(text, candidate.intent.IntentName)
			if err != nil {
				return nil, err
			}
			slots, err = e.resolveSlots(parserSlots)
			if err != nil {
				return nil, err
			}
		}
		results = append(results, result.ExtractionResult{Intent: candidate.intent, Slots: slots})
	}
	return results, nil
}

// GetIntents returns the full merged ranked intent list, without slots.
func (e *Engine) GetIntents(text string) ([]result.IntentClassification, error) {
	if err := e.checkInference(text, "get_intents"); err != nil {
		return nil, err
	}
	merged, err := e.mergedIntents(text, nil)
	if err != nil {
		return nil, err
	}
	intents := make([]result.IntentClassification, 0, len(merged))
	for _, candidate := range merged {
		intents = append(intents, candidate.intent)
	}
	return intents, nil
}

func (e *Engine) mergedIntents(text string, allowed map[string]bool) ([]mergedIntent, error) {
	lists := make([][]result.IntentClassification, 0, len(e.intentParsers))
	for _, parser := range e.intentParsers {
		list, err := parser.GetIntents(text)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return mergeIntentLists(lists, allowed), nil
}

// GetSlots returns the resolved slots of one specific intent, taken from the
// first parser in priority order that yields a non-empty result.
func (e *Engine) GetSlots(text string, intent string) ([]result.Slot, error) {
	if err := e.checkInference(text, "get_slots"); err != nil {
		return nil, err
	}
	if _, trained := e.metadata.SlotNameMappings[intent]; !trained {
		return nil, nluerrors.NewIntentNotFoundError(intent)
	}

	for _, parser := range e.intentParsers {
		slots, err := parser.GetSlots(text, intent)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			return e.resolveSlots(slots)
		}
	}
	return []result.Slot{}, nil
}

func (e *Engine) resolveSlots(slots []result.Slot) ([]result.Slot, error) {
	resolved := make([]result.Slot, 0, len(slots))
	for _, slot := range slots {
		resolvedSlot, err := e.resolver.ResolveSlot(slot)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedSlot)
	}
	return resolved, nil
}

// checkInference guards every inference operation: the engine must be fit
// and the input must be decoded text. Raw, undecoded byte input surfaces as
// invalid UTF-8 and is rejected rather than coerced.
func (e *Engine) checkInference(text, operation string) error {
	if e.metadata == nil {
		return nluerrors.NewNotTrainedError(operation)
	}
	if !utf8.ValidString(text) {
		return nluerrors.NewInvalidInputError("expected valid UTF-8 text")
	}
	return nil
}

// checkIntents validates a parse restriction against the trained intent set.
func (e *Engine) checkIntents(intents []string) error {
	for _, intent := range intents {
		if _, trained := e.metadata.SlotNameMappings[intent]; !trained {
			return nluerrors.NewIntentNotFoundError(intent)
		}
	}
	return nil
}
