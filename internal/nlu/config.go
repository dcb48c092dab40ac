package nlu

import (
	"encoding/json"
	"fmt"
)

// EngineUnitName is the unit name discriminator of the engine itself.
const EngineUnitName = "nlu_engine"

// defaultParserOrder lists the unit names of the default intent parser
// ensemble, strongest strategy first.
var defaultParserOrder = []string{"deterministic_intent_parser"}

// EngineConfig is the declared set of intent parser configurations, in
// priority order. It is constructed once and passed by reference; it is
// independent from fitted state.
type EngineConfig struct {
	ParserConfigs []UnitConfig
}

// UnitName implements UnitConfig.
func (c *EngineConfig) UnitName() string {
	return EngineUnitName
}

// DefaultEngineConfig returns the engine configuration used when none is
// supplied: the default parser ensemble. Every default strategy must be
// registered in this process, which usually means importing its package for
// side effects.
func DefaultEngineConfig() (*EngineConfig, error) {
	cfg := &EngineConfig{}
	for _, name := range defaultParserOrder {
		provider, err := lookupParser(name)
		if err != nil {
			return nil, fmt.Errorf("default engine config: %w", err)
		}
		cfg.ParserConfigs = append(cfg.ParserConfigs, provider.DefaultConfig())
	}
	return cfg, nil
}

type engineConfigJSON struct {
	UnitName            string            `json:"unit_name"`
	IntentParserConfigs []json.RawMessage `json:"intent_parsers_configs"`
}

// MarshalJSON serializes the engine config with unit_name discriminators on
// itself and on every parser config.
func (c *EngineConfig) MarshalJSON() ([]byte, error) {
	out := engineConfigJSON{
		UnitName:            c.UnitName(),
		IntentParserConfigs: []json.RawMessage{},
	}
	for _, parserCfg := range c.ParserConfigs {
		raw, err := MarshalUnitConfig(parserCfg)
		if err != nil {
			return nil, err
		}
		out.IntentParserConfigs = append(out.IntentParserConfigs, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs the engine config, resolving every parser
// config through the registry by its unit_name discriminator.
func (c *EngineConfig) UnmarshalJSON(data []byte) error {
	var raw engineConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.UnitName != "" && raw.UnitName != EngineUnitName {
		return fmt.Errorf("wrong unit name for engine config: %q", raw.UnitName)
	}
	c.ParserConfigs = nil
	for _, rawCfg := range raw.IntentParserConfigs {
		unitName, err := unitNameOf(rawCfg)
		if err != nil {
			return err
		}
		if unitName == "" {
			return fmt.Errorf("intent parser config without unit_name")
		}
		provider, err := lookupParser(unitName)
		if err != nil {
			return err
		}
		stripped, err := stripUnitName(rawCfg)
		if err != nil {
			return err
		}
		parserCfg, err := provider.DecodeConfig(stripped)
		if err != nil {
			return fmt.Errorf("decoding config of %q: %w", unitName, err)
		}
		c.ParserConfigs = append(c.ParserConfigs, parserCfg)
	}
	return nil
}

// stripUnitName removes the unit_name discriminator before reconstruction.
func stripUnitName(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "unit_name")
	return json.Marshal(fields)
}
