package nlu

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ParserProvider registers one intent parser strategy under its stable unit
// name. New strategies can be registered externally at process start.
type ParserProvider struct {
	// Name is the stable unit name discriminator.
	Name string
	// DefaultConfig returns the parser's default configuration.
	DefaultConfig func() UnitConfig
	// DecodeConfig reconstructs a configuration from its serialized form,
	// with the unit_name discriminator already stripped.
	DecodeConfig func(raw json.RawMessage) (UnitConfig, error)
	// New builds an unfitted parser from a configuration.
	New func(cfg UnitConfig) (IntentParser, error)
	// Load restores a persisted parser from its directory.
	Load func(dir string) (IntentParser, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ParserProvider{}
)

// RegisterIntentParser adds a parser strategy to the registry. Registering
// the same unit name twice panics, mirroring duplicate driver registration.
func RegisterIntentParser(p ParserProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if p.Name == "" {
		panic("nlu: RegisterIntentParser with empty unit name")
	}
	if _, dup := registry[p.Name]; dup {
		panic(fmt.Sprintf("nlu: RegisterIntentParser called twice for %q", p.Name))
	}
	registry[p.Name] = p
}

// lookupParser returns the provider registered under unitName.
func lookupParser(unitName string) (ParserProvider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[unitName]
	if !ok {
		return ParserProvider{}, fmt.Errorf("no intent parser registered under unit name %q", unitName)
	}
	return p, nil
}

// resetIntentParsers clears the registry. Tests only.
func resetIntentParsers() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]ParserProvider{}
}
