package deterministic

// UnitName is the stable unit name of the deterministic intent parser.
const UnitName = "deterministic_intent_parser"

// Config declares the deterministic parser settings. It is an immutable
// value object; the unit_name discriminator is added on serialization.
type Config struct {
	// MaxPatternLength caps the compiled pattern length; longer training
	// utterances are skipped.
	MaxPatternLength int `json:"max_pattern_length"`
	// MaxQueries caps the number of utterances compiled per intent.
	MaxQueries int `json:"max_queries"`
}

// UnitName implements the processing unit config contract.
func (Config) UnitName() string {
	return UnitName
}

// DefaultConfig returns the default deterministic parser configuration.
func DefaultConfig() Config {
	return Config{
		MaxPatternLength: 1000,
		MaxQueries:       100,
	}
}
