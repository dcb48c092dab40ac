// Package ontology describes the builtin entity catalogue. The engine core
// only consults entity names and result kinds; recognition itself is
// delegated to a pluggable builtin entity parser.
package ontology

// Builtin entity names.
const (
	EntityNumber        = "snips/number"
	EntityOrdinal       = "snips/ordinal"
	EntityDatetime      = "snips/datetime"
	EntityDuration      = "snips/duration"
	EntityTemperature   = "snips/temperature"
	EntityAmountOfMoney = "snips/amountOfMoney"
	EntityPercentage    = "snips/percentage"
)

// KindCustom tags slot values resolved against a developer-declared entity.
const KindCustom = "Custom"

var builtinKinds = map[string]string{
	EntityNumber:        "Number",
	EntityOrdinal:       "Ordinal",
	EntityDatetime:      "InstantTime",
	EntityDuration:      "Duration",
	EntityTemperature:   "Temperature",
	EntityAmountOfMoney: "AmountOfMoney",
	EntityPercentage:    "Percentage",
}

// IsBuiltinEntity reports whether name belongs to the builtin catalogue.
func IsBuiltinEntity(name string) bool {
	_, ok := builtinKinds[name]
	return ok
}

// BuiltinEntityKind returns the result value kind of a builtin entity, or
// the empty string for unknown names.
func BuiltinEntityKind(name string) string {
	return builtinKinds[name]
}

// AllBuiltinEntities returns the names of the builtin catalogue.
func AllBuiltinEntities() []string {
	names := make([]string, 0, len(builtinKinds))
	for name := range builtinKinds {
		names = append(names, name)
	}
	return names
}
