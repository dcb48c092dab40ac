package entityparser

import (
	"github.com/storewaladotcom/snips-nlu/internal/ontology"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// Resolver maps a raw slot span to its canonical typed value: builtin
// entities delegate to the builtin entity parser and pass its structured
// value through verbatim; custom entities go through exact synonym lookup.
// A resolution miss is not an error, it degrades to the raw value.
type Resolver struct {
	builtin BuiltinEntityParser
	custom  *CustomEntityParser
}

// NewResolver wires the two entity parsing units into a resolver.
func NewResolver(builtin BuiltinEntityParser, custom *CustomEntityParser) *Resolver {
	return &Resolver{builtin: builtin, custom: custom}
}

// Resolve turns the raw value of a slot of the named entity into its
// canonical value, falling back to the raw string tagged "Custom" when
// nothing matches.
func (r *Resolver) Resolve(rawValue, entityName string) (result.SlotValue, error) {
	if ontology.IsBuiltinEntity(entityName) {
		if r.builtin != nil {
			matches, err := r.builtin.Parse(rawValue, []string{entityName})
			if err != nil {
				return result.SlotValue{}, err
			}
			if len(matches) > 0 {
				return matches[0].Value, nil
			}
		}
		return result.SlotValue{Kind: ontology.KindCustom, Value: rawValue}, nil
	}

	if r.custom != nil {
		if canonical, ok := r.custom.Resolve(rawValue, entityName); ok {
			return result.SlotValue{Kind: ontology.KindCustom, Value: canonical}, nil
		}
	}
	return result.SlotValue{Kind: ontology.KindCustom, Value: rawValue}, nil
}

// ResolveSlot resolves one unresolved slot.
func (r *Resolver) ResolveSlot(slot result.Slot) (result.Slot, error) {
	value, err := r.Resolve(slot.RawValue, slot.Entity)
	if err != nil {
		return result.Slot{}, err
	}
	return slot.Resolved(value), nil
}
