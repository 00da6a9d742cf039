// Package iotype implements the IOType system: named, single-inheritance
// type descriptors carrying validators, serialization, events, methods and
// metadata defaults, plus the declarative state schema that derives default
// serialize/apply behavior.
package iotype

import (
	"fmt"
	"sort"

	simio "github.com/simio-dev/simio"
)

// Validator describes which runtime values are legal instances of a type.
type Validator struct {
	// Description names the accepted value shape for diagnostics.
	Description string
	IsValid     func(v any) bool
}

// DeserializationMethod selects the canonical deserialization strategy for a
// type when it appears as a composite sub-field.
type DeserializationMethod int

const (
	// ByReference mutates an already-existing instance in place (applyState);
	// the default for model types restored by ordinary state restoration.
	ByReference DeserializationMethod = iota
	// ByValue constructs a fresh value from state (fromStateObject); used for
	// dynamic-element construction arguments and plain data types.
	ByValue
)

// Method is a remote-invocable operation declared on a type.
type Method struct {
	Documentation string
	Returns       *Type
	Parameters    []*Type
	Impl          func(recv any, args []any) (any, error)
	// DisallowReadOnly blocks invocation on read-only elements. Methods are
	// invocable on read-only elements unless they opt out.
	DisallowReadOnly bool
}

// Type is a named descriptor in a linear inheritance chain. Types are created
// once via a Builder, registered by name, and live for the process lifetime.
type Type struct {
	name             string
	supertype        *Type
	validator        Validator
	events           []string
	methods          map[string]Method
	metadataDefaults map[string]any
	dataDefaults     map[string]any
	parameterTypes   []*Type
	schema           *StateSchema
	serialize        func(v any) (any, error)
	deserialize      func(state any) (any, error)
	apply            func(v any, state any) error
	deserializeBy    DeserializationMethod
	documentation    string
}

// Name returns the globally unique type name.
func (t *Type) Name() string { return t.name }

// Supertype returns the parent type, or nil for the root.
func (t *Type) Supertype() *Type { return t.supertype }

// Parameters returns the ordered parameter types of a parametric type.
func (t *Type) Parameters() []*Type { return t.parameterTypes }

// Schema returns the state schema declared at this level, or nil.
func (t *Type) Schema() *StateSchema { return t.schema }

// DeserializeBy returns the canonical deserialization strategy.
func (t *Type) DeserializeBy() DeserializationMethod { return t.deserializeBy }

// Documentation returns the human-readable type description.
func (t *Type) Documentation() string { return t.documentation }

// Extends walks the supertype chain; true when other appears anywhere in the
// chain or equals t.
func (t *Type) Extends(other *Type) bool {
	for cur := t; cur != nil; cur = cur.supertype {
		if cur == other {
			return true
		}
	}
	return false
}

// chain returns t and its ancestors, most-derived first.
func (t *Type) chain() []*Type {
	var out []*Type
	for cur := t; cur != nil; cur = cur.supertype {
		out = append(out, cur)
	}
	return out
}

// chainNames returns the type names walked, most-derived first, for error
// reporting across deep composite hierarchies.
func (t *Type) chainNames() []string {
	var out []string
	for cur := t; cur != nil; cur = cur.supertype {
		out = append(out, cur.name)
	}
	return out
}

// AllEvents merges the event names declared at every level, most-derived
// first. Levels never collide; that is checked at construction.
func (t *Type) AllEvents() []string {
	var out []string
	for _, lvl := range t.chain() {
		out = append(out, lvl.events...)
	}
	return out
}

// HasEvent reports whether the event name is declared anywhere on the chain.
func (t *Type) HasEvent(name string) bool {
	for _, lvl := range t.chain() {
		for _, e := range lvl.events {
			if e == name {
				return true
			}
		}
	}
	return false
}

// AllMetadataDefaults merges this level's defaults over the supertype's,
// child values winning. The result is a fresh map; calling twice yields
// deep-equal results and mutates no shared state.
func (t *Type) AllMetadataDefaults() map[string]any {
	return t.mergeDefaults(func(lvl *Type) map[string]any { return lvl.metadataDefaults })
}

// AllDataDefaults is the data-key analog of AllMetadataDefaults.
func (t *Type) AllDataDefaults() map[string]any {
	return t.mergeDefaults(func(lvl *Type) map[string]any { return lvl.dataDefaults })
}

func (t *Type) mergeDefaults(pick func(*Type) map[string]any) map[string]any {
	out := map[string]any{}
	levels := t.chain()
	// root first so child values win
	for i := len(levels) - 1; i >= 0; i-- {
		for k, v := range pick(levels[i]) {
			out[k] = v
		}
	}
	return out
}

// Validate checks v against this type's validator.
func (t *Type) Validate(v any) error {
	if t.validator.IsValid != nil && !t.validator.IsValid(v) {
		return simio.Issues{{
			Code:    simio.CodeInvalidValue,
			Message: fmt.Sprintf("value is not a valid %s", t.name),
			Hint:    t.validator.Description,
			Types:   t.chainNames(),
		}}
	}
	return nil
}

// ToStateObject validates v, serializes it via the nearest custom serializer
// or composite-schema derivation on the chain, then validates the produced
// state object against the full ancestor chain. The full-chain validation is
// intentionally expensive: state composition can span multiple inheritance
// levels and the mismatch may surface far from its cause.
func (t *Type) ToStateObject(v any) (any, error) {
	if err := t.Validate(v); err != nil {
		return nil, err
	}
	state, declared, err := t.serializeValue(v)
	if err != nil {
		return nil, err
	}
	if declared {
		if iss := t.CheckStateObject(state); len(iss) > 0 {
			return nil, iss
		}
	}
	return state, nil
}

// serializeValue finds the nearest level declaring serialization. declared is
// false when no level on the chain declares anything, in which case state is
// nil (the root object type carries no state of its own).
func (t *Type) serializeValue(v any) (state any, declared bool, err error) {
	for _, lvl := range t.chain() {
		if lvl.serialize != nil {
			st, err := lvl.serialize(v)
			return st, true, err
		}
		if lvl.schema.isComposite() {
			// composite derivation covers every composite level on the chain
			st, err := t.defaultToStateObject(v)
			return st, true, err
		}
		if lvl.schema != nil {
			// value schema without a custom serializer is a declaration bug
			// caught at build time; reaching here means the schema belongs to
			// an ancestor built elsewhere.
			return nil, true, simio.Issues{{
				Code:    simio.CodeNotSerializable,
				Message: fmt.Sprintf("%s declares a value schema but no serializer", lvl.name),
				Types:   t.chainNames(),
			}}
		}
	}
	return nil, false, nil
}

// FromStateObject constructs a fresh value from state (data-type
// deserialization). The nearest custom deserializer on the chain wins.
func (t *Type) FromStateObject(state any) (any, error) {
	for _, lvl := range t.chain() {
		if lvl.deserialize != nil {
			return lvl.deserialize(state)
		}
	}
	return nil, simio.Issues{{
		Code:    simio.CodeNotSerializable,
		Message: fmt.Sprintf("%s declares no fromStateObject", t.name),
		Types:   t.chainNames(),
	}}
}

// ApplyState mutates an existing instance in place from state
// (reference-type deserialization). A custom applier wins; otherwise the
// composite schemas on the chain drive per-field application.
func (t *Type) ApplyState(v any, state any) error {
	for _, lvl := range t.chain() {
		if lvl.apply != nil {
			return lvl.apply(v, state)
		}
	}
	if t.hasCompositeOnChain() {
		return t.defaultApplyState(v, state)
	}
	return simio.Issues{{
		Code:    simio.CodeNotSerializable,
		Message: fmt.Sprintf("%s declares no applyState", t.name),
		Types:   t.chainNames(),
	}}
}

func (t *Type) hasCompositeOnChain() bool {
	for _, lvl := range t.chain() {
		if lvl.schema.isComposite() {
			return true
		}
	}
	return false
}

// LookupMethod finds a method declaration anywhere on the chain.
func (t *Type) LookupMethod(name string) (Method, bool) {
	for _, lvl := range t.chain() {
		if m, ok := lvl.methods[name]; ok {
			return m, true
		}
	}
	return Method{}, false
}

// Invoke looks a method up the chain, checks arity and per-argument
// validators, and calls the implementation.
func (t *Type) Invoke(recv any, name string, args ...any) (any, error) {
	for _, lvl := range t.chain() {
		m, ok := lvl.methods[name]
		if !ok {
			continue
		}
		if len(args) != len(m.Parameters) {
			return nil, simio.Issues{{
				Code:    simio.CodeInvalidValue,
				Message: fmt.Sprintf("%s.%s expects %d arguments, got %d", t.name, name, len(m.Parameters), len(args)),
			}}
		}
		for i, p := range m.Parameters {
			if err := p.Validate(args[i]); err != nil {
				return nil, simio.Issues{{
					Code:    simio.CodeInvalidValue,
					Message: fmt.Sprintf("argument %d of %s.%s is not a valid %s", i, t.name, name, p.name),
					Types:   t.chainNames(),
				}}
			}
		}
		return m.Impl(recv, args)
	}
	return nil, simio.Issues{{
		Code:    simio.CodeMalformedMethod,
		Message: fmt.Sprintf("%s has no method %q", t.name, name),
	}}
}

// Describe renders the type into its API description document form.
func (t *Type) Describe() simio.TypeEntry {
	entry := simio.TypeEntry{}
	if t.supertype != nil {
		entry.SupertypeName = t.supertype.name
	}
	if len(t.events) > 0 {
		entry.Events = append([]string(nil), t.events...)
	}
	if len(t.methods) > 0 {
		entry.Methods = map[string]simio.MethodEntry{}
		names := make([]string, 0, len(t.methods))
		for n := range t.methods {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			m := t.methods[n]
			me := simio.MethodEntry{Documentation: m.Documentation, ReturnType: m.Returns.name}
			for _, p := range m.Parameters {
				me.ParameterTypes = append(me.ParameterTypes, p.name)
			}
			entry.Methods[n] = me
		}
	}
	if t.schema != nil {
		entry.StateSchema = t.schema.describe()
	}
	for _, p := range t.parameterTypes {
		entry.ParameterTypes = append(entry.ParameterTypes, p.name)
	}
	return entry
}
