package iotype

import (
	"fmt"
	"sort"

	simio "github.com/simio-dev/simio"
)

// PrivateKey nests composite fields that are excluded from public API
// comparison but still round-tripped through state.
const PrivateKey = "_private"

// StateProvider exposes an instance's named state fields for schema-derived
// serialization. Go has no runtime-open property bags, so instances
// participating in composite schemas implement this explicitly.
type StateProvider interface {
	StateField(name string) (any, bool)
}

// StateReceiver accepts deserialized field values for schema-derived state
// application of by-value fields.
type StateReceiver interface {
	SetStateField(name string, v any) error
}

// Field binds a composite schema key to the field's own type and the
// deserialization strategy used when applying state to that field.
type Field struct {
	Type *Type
	By   DeserializationMethod
}

// StateSchema declares how an instance's state decomposes. Exactly one of
// the two variants holds: a value schema (the whole state is one opaque value
// checked by a validator) or a composite schema (named, independently-typed
// sub-fields partitioned into public and private).
type StateSchema struct {
	displayName string
	validator   *Validator
	public      map[string]Field
	private     map[string]Field
}

// NewValueSchema constructs the value variant.
func NewValueSchema(displayName string, v Validator) *StateSchema {
	return &StateSchema{displayName: displayName, validator: &v}
}

// IsComposite reports whether the schema was constructed from a field map.
func (s *StateSchema) IsComposite() bool { return s.isComposite() }

func (s *StateSchema) isComposite() bool {
	return s != nil && (len(s.public) > 0 || len(s.private) > 0)
}

// DisplayName returns the value-schema display name.
func (s *StateSchema) DisplayName() string { return s.displayName }

// PublicFields returns the declared public field names, sorted.
func (s *StateSchema) PublicFields() []string { return sortedKeys(s.public) }

// PrivateFields returns the declared private field names, sorted.
func (s *StateSchema) PrivateFields() []string { return sortedKeys(s.private) }

func sortedKeys(m map[string]Field) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckResult is the tri-state outcome of checking one schema level.
type CheckResult int

const (
	CheckValid   CheckResult = iota // The level fully accepts the state.
	CheckInvalid                    // The level rejects the state.
	CheckDefer                      // Nothing more to check at this level; walk the supertype.
)

// CheckState verifies state against this level only. Value schemas decide
// terminally; composite schemas verify their own declared keys and defer the
// extra-key decision to the point where the ancestor chain bottoms out.
func (s *StateSchema) CheckState(state any) (CheckResult, simio.Issues) {
	if s == nil {
		return CheckDefer, nil
	}
	if !s.isComposite() {
		if s.validator != nil && s.validator.IsValid != nil && !s.validator.IsValid(state) {
			return CheckInvalid, simio.Issues{{
				Code:    simio.CodeInvalidValue,
				Message: fmt.Sprintf("state is not a valid %s", s.displayName),
				Hint:    s.validator.Description,
			}}
		}
		return CheckValid, nil
	}
	m, ok := state.(map[string]any)
	if !ok {
		return CheckInvalid, simio.Issues{{
			Code:    simio.CodeInvalidValue,
			Message: "composite state object must be a map",
		}}
	}
	var iss simio.Issues
	priv, _ := m[PrivateKey].(map[string]any)
	for _, name := range s.PublicFields() {
		iss = simio.AppendIssues(iss, s.checkField(m, name, s.public[name])...)
	}
	for _, name := range s.PrivateFields() {
		iss = simio.AppendIssues(iss, s.checkField(priv, name, s.private[name])...)
	}
	if len(iss) > 0 {
		return CheckInvalid, iss
	}
	return CheckDefer, nil
}

func (s *StateSchema) checkField(m map[string]any, name string, f Field) simio.Issues {
	sub, ok := m[name]
	if !ok {
		return simio.Issues{{
			Code:    simio.CodeMissingStateKey,
			Message: fmt.Sprintf("state object lacks declared key %q", name),
			Params:  map[string]any{"key": name},
		}}
	}
	if iss := f.Type.CheckStateObject(sub); len(iss) > 0 {
		out := make(simio.Issues, 0, len(iss))
		for _, it := range iss {
			if it.Params == nil {
				it.Params = map[string]any{}
			}
			if _, has := it.Params["key"]; !has {
				it.Params["key"] = name
			}
			out = append(out, it)
		}
		return out
	}
	return nil
}

// describe renders the schema into its API document form: field name to type
// name, private fields prefixed, or the value display name under "_value".
func (s *StateSchema) describe() map[string]string {
	if s == nil {
		return nil
	}
	out := map[string]string{}
	if !s.isComposite() {
		out["_value"] = s.displayName
		return out
	}
	for name, f := range s.public {
		out[name] = f.Type.name
	}
	for name, f := range s.private {
		out[PrivateKey+"."+name] = f.Type.name
	}
	return out
}

// CheckStateObject validates a produced state object against the entire
// ancestor chain: every composite level's declared keys must be present and
// individually valid, a value level decides terminally, and once the chain
// bottoms out no extra keys may remain beyond the union of declared keys.
func (t *Type) CheckStateObject(state any) simio.Issues {
	publicSeen := map[string]bool{}
	privateSeen := map[string]bool{}
	sawComposite := false
	for _, lvl := range t.chain() {
		res, iss := lvl.schema.CheckState(state)
		if res == CheckInvalid {
			return withTypes(iss, t.chainNames())
		}
		if res == CheckValid {
			return nil // value schema bottoms the walk out
		}
		if lvl.schema.isComposite() {
			sawComposite = true
			for name := range lvl.schema.public {
				publicSeen[name] = true
			}
			for name := range lvl.schema.private {
				privateSeen[name] = true
			}
		}
	}
	if !sawComposite {
		return nil
	}
	m, ok := state.(map[string]any)
	if !ok {
		return simio.Issues{{
			Code:    simio.CodeInvalidValue,
			Message: "composite state object must be a map",
			Types:   t.chainNames(),
		}}
	}
	var iss simio.Issues
	for _, k := range sortedAnyKeys(m) {
		if k == PrivateKey && len(privateSeen) > 0 {
			continue
		}
		if !publicSeen[k] {
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeExtraStateKey,
				Message: fmt.Sprintf("state object carries undeclared key %q", k),
				Params:  map[string]any{"key": k},
				Types:   t.chainNames(),
			})
		}
	}
	if priv, ok := m[PrivateKey].(map[string]any); ok {
		for _, k := range sortedAnyKeys(priv) {
			if !privateSeen[k] {
				iss = simio.AppendIssues(iss, simio.Issue{
					Code:    simio.CodeExtraStateKey,
					Message: fmt.Sprintf("state object carries undeclared private key %q", k),
					Params:  map[string]any{"key": PrivateKey + "." + k},
					Types:   t.chainNames(),
				})
			}
		}
	}
	return iss
}

func sortedAnyKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func withTypes(iss simio.Issues, chain []string) simio.Issues {
	for i := range iss {
		if len(iss[i].Types) == 0 {
			iss[i].Types = chain
		}
	}
	return iss
}

// defaultToStateObject derives the state object from the composite schemas on
// the whole chain, reading fields through StateProvider and recursively
// serializing each through its own type. Private fields merge under the
// private key.
func (t *Type) defaultToStateObject(v any) (any, error) {
	sp, ok := v.(StateProvider)
	if !ok {
		return nil, simio.Issues{{
			Code:    simio.CodeNotSerializable,
			Message: fmt.Sprintf("value of %s does not expose state fields", t.name),
			Hint:    "implement iotype.StateProvider",
			Types:   t.chainNames(),
		}}
	}
	out := map[string]any{}
	var priv map[string]any
	for _, lvl := range t.chain() {
		if !lvl.schema.isComposite() {
			continue
		}
		for _, name := range lvl.schema.PublicFields() {
			st, err := serializeField(sp, name, lvl.schema.public[name], t)
			if err != nil {
				return nil, err
			}
			out[name] = st
		}
		for _, name := range lvl.schema.PrivateFields() {
			st, err := serializeField(sp, name, lvl.schema.private[name], t)
			if err != nil {
				return nil, err
			}
			if priv == nil {
				priv = map[string]any{}
			}
			priv[name] = st
		}
	}
	if priv != nil {
		out[PrivateKey] = priv
	}
	return out, nil
}

func serializeField(sp StateProvider, name string, f Field, owner *Type) (any, error) {
	raw, ok := sp.StateField(name)
	if !ok {
		return nil, simio.Issues{{
			Code:    simio.CodeFieldMissing,
			Message: fmt.Sprintf("instance lacks expected property %q", name),
			Params:  map[string]any{"key": name},
			Types:   owner.chainNames(),
		}}
	}
	return f.Type.ToStateObject(raw)
}

// defaultApplyState is the symmetric derivation: per field, dispatch to
// fromStateObject (assign the result) or applyState (mutate the nested
// value) per the field's deserialization method.
func (t *Type) defaultApplyState(v any, state any) error {
	m, ok := state.(map[string]any)
	if !ok {
		return simio.Issues{{
			Code:    simio.CodeInvalidValue,
			Message: "composite state object must be a map",
			Types:   t.chainNames(),
		}}
	}
	priv, _ := m[PrivateKey].(map[string]any)
	for _, lvl := range t.chain() {
		if !lvl.schema.isComposite() {
			continue
		}
		for _, name := range lvl.schema.PublicFields() {
			if err := applyField(v, m, name, lvl.schema.public[name], t); err != nil {
				return err
			}
		}
		for _, name := range lvl.schema.PrivateFields() {
			if err := applyField(v, priv, name, lvl.schema.private[name], t); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyField(v any, m map[string]any, name string, f Field, owner *Type) error {
	raw, ok := m[name]
	if !ok {
		return simio.Issues{{
			Code:    simio.CodeMissingStateKey,
			Message: fmt.Sprintf("state object lacks declared key %q", name),
			Params:  map[string]any{"key": name},
			Types:   owner.chainNames(),
		}}
	}
	if f.By == ByValue {
		recv, ok := v.(StateReceiver)
		if !ok {
			return simio.Issues{{
				Code:    simio.CodeNotSerializable,
				Message: fmt.Sprintf("value of %s does not accept state fields", owner.name),
				Hint:    "implement iotype.StateReceiver",
				Types:   owner.chainNames(),
			}}
		}
		val, err := f.Type.FromStateObject(raw)
		if err != nil {
			return err
		}
		return recv.SetStateField(name, val)
	}
	sp, ok := v.(StateProvider)
	if !ok {
		return simio.Issues{{
			Code:    simio.CodeNotSerializable,
			Message: fmt.Sprintf("value of %s does not expose state fields", owner.name),
			Hint:    "implement iotype.StateProvider",
			Types:   owner.chainNames(),
		}}
	}
	cur, ok := sp.StateField(name)
	if !ok {
		return simio.Issues{{
			Code:    simio.CodeFieldMissing,
			Message: fmt.Sprintf("instance lacks expected property %q", name),
			Params:  map[string]any{"key": name},
			Types:   owner.chainNames(),
		}}
	}
	return f.Type.ApplyState(cur, raw)
}
