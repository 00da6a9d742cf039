package iotype

import (
	"fmt"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
)

// Builtin types. Each is memoized per registry so repeated lookups return the
// same instance, and parametric instantiations are pointer-identical per
// parameter-name tuple.

// Boolean returns the BooleanIO type.
func Boolean(reg *Registry) *Type {
	t, err := reg.Memoize("BooleanIO", func() (*Type, error) {
		return New("BooleanIO").
			Extends(reg.Root()).
			ValidateFunc("a boolean", func(v any) bool { _, ok := v.(bool); return ok }).
			ValueSchema("boolean", Validator{Description: "a boolean", IsValid: func(v any) bool { _, ok := v.(bool); return ok }}).
			Serializer(func(v any) (any, error) { return v, nil }).
			Deserializer(func(state any) (any, error) { return state, nil }).
			DeserializeBy(ByValue).
			Documentation("A true/false value.").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

// Number returns the NumberIO type. State normalizes to float64.
func Number(reg *Registry) *Type {
	t, err := reg.Memoize("NumberIO", func() (*Type, error) {
		return New("NumberIO").
			Extends(reg.Root()).
			ValidateFunc("a number", isNumber).
			ValueSchema("number", Validator{Description: "a number", IsValid: isNumber}).
			Serializer(func(v any) (any, error) { return toFloat(v), nil }).
			Deserializer(func(state any) (any, error) {
				if !isNumber(state) {
					return nil, simio.Issues{{Code: simio.CodeInvalidValue, Message: "state is not a number"}}
				}
				return toFloat(state), nil
			}).
			DeserializeBy(ByValue).
			Documentation("A floating point number.").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// String returns the StringIO type.
func String(reg *Registry) *Type {
	t, err := reg.Memoize("StringIO", func() (*Type, error) {
		return New("StringIO").
			Extends(reg.Root()).
			ValidateFunc("a string", func(v any) bool { _, ok := v.(string); return ok }).
			ValueSchema("string", Validator{Description: "a string", IsValid: func(v any) bool { _, ok := v.(string); return ok }}).
			Serializer(func(v any) (any, error) { return v, nil }).
			Deserializer(func(state any) (any, error) { return state, nil }).
			DeserializeBy(ByValue).
			Documentation("A text value.").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Null returns the NullIO type; its only instance is nil.
func Null(reg *Registry) *Type {
	t, err := reg.Memoize("NullIO", func() (*Type, error) {
		return New("NullIO").
			Extends(reg.Root()).
			ValidateFunc("null", func(v any) bool { return v == nil }).
			ValueSchema("null", Validator{Description: "null", IsValid: func(v any) bool { return v == nil }}).
			Serializer(func(v any) (any, error) { return nil, nil }).
			Deserializer(func(state any) (any, error) { return nil, nil }).
			DeserializeBy(ByValue).
			Documentation("The null value.").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Array returns the parametric ArrayIO[param] type, serializing elementwise
// through the parameter type.
func Array(reg *Registry, param *Type) *Type {
	name := "ArrayIO[" + param.Name() + "]"
	t, err := reg.Memoize(name, func() (*Type, error) {
		return New(name).
			Extends(reg.Root()).
			Parameters(param).
			ValidateFunc("a slice", func(v any) bool { _, ok := v.([]any); return ok }).
			ValueSchema("array of "+param.Name(), Validator{
				Description: "a slice",
				IsValid:     func(v any) bool { _, ok := v.([]any); return ok },
			}).
			Serializer(func(v any) (any, error) {
				in := v.([]any)
				out := make([]any, len(in))
				for i, el := range in {
					st, err := param.ToStateObject(el)
					if err != nil {
						return nil, err
					}
					out[i] = st
				}
				return out, nil
			}).
			Deserializer(func(state any) (any, error) {
				in, ok := state.([]any)
				if !ok {
					return nil, simio.Issues{{Code: simio.CodeInvalidValue, Message: "state is not an array"}}
				}
				out := make([]any, len(in))
				for i, st := range in {
					el, err := param.FromStateObject(st)
					if err != nil {
						return nil, err
					}
					out[i] = el
				}
				return out, nil
			}).
			DeserializeBy(ByValue).
			Documentation("An ordered list whose elements are " + param.Name() + ".").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Nullable returns the parametric NullableIO[param] type: the parameter's
// values or nil.
func Nullable(reg *Registry, param *Type) *Type {
	name := "NullableIO[" + param.Name() + "]"
	t, err := reg.Memoize(name, func() (*Type, error) {
		return New(name).
			Extends(reg.Root()).
			Parameters(param).
			ValidateFunc("nil or a valid "+param.Name(), func(v any) bool {
				return v == nil || param.Validate(v) == nil
			}).
			ValueSchema("nullable "+param.Name(), Validator{
				Description: "null or the wrapped state",
				IsValid:     func(v any) bool { return true },
			}).
			Serializer(func(v any) (any, error) {
				if v == nil {
					return nil, nil
				}
				return param.ToStateObject(v)
			}).
			Deserializer(func(state any) (any, error) {
				if state == nil {
					return nil, nil
				}
				return param.FromStateObject(state)
			}).
			DeserializeBy(ByValue).
			Documentation("Either null or a " + param.Name() + ".").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Referable is anything addressable by an identifier node; references
// serialize to the element's full identifier string.
type Referable interface {
	Node() *ident.Node
}

// Reference returns the ReferenceIO type bound to a tree: values serialize to
// their full identifier and deserialize by live lookup.
func Reference(reg *Registry, tree *ident.Tree) *Type {
	t, err := reg.Memoize("ReferenceIO", func() (*Type, error) {
		return New("ReferenceIO").
			Extends(reg.Root()).
			ValidateFunc("a registered element", func(v any) bool {
				r, ok := v.(Referable)
				return ok && r.Node() != nil
			}).
			ValueSchema("identifier string", Validator{
				Description: "a full identifier string",
				IsValid:     func(v any) bool { _, ok := v.(string); return ok },
			}).
			Serializer(func(v any) (any, error) {
				return v.(Referable).Node().FullID(), nil
			}).
			Deserializer(func(state any) (any, error) {
				id, ok := state.(string)
				if !ok {
					return nil, simio.Issues{{Code: simio.CodeInvalidValue, Message: "reference state is not an identifier string"}}
				}
				r, ok := tree.Find(id)
				if !ok {
					return nil, simio.Issues{{
						Path:    id,
						Code:    simio.CodeNotRegistered,
						Message: fmt.Sprintf("no live element at %q", id),
					}}
				}
				return r, nil
			}).
			DeserializeBy(ByValue).
			Documentation("A pointer to another instrumented element, serialized as its identifier.").
			Build(reg)
	})
	if err != nil {
		panic(err)
	}
	return t
}
