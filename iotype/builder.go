package iotype

import (
	"fmt"
	"reflect"

	simio "github.com/simio-dev/simio"
)

// Builder assembles a Type. Declaration-time contract violations (duplicate
// names, event collisions with ancestors, malformed methods, ambiguous
// schemas, redundant defaults) surface at Build and abort construction.
type Builder struct {
	name             string
	supertype        *Type
	validator        *Validator
	events           []string
	methods          map[string]Method
	methodOrder      []string
	metadataDefaults map[string]any
	dataDefaults     map[string]any
	parameterTypes   []*Type
	valueName        string
	valueValidator   *Validator
	public           map[string]Field
	private          map[string]Field
	serialize        func(v any) (any, error)
	deserialize      func(state any) (any, error)
	apply            func(v any, state any) error
	deserializeBy    DeserializationMethod
	documentation    string
}

// New starts a builder for the given type name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Extends sets the supertype. Every type except the registry root has one.
func (b *Builder) Extends(t *Type) *Builder {
	b.supertype = t
	return b
}

// Validate sets the instance validator.
func (b *Builder) Validate(v Validator) *Builder {
	b.validator = &v
	return b
}

// ValidateFunc is shorthand for Validate with a description and predicate.
func (b *Builder) ValidateFunc(description string, fn func(any) bool) *Builder {
	return b.Validate(Validator{Description: description, IsValid: fn})
}

// Events declares event names introduced at this level. Names must not
// duplicate any ancestor's.
func (b *Builder) Events(names ...string) *Builder {
	b.events = append(b.events, names...)
	return b
}

// Method declares a remote-invocable operation.
func (b *Builder) Method(name string, m Method) *Builder {
	if b.methods == nil {
		b.methods = map[string]Method{}
	}
	if _, ok := b.methods[name]; !ok {
		b.methodOrder = append(b.methodOrder, name)
	}
	b.methods[name] = m
	return b
}

// MetadataDefault records a metadata default introduced at this level.
func (b *Builder) MetadataDefault(key string, v any) *Builder {
	if b.metadataDefaults == nil {
		b.metadataDefaults = map[string]any{}
	}
	b.metadataDefaults[key] = v
	return b
}

// DataDefault records a data default introduced at this level.
func (b *Builder) DataDefault(key string, v any) *Builder {
	if b.dataDefaults == nil {
		b.dataDefaults = map[string]any{}
	}
	b.dataDefaults[key] = v
	return b
}

// Parameters sets the ordered parameter types of a parametric type.
func (b *Builder) Parameters(ts ...*Type) *Builder {
	b.parameterTypes = append(b.parameterTypes, ts...)
	return b
}

// ValueSchema declares the state as a single opaque value checked by v.
// Mutually exclusive with Field/PrivateField.
func (b *Builder) ValueSchema(displayName string, v Validator) *Builder {
	b.valueName = displayName
	b.valueValidator = &v
	return b
}

// Field declares a public composite field deserialized by the field type's
// own canonical method.
func (b *Builder) Field(name string, t *Type) *Builder {
	if b.public == nil {
		b.public = map[string]Field{}
	}
	b.public[name] = Field{Type: t, By: t.deserializeBy}
	return b
}

// FieldBy declares a public composite field with an explicit deserialization
// method, overriding the field type's default.
func (b *Builder) FieldBy(name string, t *Type, by DeserializationMethod) *Builder {
	if b.public == nil {
		b.public = map[string]Field{}
	}
	b.public[name] = Field{Type: t, By: by}
	return b
}

// PrivateField declares a field excluded from public API comparison but still
// round-tripped through state.
func (b *Builder) PrivateField(name string, t *Type) *Builder {
	if b.private == nil {
		b.private = map[string]Field{}
	}
	b.private[name] = Field{Type: t, By: t.deserializeBy}
	return b
}

// Serializer sets a custom toStateObject, overriding schema derivation.
func (b *Builder) Serializer(fn func(v any) (any, error)) *Builder {
	b.serialize = fn
	return b
}

// Deserializer sets fromStateObject (data-type deserialization).
func (b *Builder) Deserializer(fn func(state any) (any, error)) *Builder {
	b.deserialize = fn
	return b
}

// Applier sets applyState (reference-type deserialization).
func (b *Builder) Applier(fn func(v any, state any) error) *Builder {
	b.apply = fn
	return b
}

// DeserializeBy declares the canonical deserialization method used when this
// type appears as a composite sub-field.
func (b *Builder) DeserializeBy(m DeserializationMethod) *Builder {
	b.deserializeBy = m
	return b
}

// Documentation sets the human-readable type description.
func (b *Builder) Documentation(s string) *Builder {
	b.documentation = s
	return b
}

// Build validates the declaration, registers the type, and returns it.
func (b *Builder) Build(reg *Registry) (*Type, error) {
	if !typeNamePattern.MatchString(b.name) {
		return nil, simio.Issues{{
			Code:    simio.CodeInvalidTypeName,
			Message: fmt.Sprintf("type name %q must end in the IO suffix", b.name),
		}}
	}
	if b.supertype == nil {
		return nil, simio.Issues{{
			Code:    simio.CodeMissingSupertype,
			Message: fmt.Sprintf("%s declares no supertype; extend the registry root", b.name),
		}}
	}
	if b.validator == nil {
		return nil, simio.Issues{{
			Code:    simio.CodeMissingValidator,
			Message: fmt.Sprintf("%s declares no validator", b.name),
		}}
	}
	if iss := b.checkEvents(); len(iss) > 0 {
		return nil, iss
	}
	if iss := b.checkMethods(); len(iss) > 0 {
		return nil, iss
	}
	if iss := b.checkDefaults(); len(iss) > 0 {
		return nil, iss
	}
	schema, iss := b.buildSchema()
	if len(iss) > 0 {
		return nil, iss
	}
	t := &Type{
		name:             b.name,
		supertype:        b.supertype,
		validator:        *b.validator,
		events:           append([]string(nil), b.events...),
		methods:          b.methods,
		metadataDefaults: b.metadataDefaults,
		dataDefaults:     b.dataDefaults,
		parameterTypes:   append([]*Type(nil), b.parameterTypes...),
		schema:           schema,
		serialize:        b.serialize,
		deserialize:      b.deserialize,
		apply:            b.apply,
		deserializeBy:    b.deserializeBy,
		documentation:    b.documentation,
	}
	if err := reg.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild(reg *Registry) *Type {
	t, err := b.Build(reg)
	if err != nil {
		panic(err)
	}
	return t
}

func (b *Builder) checkEvents() simio.Issues {
	var iss simio.Issues
	seen := map[string]bool{}
	for _, e := range b.events {
		if seen[e] {
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeDuplicateEventName,
				Message: fmt.Sprintf("%s declares event %q twice", b.name, e),
			})
			continue
		}
		seen[e] = true
		if b.supertype != nil && b.supertype.HasEvent(e) {
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeDuplicateEventName,
				Message: fmt.Sprintf("event %q of %s collides with an ancestor's", e, b.name),
			})
		}
	}
	return iss
}

func (b *Builder) checkMethods() simio.Issues {
	var iss simio.Issues
	for _, name := range b.methodOrder {
		m := b.methods[name]
		switch {
		case name == "":
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeMalformedMethod,
				Message: fmt.Sprintf("%s declares a method with an empty name", b.name),
			})
		case m.Returns == nil:
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeMalformedMethod,
				Message: fmt.Sprintf("%s.%s declares no return type", b.name, name),
			})
		case m.Impl == nil:
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeMalformedMethod,
				Message: fmt.Sprintf("%s.%s declares no implementation", b.name, name),
			})
		default:
			for i, p := range m.Parameters {
				if p == nil {
					iss = simio.AppendIssues(iss, simio.Issue{
						Code:    simio.CodeMalformedMethod,
						Message: fmt.Sprintf("%s.%s parameter %d has no type", b.name, name, i),
					})
				}
			}
		}
	}
	return iss
}

// checkDefaults forbids a child redeclaring the same value as an ancestor;
// that is dead configuration.
func (b *Builder) checkDefaults() simio.Issues {
	var iss simio.Issues
	if b.supertype == nil {
		return nil
	}
	inherited := b.supertype.AllMetadataDefaults()
	for k, v := range b.metadataDefaults {
		if prev, ok := inherited[k]; ok && reflect.DeepEqual(prev, v) {
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeRedundantDefault,
				Message: fmt.Sprintf("%s redeclares metadata default %q with the ancestor's value", b.name, k),
				Params:  map[string]any{"key": k},
			})
		}
	}
	inheritedData := b.supertype.AllDataDefaults()
	for k, v := range b.dataDefaults {
		if prev, ok := inheritedData[k]; ok && reflect.DeepEqual(prev, v) {
			iss = simio.AppendIssues(iss, simio.Issue{
				Code:    simio.CodeRedundantDefault,
				Message: fmt.Sprintf("%s redeclares data default %q with the ancestor's value", b.name, k),
				Params:  map[string]any{"key": k},
			})
		}
	}
	return iss
}

func (b *Builder) buildSchema() (*StateSchema, simio.Issues) {
	hasValue := b.valueValidator != nil
	hasComposite := len(b.public) > 0 || len(b.private) > 0
	switch {
	case hasValue && hasComposite:
		return nil, simio.Issues{{
			Code:    simio.CodeAmbiguousSchemaKind,
			Message: fmt.Sprintf("%s declares both a value schema and composite fields", b.name),
		}}
	case hasValue:
		if b.serialize == nil || (b.deserialize == nil && b.apply == nil) {
			return nil, simio.Issues{{
				Code:    simio.CodeNotSerializable,
				Message: fmt.Sprintf("%s declares a value schema without a serialize/deserialize pair", b.name),
			}}
		}
		return NewValueSchema(b.valueName, *b.valueValidator), nil
	case hasComposite:
		for name, f := range b.public {
			if f.Type == nil {
				return nil, simio.Issues{{
					Code:    simio.CodeAmbiguousSchemaKind,
					Message: fmt.Sprintf("field %q of %s has no type", name, b.name),
				}}
			}
		}
		for name, f := range b.private {
			if f.Type == nil {
				return nil, simio.Issues{{
					Code:    simio.CodeAmbiguousSchemaKind,
					Message: fmt.Sprintf("private field %q of %s has no type", name, b.name),
				}}
			}
		}
		return &StateSchema{public: b.public, private: b.private}, nil
	default:
		return nil, nil // no schema at this level; defers to the supertype
	}
}
