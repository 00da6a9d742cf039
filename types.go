package simio

// EventType classifies instrumented events on the external data stream.
type EventType int

const (
	EventModel EventType = iota // Emitted by the model; not user-initiated.
	EventUser                   // Direct consequence of a user action.
)

// String renders the wire form used in metadata documents.
func (e EventType) String() string {
	if e == EventUser {
		return "USER"
	}
	return "MODEL"
}

// EventTypeFromString parses the wire form; unknown strings map to EventModel.
func EventTypeFromString(s string) EventType {
	if s == "USER" {
		return EventUser
	}
	return EventModel
}

// Metadata is the fixed-key description of one instrumented element, the unit
// compared against a frozen reference during API validation.
type Metadata struct {
	TypeName       string
	EventType      EventType
	State          bool // Included in state snapshots.
	ReadOnly       bool
	Featured       bool
	DynamicElement bool
	Archetype      bool // Legitimately differs between archetype and instance; excluded from comparison.
	Documentation  string
}

// Metadata document keys.
const (
	KeyTypeName       = "typeName"
	KeyEventType      = "eventType"
	KeyState          = "state"
	KeyReadOnly       = "readOnly"
	KeyFeatured       = "featured"
	KeyDynamicElement = "dynamicElement"
	KeyArchetype      = "isArchetype"
	KeyDocumentation  = "documentation"
)

// DefaultComparisonKeys is the default policy list of metadata keys that must
// match between a dynamic element and its archetype, and between a live
// element and the frozen reference. The exact set is a policy, not a fixed
// contract; override via the validator options.
var DefaultComparisonKeys = []string{
	KeyTypeName,
	KeyEventType,
	KeyState,
	KeyReadOnly,
	KeyFeatured,
	KeyDynamicElement,
}

// Map renders the metadata in its fixed-key document form.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		KeyTypeName:       m.TypeName,
		KeyEventType:      m.EventType.String(),
		KeyState:          m.State,
		KeyReadOnly:       m.ReadOnly,
		KeyFeatured:       m.Featured,
		KeyDynamicElement: m.DynamicElement,
		KeyArchetype:      m.Archetype,
		KeyDocumentation:  m.Documentation,
	}
}

// MetadataFromMap parses the document form back into a Metadata. Missing keys
// take zero values; this keeps loading tolerant of older reference documents
// that carried fewer keys.
func MetadataFromMap(doc map[string]any) Metadata {
	m := Metadata{}
	if v, ok := doc[KeyTypeName].(string); ok {
		m.TypeName = v
	}
	if v, ok := doc[KeyEventType].(string); ok {
		m.EventType = EventTypeFromString(v)
	}
	if v, ok := doc[KeyState].(bool); ok {
		m.State = v
	}
	if v, ok := doc[KeyReadOnly].(bool); ok {
		m.ReadOnly = v
	}
	if v, ok := doc[KeyFeatured].(bool); ok {
		m.Featured = v
	}
	if v, ok := doc[KeyDynamicElement].(bool); ok {
		m.DynamicElement = v
	}
	if v, ok := doc[KeyArchetype].(bool); ok {
		m.Archetype = v
	}
	if v, ok := doc[KeyDocumentation].(string); ok {
		m.Documentation = v
	}
	return m
}

// ElementEntry is the per-identifier record of an API description document.
type ElementEntry struct {
	Metadata     map[string]any `json:"metadata" yaml:"metadata"`
	InitialState map[string]any `json:"initialState,omitempty" yaml:"initialState,omitempty"`
}

// MethodEntry describes one remote-invocable operation of a type.
type MethodEntry struct {
	Documentation  string   `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	ReturnType     string   `json:"returnType" yaml:"returnType"`
	ParameterTypes []string `json:"parameterTypes,omitempty" yaml:"parameterTypes,omitempty"`
}

// TypeEntry is the per-IOType record of an API description document.
type TypeEntry struct {
	SupertypeName  string                 `json:"supertype,omitempty" yaml:"supertype,omitempty"`
	Events         []string               `json:"events,omitempty" yaml:"events,omitempty"`
	Methods        map[string]MethodEntry `json:"methods,omitempty" yaml:"methods,omitempty"`
	StateSchema    map[string]string      `json:"stateSchema,omitempty" yaml:"stateSchema,omitempty"`
	ParameterTypes []string               `json:"parameterTypes,omitempty" yaml:"parameterTypes,omitempty"`
}

// Doc is the structured, JSON-serializable API description consumed by the
// external diffing toolchain: a flattened map from identifier string to its
// entry, plus a map from IOType name to its description.
type Doc struct {
	Elements map[string]ElementEntry `json:"elements" yaml:"elements"`
	Types    map[string]TypeEntry    `json:"types" yaml:"types"`
}

// DeletedSentinel marks a snapshot entry whose element must be removed
// during restoration.
const DeletedSentinel = "DELETED"

// FullState is a flat map from identifier string to that element's serialized
// state object, or DeletedSentinel. The top-level snapshot file format is
// owned by the external restoration engine; this core produces and consumes
// individual entries.
type FullState map[string]any
