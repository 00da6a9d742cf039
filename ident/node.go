// Package ident implements the hierarchical identifier tree: dotted-path
// nodes that name instrumented elements, and a Tree that tracks live
// registrations with buffered, FIFO-ordered listener delivery.
package ident

import (
	"fmt"
	"regexp"
	"strconv"

	simio "github.com/simio-dev/simio"
)

// Separator joins path segments into a full identifier.
const Separator = "."

// ArchetypeSegment is the fixed literal used in place of an index for the
// archetype slot of a dynamic container.
const ArchetypeSegment = "archetype"

// Kind selects the allowed character set for a path segment.
type Kind int

const (
	KindStatic  Kind = iota // Ordinary startup-time identifiers.
	KindDynamic             // Runtime-allocated identifiers (trailing _<index> form).
	KindDerived             // Identifiers derived from parametric type names (brackets, commas).
)

// nameRules maps each kind to its segment pattern. The set is fixed at
// process start; it is configuration, not a mutable registry.
var nameRules = map[Kind]*regexp.Regexp{
	KindStatic:  regexp.MustCompile(`^[a-zA-Z0-9_]+$`),
	KindDynamic: regexp.MustCompile(`^[a-zA-Z0-9_]+$`),
	KindDerived: regexp.MustCompile(`^[a-zA-Z0-9_\[\],]+$`),
}

// Node is one segment of a hierarchical identifier. Nodes are plain values
// owned by the objects they name; the Tree tracks which full identifiers are
// live.
type Node struct {
	name     string
	parent   *Node
	fullID   string
	kind     Kind
	required bool
	supplied bool
}

// NewRoot creates a root node (no parent).
func NewRoot(name string) (*Node, error) {
	return newNode(nil, name, KindStatic, true, true)
}

// MustRoot is like NewRoot but panics on error.
func MustRoot(name string) *Node {
	n, err := NewRoot(name)
	if err != nil {
		panic(err)
	}
	return n
}

func newNode(parent *Node, name string, kind Kind, required, supplied bool) (*Node, error) {
	re := nameRules[kind]
	if re == nil || !re.MatchString(name) {
		path := name
		if parent != nil {
			path = parent.fullID + Separator + name
		}
		return nil, simio.Issues{{
			Path:    path,
			Code:    simio.CodeInvalidName,
			Message: fmt.Sprintf("segment %q is not a valid identifier name", name),
			Hint:    "allowed characters depend on the identifier kind",
		}}
	}
	full := name
	if parent != nil {
		full = parent.fullID + Separator + name
	}
	return &Node{name: name, parent: parent, fullID: full, kind: kind, required: required, supplied: supplied}, nil
}

// ChildOption adjusts a derived child node.
type ChildOption func(*childConfig)

type childConfig struct {
	kind     Kind
	required bool
	supplied bool
}

// Required marks the child as required (the default). A required node whose
// owner never supplies it fails at registration.
func Required() ChildOption { return func(c *childConfig) { c.required = true } }

// Optional marks the child as optional. An optional, not-supplied node is
// inert and never registers.
func Optional() ChildOption { return func(c *childConfig) { c.required = false } }

// NotSupplied marks the child as not supplied by the caller.
func NotSupplied() ChildOption { return func(c *childConfig) { c.supplied = false } }

// WithKind overrides the segment kind.
func WithKind(k Kind) ChildOption { return func(c *childConfig) { c.kind = k } }

// Child derives a new node under n. The child's full identifier is n's full
// identifier, the separator, and name.
func (n *Node) Child(name string, opts ...ChildOption) (*Node, error) {
	cfg := childConfig{kind: KindStatic, required: true, supplied: true}
	for _, o := range opts {
		o(&cfg)
	}
	return newNode(n, name, cfg.kind, cfg.required, cfg.supplied)
}

// MustChild is like Child but panics on error.
func (n *Node) MustChild(name string, opts ...ChildOption) *Node {
	c, err := n.Child(name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Element derives the dynamic child prefix_index under n. Containers use
// this for runtime-created elements.
func (n *Node) Element(prefix string, index int) (*Node, error) {
	return n.Child(prefix+"_"+strconv.Itoa(index), WithKind(KindDynamic))
}

// ArchetypeChild derives the fixed archetype slot under n.
func (n *Node) ArchetypeChild() (*Node, error) {
	return n.Child(ArchetypeSegment, WithKind(KindDynamic))
}

// Name returns the final path segment.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// FullID returns the dotted full identifier.
func (n *Node) FullID() string { return n.fullID }

// Kind returns the segment kind.
func (n *Node) Kind() Kind { return n.kind }

// Required reports whether the node must be supplied and registered.
func (n *Node) Required() bool { return n.required }

// Supplied reports whether the owner actually supplied the node.
func (n *Node) Supplied() bool { return n.supplied }

// Inert reports whether registration is a silent no-op for this node.
func (n *Node) Inert() bool { return !n.required && !n.supplied }

// Dynamic reports whether any segment on the path is dynamic.
func (n *Node) Dynamic() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.kind == KindDynamic && cur.name != ArchetypeSegment {
			return true
		}
	}
	return false
}

// ConcreteID rewrites every dynamic segment to the fixed archetype segment,
// producing the identifier of the template this node was created from. Used
// to compare a runtime dynamic instance against its archetype's metadata.
func (n *Node) ConcreteID() string {
	if n == nil {
		return ""
	}
	seg := n.name
	if n.kind == KindDynamic && n.name != ArchetypeSegment {
		seg = ArchetypeSegment
	}
	if n.parent == nil {
		return seg
	}
	return n.parent.ConcreteID() + Separator + seg
}
