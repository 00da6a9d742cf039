package dynamic

import (
	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
	"github.com/simio-dev/simio/instr"
	"github.com/simio-dev/simio/iotype"
)

// CapsuleSuffix is the required trailing segment of a capsule container's
// identifier name.
const CapsuleSuffix = "Capsule"

// CapsuleOptions configures a Capsule. Fields mirror GroupOptions; a capsule
// has no index allocator, so restoration matches the single element by name.
type CapsuleOptions struct {
	Node                *ident.Node
	Type                *iotype.Type
	Create              ElementFactory
	ElementName         string
	ArchetypeArgs       []any
	StateToArgs         StateToArgs
	Gate                *Gate
	DisableDynamicState bool
	Harvest             bool
	State               bool
	Documentation       string
}

// Capsule owns zero or one dynamically created element. GetOrCreate is
// idempotent: repeated calls return the existing element without invoking the
// factory again.
type Capsule struct {
	tree        *ident.Tree
	node        *ident.Node
	self        *instr.Object
	typ         *iotype.Type
	elementType *iotype.Type
	create      ElementFactory
	stateToArgs StateToArgs
	gate        *Gate

	prefix       string
	element      *instr.Object
	archetype    *instr.Object
	dynamicState bool

	createdListeners  []func(*instr.Object)
	disposedListeners []func(*instr.Object)
}

// NewCapsule constructs the container, registers it, and (in harvesting mode)
// creates the archetype.
func NewCapsule(tree *ident.Tree, opts CapsuleOptions, report *simio.Report) (*Capsule, error) {
	prefix, err := containerPrefix(opts.Node, opts.ElementName, CapsuleSuffix)
	if err != nil {
		return nil, err
	}
	if opts.Type == nil || len(opts.Type.Parameters()) != 1 {
		return nil, simio.Issues{{
			Path:    fullIDOf(opts.Node),
			Code:    simio.CodeParameterMismatch,
			Message: "a capsule type must declare exactly one parameter type",
		}}
	}
	if opts.Create == nil {
		return nil, simio.Issues{{
			Path:    fullIDOf(opts.Node),
			Code:    simio.CodeInvalidValue,
			Message: "a capsule requires an element factory",
		}}
	}
	c := &Capsule{
		tree:         tree,
		node:         opts.Node,
		typ:          opts.Type,
		elementType:  opts.Type.Parameters()[0],
		create:       opts.Create,
		stateToArgs:  opts.StateToArgs,
		gate:         opts.Gate,
		prefix:       prefix,
		dynamicState: !opts.DisableDynamicState,
	}
	self, err := instr.New(tree, instr.Options{
		Node:          opts.Node,
		Type:          opts.Type,
		State:         opts.State,
		Documentation: opts.Documentation,
	}, report)
	if err != nil {
		return nil, err
	}
	c.self = self
	if opts.Harvest {
		if err := c.createArchetype(opts.ArchetypeArgs); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Node returns the container's identifier node.
func (c *Capsule) Node() *ident.Node { return c.node }

// Metadata returns the container's own metadata.
func (c *Capsule) Metadata() simio.Metadata { return c.self.Metadata() }

// ElementType returns the declared parameter type.
func (c *Capsule) ElementType() *iotype.Type { return c.elementType }

// ElementPrefix returns the element name.
func (c *Capsule) ElementPrefix() string { return c.prefix }

// Element returns the live element, or nil when the slot is empty.
func (c *Capsule) Element() *instr.Object { return c.element }

// Has reports whether the slot is occupied.
func (c *Capsule) Has() bool { return c.element != nil }

// Archetype returns the harvested archetype, or nil outside harvesting mode.
func (c *Capsule) Archetype() *instr.Object { return c.archetype }

// AddCreatedListener observes element creation (append-before-notify).
func (c *Capsule) AddCreatedListener(fn func(*instr.Object)) {
	if fn != nil {
		c.createdListeners = append(c.createdListeners, fn)
	}
}

// AddDisposedListener observes element disposal, after the slot is emptied.
func (c *Capsule) AddDisposedListener(fn func(*instr.Object)) {
	if fn != nil {
		c.disposedListeners = append(c.disposedListeners, fn)
	}
}

// GetOrCreate returns the element, creating it on first call. The factory and
// its args are ignored when the slot is already occupied. Forbidden while a
// restoration episode is open.
func (c *Capsule) GetOrCreate(args ...any) (*instr.Object, error) {
	if c.element != nil {
		return c.element, nil
	}
	if c.gate.Active() {
		return nil, simio.Issues{{
			Path:    c.node.FullID(),
			Code:    simio.CodeUnauthorizedCreate,
			Message: "capsule elements may only be created by the restoration engine while state is being restored",
		}}
	}
	return c.createElement(args)
}

func (c *Capsule) createElement(args []any) (*instr.Object, error) {
	el, err := c.buildElement(args, false)
	if err != nil {
		return nil, err
	}
	c.element = el
	for _, fn := range c.createdListeners {
		fn(el)
	}
	return el, nil
}

func (c *Capsule) buildElement(args []any, archetype bool) (*instr.Object, error) {
	var node *ident.Node
	var err error
	if archetype {
		node, err = c.node.ArchetypeChild()
	} else {
		node, err = c.node.Child(c.prefix, ident.WithKind(ident.KindDynamic))
	}
	if err != nil {
		return nil, err
	}
	opts, err := c.create(node, args)
	if err != nil {
		return nil, err
	}
	opts.Node = node
	opts.DynamicElement = true
	opts.Archetype = archetype
	if opts.Type != c.elementType {
		return nil, simio.Issues{{
			Path:    node.FullID(),
			Code:    simio.CodeElementMismatch,
			Message: "element type does not equal the declared parameter type",
		}}
	}
	if err := c.elementType.Validate(opts.Delegate); err != nil {
		iss, _ := simio.AsIssues(err)
		return nil, simio.AppendIssues(simio.Issues{{
			Path:    node.FullID(),
			Code:    simio.CodeElementMismatch,
			Message: "element does not satisfy the declared parameter type validator",
		}}, iss...)
	}
	return instr.New(c.tree, opts, nil)
}

func (c *Capsule) createArchetype(args []any) error {
	if c.archetype != nil {
		return nil
	}
	el, err := c.buildElement(args, true)
	if err != nil {
		return err
	}
	c.archetype = el
	return nil
}

// Dispose destroys the element and empties the slot. Disposing an empty
// capsule is an error. Forbidden while a restoration episode is open.
func (c *Capsule) Dispose() error {
	if c.gate.Active() {
		return simio.Issues{{
			Path:    c.node.FullID(),
			Code:    simio.CodeUnauthorizedDispose,
			Message: "capsule elements may only be disposed by the restoration engine while state is being restored",
		}}
	}
	return c.disposeElement()
}

func (c *Capsule) disposeElement() error {
	if c.element == nil {
		return simio.Issues{{
			Path:    c.node.FullID(),
			Code:    simio.CodeNoElementToDispose,
			Message: "capsule holds no element",
		}}
	}
	el := c.element
	c.element = nil
	if err := el.Dispose(nil); err != nil {
		return err
	}
	for _, fn := range c.disposedListeners {
		fn(el)
	}
	return nil
}

// ---- Restorable ----

func (c *Capsule) restoreClear() error {
	if c.element == nil {
		return nil
	}
	return c.disposeElement()
}

func (c *Capsule) restoreCreate(_ int, state any) error {
	args := []any{state}
	if c.stateToArgs != nil {
		built, err := c.stateToArgs(state)
		if err != nil {
			return err
		}
		args = built
	}
	el, err := c.createElement(args)
	if err != nil {
		return err
	}
	return el.ApplyState(state)
}

func (c *Capsule) snapshotIndex(fullID string) (int, bool) {
	if fullID == c.node.FullID()+ident.Separator+c.prefix {
		return 0, true
	}
	return 0, false
}

func (c *Capsule) dynamicStateEnabled() bool { return c.dynamicState }
