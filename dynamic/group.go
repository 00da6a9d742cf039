package dynamic

import (
	"fmt"
	"strings"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
	"github.com/simio-dev/simio/instr"
	"github.com/simio-dev/simio/iotype"
)

// GroupSuffix is the required trailing segment of a group container's
// identifier name; the element prefix is the name minus this suffix unless
// overridden.
const GroupSuffix = "Group"

// ElementFactory builds the instrumented-object options for one element. The
// container owns the identifier, dynamic/archetype flags, and registration;
// the factory supplies the type, delegate, and remaining metadata.
type ElementFactory func(node *ident.Node, args []any) (instr.Options, error)

// StateToArgs converts a snapshot state object into the construction
// arguments the factory expects (data-type deserialization of dynamic-element
// construction arguments). When nil, the state object itself is the single
// argument.
type StateToArgs func(state any) ([]any, error)

// GroupOptions configures a Group.
type GroupOptions struct {
	Node *ident.Node
	// Type is the container's IOType; it must declare exactly one parameter
	// type, the element type.
	Type   *iotype.Type
	Create ElementFactory
	// ElementName overrides the element prefix derived from the container
	// name minus GroupSuffix.
	ElementName string
	// ArchetypeArgs feed the factory when the archetype is created.
	ArchetypeArgs []any
	StateToArgs   StateToArgs
	// Gate shares the restoration-episode state; nil means the container is
	// never restored and direct creation is always allowed.
	Gate *Gate
	// DisableDynamicState opts the container out of clear-and-rebuild
	// restoration; its elements are fixed for the process lifetime.
	DisableDynamicState bool
	// Harvest creates the archetype immediately (API-harvesting or
	// API-validating mode).
	Harvest       bool
	State         bool
	Documentation string
}

// Group owns an ordered sequence of dynamically created elements, each
// tagged with a monotonic integer index baked into its identifier's final
// segment. Indices are never reused while the container lives, unless it is
// explicitly cleared with an index reset.
type Group struct {
	tree        *ident.Tree
	node        *ident.Node
	self        *instr.Object
	typ         *iotype.Type
	elementType *iotype.Type
	create      ElementFactory
	stateToArgs StateToArgs
	gate        *Gate

	prefix       string
	nextIndex    int
	elements     []*instr.Object
	archetype    *instr.Object
	dynamicState bool

	createdListeners  []func(*instr.Object)
	disposedListeners []func(*instr.Object)
}

// NewGroup constructs the container, registers it, and (in harvesting mode)
// creates the archetype.
func NewGroup(tree *ident.Tree, opts GroupOptions, report *simio.Report) (*Group, error) {
	prefix, err := containerPrefix(opts.Node, opts.ElementName, GroupSuffix)
	if err != nil {
		return nil, err
	}
	if opts.Type == nil || len(opts.Type.Parameters()) != 1 {
		return nil, simio.Issues{{
			Path:    fullIDOf(opts.Node),
			Code:    simio.CodeParameterMismatch,
			Message: "a group type must declare exactly one parameter type",
		}}
	}
	if opts.Create == nil {
		return nil, simio.Issues{{
			Path:    fullIDOf(opts.Node),
			Code:    simio.CodeInvalidValue,
			Message: "a group requires an element factory",
		}}
	}
	g := &Group{
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
	g.self = self
	if opts.Harvest {
		if err := g.createArchetype(opts.ArchetypeArgs); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func fullIDOf(n *ident.Node) string {
	if n == nil {
		return ""
	}
	return n.FullID()
}

func containerPrefix(node *ident.Node, override, suffix string) (string, error) {
	if node == nil {
		return "", simio.Issues{{
			Code:    simio.CodeMissingRequiredID,
			Message: "a dynamic container requires an identifier node",
		}}
	}
	if override != "" {
		return override, nil
	}
	name := node.Name()
	if !strings.HasSuffix(name, suffix) || name == suffix {
		return "", simio.Issues{{
			Path:    node.FullID(),
			Code:    simio.CodeInvalidName,
			Message: fmt.Sprintf("container name %q must end in %q", name, suffix),
		}}
	}
	return strings.TrimSuffix(name, suffix), nil
}

// Node returns the container's identifier node.
func (g *Group) Node() *ident.Node { return g.node }

// Metadata returns the container's own metadata.
func (g *Group) Metadata() simio.Metadata { return g.self.Metadata() }

// ElementType returns the declared parameter type.
func (g *Group) ElementType() *iotype.Type { return g.elementType }

// ElementPrefix returns the element name prefix.
func (g *Group) ElementPrefix() string { return g.prefix }

// NextIndex returns the next index the monotonic allocator will hand out.
func (g *Group) NextIndex() int { return g.nextIndex }

// Len returns the live element count. The archetype is never counted.
func (g *Group) Len() int { return len(g.elements) }

// Elements returns the live elements in creation order.
func (g *Group) Elements() []*instr.Object {
	return append([]*instr.Object(nil), g.elements...)
}

// ElementAt returns the live element whose identifier carries index, or nil.
func (g *Group) ElementAt(index int) *instr.Object {
	want := g.prefix + "_" + fmt.Sprint(index)
	for _, el := range g.elements {
		if el.Node().Name() == want {
			return el
		}
	}
	return nil
}

// Archetype returns the harvested archetype, or nil outside harvesting mode.
func (g *Group) Archetype() *instr.Object { return g.archetype }

// AddCreatedListener observes element creation, after the element is
// appended (append-before-notify).
func (g *Group) AddCreatedListener(fn func(*instr.Object)) {
	if fn != nil {
		g.createdListeners = append(g.createdListeners, fn)
	}
}

// AddDisposedListener observes element disposal, after removal; listeners
// inspecting the array or count see post-removal state.
func (g *Group) AddDisposedListener(fn func(*instr.Object)) {
	if fn != nil {
		g.disposedListeners = append(g.disposedListeners, fn)
	}
}

// CreateNext creates an element at the next monotonic index. Forbidden while
// a restoration episode is open; the restoration engine works through its
// Session instead.
func (g *Group) CreateNext(args ...any) (*instr.Object, error) {
	if g.gate.Active() {
		return nil, simio.Issues{{
			Path:    g.node.FullID(),
			Code:    simio.CodeUnauthorizedCreate,
			Message: "dynamic elements may only be created by the restoration engine while state is being restored",
		}}
	}
	index := g.nextIndex
	g.nextIndex++
	return g.createAt(index, args, false)
}

// createAt builds, validates, appends and announces one element. The restore
// path passes explicit indices; the counter is bumped past them so future
// allocations cannot collide.
func (g *Group) createAt(index int, args []any, fromRestore bool) (*instr.Object, error) {
	if fromRestore && index >= g.nextIndex {
		g.nextIndex = index + 1
	}
	el, err := g.buildElement(index, args, false)
	if err != nil {
		return nil, err
	}
	g.elements = append(g.elements, el)
	for _, fn := range g.createdListeners {
		fn(el)
	}
	return el, nil
}

func (g *Group) buildElement(index int, args []any, archetype bool) (*instr.Object, error) {
	var node *ident.Node
	var err error
	if archetype {
		node, err = g.node.ArchetypeChild()
	} else {
		node, err = g.node.Element(g.prefix, index)
	}
	if err != nil {
		return nil, err
	}
	opts, err := g.create(node, args)
	if err != nil {
		return nil, err
	}
	opts.Node = node
	opts.DynamicElement = true
	opts.Archetype = archetype
	if opts.Type != g.elementType {
		return nil, simio.Issues{{
			Path:    node.FullID(),
			Code:    simio.CodeElementMismatch,
			Message: fmt.Sprintf("element type %s does not equal the declared parameter type %s", typeName(opts.Type), g.elementType.Name()),
		}}
	}
	if err := g.elementType.Validate(opts.Delegate); err != nil {
		iss, _ := simio.AsIssues(err)
		return nil, simio.AppendIssues(simio.Issues{{
			Path:    node.FullID(),
			Code:    simio.CodeElementMismatch,
			Message: "element does not satisfy the declared parameter type validator",
		}}, iss...)
	}
	return instr.New(g.tree, opts, nil)
}

func typeName(t *iotype.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

func (g *Group) createArchetype(args []any) error {
	if g.archetype != nil {
		return nil
	}
	el, err := g.buildElement(0, args, true)
	if err != nil {
		return err
	}
	// excluded from the live array, from the count, and from notifications
	g.archetype = el
	return nil
}

// DisposeElement removes and destroys el. Order: remove from the array,
// then destroy, then notify, so disposed-listeners observe post-removal
// state.
func (g *Group) DisposeElement(el *instr.Object) error {
	if g.gate.Active() {
		return simio.Issues{{
			Path:    g.node.FullID(),
			Code:    simio.CodeUnauthorizedDispose,
			Message: "dynamic elements may only be disposed by the restoration engine while state is being restored",
		}}
	}
	return g.disposeElement(el)
}

func (g *Group) disposeElement(el *instr.Object) error {
	at := -1
	for i, cur := range g.elements {
		if cur == el {
			at = i
			break
		}
	}
	if at < 0 {
		return simio.Issues{{
			Path:    g.node.FullID(),
			Code:    simio.CodeNoElementToDispose,
			Message: "element is not a live member of this group",
		}}
	}
	g.elements = append(g.elements[:at], g.elements[at+1:]...)
	if err := el.Dispose(nil); err != nil {
		return err
	}
	for _, fn := range g.disposedListeners {
		fn(el)
	}
	return nil
}

// Clear disposes all elements oldest-first and optionally resets the index
// counter. Oldest-first keeps listeners that prune parallel arrays by linear
// search near their average case instead of the always-remove-from-tail
// worst case.
func (g *Group) Clear(resetIndex bool) error {
	if g.gate.Active() {
		return simio.Issues{{
			Path:    g.node.FullID(),
			Code:    simio.CodeUnauthorizedDispose,
			Message: "groups may only be cleared by the restoration engine while state is being restored",
		}}
	}
	return g.clear(resetIndex)
}

func (g *Group) clear(resetIndex bool) error {
	for len(g.elements) > 0 {
		if err := g.disposeElement(g.elements[0]); err != nil {
			return err
		}
	}
	if resetIndex {
		g.nextIndex = 0
	}
	return nil
}

// ---- Restorable ----

func (g *Group) restoreClear() error { return g.clear(true) }

func (g *Group) restoreCreate(index int, state any) error {
	args := []any{state}
	if g.stateToArgs != nil {
		built, err := g.stateToArgs(state)
		if err != nil {
			return err
		}
		args = built
	}
	el, err := g.createAt(index, args, true)
	if err != nil {
		return err
	}
	return el.ApplyState(state)
}

func (g *Group) snapshotIndex(fullID string) (int, bool) {
	return parseIndexedChild(fullID, g.node.FullID(), g.prefix)
}

func (g *Group) dynamicStateEnabled() bool { return g.dynamicState }
