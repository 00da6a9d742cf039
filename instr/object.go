// Package instr implements the instrumented-object base: each Object owns
// exactly one identifier node, references one shared IOType, registers with
// the identifier tree, and brackets its activity in strictly paired
// event-started/event-ended notifications.
package instr

import (
	"fmt"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
	"github.com/simio-dev/simio/iotype"
)

// EventSink is the external data-stream collaborator. Begin returns a token
// closed by End; pairs are strictly nested and non-reentrant per object.
type EventSink interface {
	EventStarted(kind simio.EventType, fullID, typeName, event string, data map[string]any) int
	EventEnded(token int)
}

// Options configures one instrumented object.
type Options struct {
	Node *ident.Node
	Type *iotype.Type
	// Delegate is the model value serialized through the IOType. Objects that
	// participate in composite schemas set a delegate implementing
	// iotype.StateProvider / iotype.StateReceiver.
	Delegate       any
	State          bool // Included in state snapshots.
	ReadOnly       bool
	Featured       bool
	EventType      simio.EventType
	Documentation  string
	Archetype      bool
	DynamicElement bool
	Sink           EventSink
}

// Object is an instrumented element. Many objects reference one IOType; one
// object owns exactly one identifier node.
type Object struct {
	tree *ident.Tree
	opts Options

	registered      bool
	disposed        bool
	eventInProgress bool
}

// Token pairs an EventEnded call with its EventStarted.
type Token struct {
	obj  *Object
	sink int
}

// New constructs and registers an instrumented object. Registration is
// buffered until the tree launches. An optional report collects registration
// failures instead of failing fast.
func New(tree *ident.Tree, opts Options, report *simio.Report) (*Object, error) {
	if opts.Type == nil {
		return nil, simio.Issues{{
			Path:    fullIDOf(opts.Node),
			Code:    simio.CodeInvalidValue,
			Message: "instrumented object requires an IOType",
		}}
	}
	o := &Object{tree: tree, opts: opts}
	if opts.Node != nil && opts.Node.Inert() {
		return o, nil // optional and not supplied: inert, never registers
	}
	if err := tree.Register(o, report); err != nil {
		return nil, err
	}
	o.registered = true
	return o, nil
}

func fullIDOf(n *ident.Node) string {
	if n == nil {
		return ""
	}
	return n.FullID()
}

// Node returns the owned identifier node.
func (o *Object) Node() *ident.Node { return o.opts.Node }

// Type returns the shared IOType.
func (o *Object) Type() *iotype.Type { return o.opts.Type }

// Delegate returns the model value behind this object.
func (o *Object) Delegate() any { return o.opts.Delegate }

// SetDelegate replaces the model value (data-type state application).
func (o *Object) SetDelegate(v any) { o.opts.Delegate = v }

// Disposed reports whether the object has been disposed.
func (o *Object) Disposed() bool { return o.disposed }

// MarkArchetype flags the object as a container archetype. Containers call
// this on the structurally typical instance they create for API harvesting.
func (o *Object) MarkArchetype() { o.opts.Archetype = true }

// Metadata snapshots the fixed-key metadata compared during API validation.
func (o *Object) Metadata() simio.Metadata {
	return simio.Metadata{
		TypeName:       o.opts.Type.Name(),
		EventType:      o.opts.EventType,
		State:          o.opts.State,
		ReadOnly:       o.opts.ReadOnly,
		Featured:       o.opts.Featured,
		DynamicElement: o.opts.DynamicElement,
		Archetype:      o.opts.Archetype,
		Documentation:  o.opts.Documentation,
	}
}

// Dispose deregisters the object and prunes its identifier. Disposing twice
// is an error.
func (o *Object) Dispose(report *simio.Report) error {
	if o.disposed {
		return simio.Collect(report, simio.Issues{{
			Path:    fullIDOf(o.opts.Node),
			Code:    simio.CodeDisposed,
			Message: "object is already disposed",
		}})
	}
	o.disposed = true
	if !o.registered {
		return nil
	}
	o.registered = false
	return o.tree.Deregister(o, report)
}

// EventStarted opens an instrumented event. The event name must be declared
// somewhere on the type chain, and events are non-reentrant per object:
// opening a second event while one is in progress is a programmer error.
func (o *Object) EventStarted(event string, data map[string]any) (Token, error) {
	if o.disposed {
		return Token{}, simio.Issues{{
			Path:    fullIDOf(o.opts.Node),
			Code:    simio.CodeDisposed,
			Message: "cannot start an event on a disposed object",
		}}
	}
	if o.eventInProgress {
		return Token{}, simio.Issues{{
			Path:    fullIDOf(o.opts.Node),
			Code:    simio.CodeReentrantEvent,
			Message: fmt.Sprintf("event %q started while another event is in progress", event),
		}}
	}
	if !o.opts.Type.HasEvent(event) {
		return Token{}, simio.Issues{{
			Path:    fullIDOf(o.opts.Node),
			Code:    simio.CodeUnknownEvent,
			Message: fmt.Sprintf("%s declares no event %q", o.opts.Type.Name(), event),
		}}
	}
	o.eventInProgress = true
	tok := Token{obj: o}
	if o.opts.Sink != nil {
		tok.sink = o.opts.Sink.EventStarted(o.opts.EventType, fullIDOf(o.opts.Node), o.opts.Type.Name(), event, data)
	}
	return tok, nil
}

// EventEnded closes the paired event.
func (o *Object) EventEnded(tok Token) error {
	if tok.obj != o || !o.eventInProgress {
		return simio.Issues{{
			Path:    fullIDOf(o.opts.Node),
			Code:    simio.CodeReentrantEvent,
			Message: "event ended without a matching start",
		}}
	}
	o.eventInProgress = false
	if o.opts.Sink != nil {
		o.opts.Sink.EventEnded(tok.sink)
	}
	return nil
}

// Invoke calls a remote-invocable method of the IOType on this object's
// delegate. Read-only elements reject methods that opt out of read-only
// invocation.
func (o *Object) Invoke(name string, args ...any) (any, error) {
	if o.disposed {
		return nil, simio.Issues{{
			Path:    fullIDOf(o.opts.Node),
			Code:    simio.CodeDisposed,
			Message: "cannot invoke a method on a disposed object",
		}}
	}
	if o.opts.ReadOnly {
		if m, ok := o.opts.Type.LookupMethod(name); ok && m.DisallowReadOnly {
			return nil, simio.Issues{{
				Path:    fullIDOf(o.opts.Node),
				Code:    simio.CodeInvalidValue,
				Message: fmt.Sprintf("method %q is not invocable on a read-only element", name),
			}}
		}
	}
	return o.opts.Type.Invoke(o.opts.Delegate, name, args...)
}

// ToState serializes the delegate through the IOType.
func (o *Object) ToState() (any, error) {
	return o.opts.Type.ToStateObject(o.opts.Delegate)
}

// ApplyState restores the delegate from a state object, dispatching on the
// type's canonical deserialization method: by-value replaces the delegate,
// by-reference mutates it in place.
func (o *Object) ApplyState(state any) error {
	if o.opts.Type.DeserializeBy() == iotype.ByValue {
		v, err := o.opts.Type.FromStateObject(state)
		if err != nil {
			return err
		}
		o.opts.Delegate = v
		return nil
	}
	return o.opts.Type.ApplyState(o.opts.Delegate, state)
}
