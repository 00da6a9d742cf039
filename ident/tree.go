package ident

import (
	"fmt"
	"strings"

	simio "github.com/simio-dev/simio"
)

// Registrable is the minimal surface the tree needs from an instrumented
// object: its identifier node and its comparable metadata.
type Registrable interface {
	Node() *Node
	Metadata() simio.Metadata
}

// Listener observes registrations and deregistrations. Listeners added
// before Launch observe every buffered registration in FIFO order.
type Listener interface {
	ElementAdded(Registrable)
	ElementRemoved(Registrable)
}

// Tree tracks the set of live registrations. It is an explicit context
// object: create one per process (or per test) rather than relying on a
// package-level singleton.
//
// Single-threaded by contract; no locking.
type Tree struct {
	launched  bool
	buffer    []Registrable
	listeners []Listener
	live      map[string]Registrable
	order     []string       // live full identifiers in registration order
	paths     map[string]int // refcount of live descendants per ancestor path
}

// NewTree returns an empty, unlaunched tree.
func NewTree() *Tree {
	return &Tree{live: map[string]Registrable{}, paths: map[string]int{}}
}

// AddListener appends a listener. Order of addition is the delivery order.
func (t *Tree) AddListener(l Listener) {
	if l != nil {
		t.listeners = append(t.listeners, l)
	}
}

// Launched reports whether the buffered registrations have been flushed.
func (t *Tree) Launched() bool { return t.launched }

// Launch flushes buffered registrations to the listeners, strictly FIFO, and
// switches the tree to synchronous delivery. Calling Launch twice is a no-op;
// the flush occurs exactly once.
func (t *Tree) Launch() {
	if t.launched {
		return
	}
	t.launched = true
	buffered := t.buffer
	t.buffer = nil
	for _, r := range buffered {
		t.notifyAdded(r)
	}
}

// Register records r as live. Before Launch the listener notification is
// buffered; after Launch it is delivered synchronously. An optional report
// converts registration failures into collected violations.
func (t *Tree) Register(r Registrable, report *simio.Report) error {
	n := r.Node()
	if n == nil {
		return simio.Collect(report, simio.Issues{{
			Code:    simio.CodeMissingRequiredID,
			Message: "instrumented object has no identifier node",
		}})
	}
	if n.Inert() {
		return nil // optional and not supplied: silent no-op
	}
	if n.Required() && !n.Supplied() {
		return simio.Collect(report, simio.Issues{{
			Path:    n.FullID(),
			Code:    simio.CodeMissingRequiredID,
			Message: "identifier is required but was not supplied",
		}})
	}
	if prev, ok := t.live[n.FullID()]; ok {
		code := simio.CodeDuplicateID
		if prev == r {
			code = simio.CodeDoubleRegistration
		}
		return simio.Collect(report, simio.Issues{{
			Path:    n.FullID(),
			Code:    code,
			Message: fmt.Sprintf("identifier %q is already registered", n.FullID()),
		}})
	}
	t.live[n.FullID()] = r
	t.order = append(t.order, n.FullID())
	t.retainPath(n)
	if !t.launched {
		t.buffer = append(t.buffer, r)
		return nil
	}
	t.notifyAdded(r)
	return nil
}

// Deregister removes r from the live set and prunes now-childless ancestor
// paths. Deregistering an object that was never registered is an error
// unless its node is inert.
func (t *Tree) Deregister(r Registrable, report *simio.Report) error {
	n := r.Node()
	if n == nil || n.Inert() {
		return nil
	}
	cur, ok := t.live[n.FullID()]
	if !ok || cur != r {
		return simio.Collect(report, simio.Issues{{
			Path:    n.FullID(),
			Code:    simio.CodeDoubleDeregistration,
			Message: fmt.Sprintf("identifier %q is not registered", n.FullID()),
		}})
	}
	delete(t.live, n.FullID())
	t.dropOrder(n.FullID())
	t.releasePath(n)
	if !t.launched {
		// never observed by listeners; drop from the pending buffer
		for i, b := range t.buffer {
			if b == r {
				t.buffer = append(t.buffer[:i], t.buffer[i+1:]...)
				break
			}
		}
		return nil
	}
	t.notifyRemoved(r)
	return nil
}

// Find returns the live registration at the given full identifier.
func (t *Tree) Find(fullID string) (Registrable, bool) {
	r, ok := t.live[fullID]
	return r, ok
}

// Knows reports whether any live registration sits at or below path. Ancestor
// paths are pruned as soon as their last live descendant deregisters.
func (t *Tree) Knows(path string) bool {
	_, ok := t.paths[path]
	return ok
}

// Len returns the number of live registrations.
func (t *Tree) Len() int { return len(t.live) }

// Live returns the live registrations in registration order.
func (t *Tree) Live() []Registrable {
	out := make([]Registrable, 0, len(t.order))
	for _, id := range t.order {
		if r, ok := t.live[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Reset clears all state, returning the tree to its pre-launch condition.
// Test isolation only; must not be reachable from production code paths.
func (t *Tree) Reset() {
	t.launched = false
	t.buffer = nil
	t.listeners = nil
	t.live = map[string]Registrable{}
	t.order = nil
	t.paths = map[string]int{}
}

func (t *Tree) notifyAdded(r Registrable) {
	for _, l := range t.listeners {
		l.ElementAdded(r)
	}
}

func (t *Tree) notifyRemoved(r Registrable) {
	for _, l := range t.listeners {
		l.ElementRemoved(r)
	}
}

func (t *Tree) retainPath(n *Node) {
	for _, p := range ancestorPaths(n.FullID()) {
		t.paths[p]++
	}
}

func (t *Tree) releasePath(n *Node) {
	for _, p := range ancestorPaths(n.FullID()) {
		t.paths[p]--
		if t.paths[p] <= 0 {
			delete(t.paths, p)
		}
	}
}

// ancestorPaths returns the path itself plus every ancestor prefix.
func ancestorPaths(fullID string) []string {
	segs := strings.Split(fullID, Separator)
	out := make([]string, 0, len(segs))
	for i := 1; i <= len(segs); i++ {
		out = append(out, strings.Join(segs[:i], Separator))
	}
	return out
}

func (t *Tree) dropOrder(fullID string) {
	for i, id := range t.order {
		if id == fullID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
