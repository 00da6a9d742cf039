// Package dynamic implements the dynamic-element containers: Group (an
// ordered, index-allocated collection) and Capsule (zero-or-one element),
// plus the restore-session protocol through which an external
// state-restoration engine is the only party allowed to create and destroy
// elements while a snapshot is being replayed.
package dynamic

import (
	"sort"
	"strconv"
	"strings"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
	"github.com/simio-dev/simio/instr"
)

// Gate tracks whether a state-restoration episode is in progress. Containers
// sharing a gate reject direct creation/disposal while it is open; the
// restoration engine works through the Session instead.
type Gate struct {
	active *Session
}

// NewGate returns an idle gate.
func NewGate() *Gate { return &Gate{} }

// Active reports whether a restoration episode is open.
func (g *Gate) Active() bool { return g != nil && g.active != nil }

// Begin opens a restoration episode. Nesting episodes is a programmer error.
func (g *Gate) Begin() (*Session, error) {
	if g.active != nil {
		return nil, simio.Issues{{
			Code:    simio.CodeUnauthorizedCreate,
			Message: "a restoration episode is already in progress",
		}}
	}
	s := &Session{gate: g}
	g.active = s
	return s, nil
}

// Session is the restoration engine's authorization token. Its methods are
// the collaborator interface guarded by the only-during-restoration policy.
type Session struct {
	gate  *Gate
	ended bool
}

// End closes the episode; further Session calls fail.
func (s *Session) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.gate.active = nil
}

func (s *Session) check() error {
	if s == nil || s.ended || s.gate.active != s {
		return simio.Issues{{
			Code:    simio.CodeUnauthorizedCreate,
			Message: "restore session is not active",
		}}
	}
	return nil
}

// CreateAtIndex recreates an element carrying an explicit snapshot index.
func (s *Session) CreateAtIndex(g *Group, index int, args ...any) (*instr.Object, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return g.createAt(index, args, true)
}

// Clear disposes every element of g, oldest-first.
func (s *Session) Clear(g *Group, resetIndex bool) error {
	if err := s.check(); err != nil {
		return err
	}
	return g.clear(resetIndex)
}

// DisposeAt disposes the element whose identifier carries the given index.
func (s *Session) DisposeAt(g *Group, index int) error {
	if err := s.check(); err != nil {
		return err
	}
	el := g.ElementAt(index)
	if el == nil {
		return simio.Issues{{
			Path:    g.node.FullID(),
			Code:    simio.CodeNoElementToDispose,
			Message: "no element at index " + strconv.Itoa(index),
		}}
	}
	return g.disposeElement(el)
}

// Restorable is a container the session can rebuild from a snapshot.
type Restorable interface {
	restoreClear() error
	restoreCreate(index int, state any) error
	snapshotIndex(fullID string) (int, bool)
	dynamicStateEnabled() bool
}

// Apply rebuilds the given containers from a full snapshot: each container
// opted into dynamic state is cleared entirely and its elements recreated in
// increasing index order from the snapshot entries addressed under it.
// Entries holding the deleted sentinel are simply not recreated. Containers
// whose elements are fixed for the process lifetime are left untouched.
func (s *Session) Apply(full simio.FullState, containers ...Restorable) error {
	if err := s.check(); err != nil {
		return err
	}
	for _, c := range containers {
		if !c.dynamicStateEnabled() {
			continue
		}
		if err := s.applyOne(full, c); err != nil {
			return err
		}
	}
	return nil
}

type snapshotEntry struct {
	index int
	state any
}

func (s *Session) applyOne(full simio.FullState, c Restorable) error {
	var entries []snapshotEntry
	for id, state := range full {
		idx, ok := c.snapshotIndex(id)
		if !ok {
			continue
		}
		if str, isStr := state.(string); isStr && str == simio.DeletedSentinel {
			continue
		}
		entries = append(entries, snapshotEntry{index: idx, state: state})
	}
	if err := c.restoreClear(); err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })
	for _, e := range entries {
		if err := c.restoreCreate(e.index, e.state); err != nil {
			return err
		}
	}
	return nil
}

// parseIndexedChild matches fullID against parent.prefix_<n> and returns n.
func parseIndexedChild(fullID, parentID, prefix string) (int, bool) {
	head := parentID + ident.Separator + prefix + "_"
	if !strings.HasPrefix(fullID, head) {
		return 0, false
	}
	tail := fullID[len(head):]
	n, err := strconv.Atoi(tail)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
