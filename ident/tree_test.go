package ident_test

import (
	"testing"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
)

type fakeElement struct {
	node *ident.Node
	meta simio.Metadata
}

func (f *fakeElement) Node() *ident.Node        { return f.node }
func (f *fakeElement) Metadata() simio.Metadata { return f.meta }

type recorder struct {
	added   []string
	removed []string
}

func (r *recorder) ElementAdded(x ident.Registrable)   { r.added = append(r.added, x.Node().FullID()) }
func (r *recorder) ElementRemoved(x ident.Registrable) { r.removed = append(r.removed, x.Node().FullID()) }

func element(t *testing.T, root *ident.Node, name string) *fakeElement {
	t.Helper()
	return &fakeElement{node: root.MustChild(name)}
}

func TestLaunchFlushesBufferedRegistrationsFIFO(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	rec := &recorder{}
	tree.AddListener(rec)

	a := element(t, root, "a")
	b := element(t, root, "b")
	c := element(t, root, "c")
	for _, el := range []*fakeElement{a, b, c} {
		if err := tree.Register(el, nil); err != nil {
			t.Fatalf("register %s: %v", el.node.FullID(), err)
		}
	}
	if len(rec.added) != 0 {
		t.Fatalf("pre-launch registrations must buffer, got %v", rec.added)
	}

	tree.Launch()
	want := []string{"sim.a", "sim.b", "sim.c"}
	if len(rec.added) != len(want) {
		t.Fatalf("flush delivered %v", rec.added)
	}
	for i, id := range want {
		if rec.added[i] != id {
			t.Fatalf("flush order: got %v, want %v", rec.added, want)
		}
	}

	// launching again must not replay
	tree.Launch()
	if len(rec.added) != 3 {
		t.Fatalf("second Launch replayed the buffer: %v", rec.added)
	}
}

func TestPostLaunchRegistrationIsSynchronous(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	rec := &recorder{}
	tree.AddListener(rec)
	tree.Launch()

	el := element(t, root, "late")
	if err := tree.Register(el, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(rec.added) != 1 || rec.added[0] != "sim.late" {
		t.Fatalf("synchronous delivery missing: %v", rec.added)
	}
}

func TestDuplicateAndDoubleRegistration(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	a := element(t, root, "a")
	if err := tree.Register(a, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	// same instance again
	err := tree.Register(a, nil)
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeDoubleRegistration {
		t.Fatalf("want %s, got %v", simio.CodeDoubleRegistration, err)
	}

	// different instance, same identifier
	other := &fakeElement{node: a.node}
	err = tree.Register(other, nil)
	iss, ok = simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeDuplicateID {
		t.Fatalf("want %s, got %v", simio.CodeDuplicateID, err)
	}
}

func TestRequiredNotSuppliedFails(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	el := &fakeElement{node: root.MustChild("x", ident.NotSupplied())}
	err := tree.Register(el, nil)
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeMissingRequiredID {
		t.Fatalf("want %s, got %v", simio.CodeMissingRequiredID, err)
	}

	// collectable into a report instead
	rep := simio.NewReport()
	if err := tree.Register(el, rep); err != nil {
		t.Fatalf("collected registration must not fail fast: %v", err)
	}
	if rep.Len() != 1 {
		t.Fatalf("report did not absorb the violation")
	}
}

func TestInertRegistrationIsNoOp(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	el := &fakeElement{node: root.MustChild("opt", ident.Optional(), ident.NotSupplied())}
	if err := tree.Register(el, nil); err != nil {
		t.Fatalf("inert registration must be silent: %v", err)
	}
	if tree.Len() != 0 {
		t.Fatalf("inert node must not become live")
	}
	if err := tree.Deregister(el, nil); err != nil {
		t.Fatalf("inert deregistration must be silent: %v", err)
	}
}

func TestDeregisterBeforeLaunchNeverObserved(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	rec := &recorder{}
	tree.AddListener(rec)

	el := element(t, root, "transient")
	if err := tree.Register(el, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tree.Deregister(el, nil); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	tree.Launch()
	if len(rec.added) != 0 || len(rec.removed) != 0 {
		t.Fatalf("transient element observed: added=%v removed=%v", rec.added, rec.removed)
	}
}

func TestDoubleDeregistration(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	el := element(t, root, "a")
	if err := tree.Register(el, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tree.Deregister(el, nil); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	err := tree.Deregister(el, nil)
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeDoubleDeregistration {
		t.Fatalf("want %s, got %v", simio.CodeDoubleDeregistration, err)
	}
}

func TestKnowsPrunesEmptyAncestors(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	screen := root.MustChild("screen1")
	a := &fakeElement{node: screen.MustChild("a")}
	b := &fakeElement{node: screen.MustChild("b")}
	if err := tree.Register(a, nil); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := tree.Register(b, nil); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if !tree.Knows("sim.screen1") || !tree.Knows("sim") {
		t.Fatalf("ancestor paths must be known while descendants live")
	}
	if err := tree.Deregister(a, nil); err != nil {
		t.Fatalf("deregister a: %v", err)
	}
	if !tree.Knows("sim.screen1") {
		t.Fatalf("path pruned while a descendant is still live")
	}
	if err := tree.Deregister(b, nil); err != nil {
		t.Fatalf("deregister b: %v", err)
	}
	if tree.Knows("sim.screen1") || tree.Knows("sim") {
		t.Fatalf("paths must prune with the last descendant")
	}
}

func TestFindAndLiveOrder(t *testing.T) {
	tree := ident.NewTree()
	root := ident.MustRoot("sim")
	a := element(t, root, "a")
	b := element(t, root, "b")
	if err := tree.Register(b, nil); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := tree.Register(a, nil); err != nil {
		t.Fatalf("register a: %v", err)
	}
	got, ok := tree.Find("sim.a")
	if !ok || got != ident.Registrable(a) {
		t.Fatalf("Find returned %v", got)
	}
	live := tree.Live()
	if len(live) != 2 || live[0].Node().FullID() != "sim.b" || live[1].Node().FullID() != "sim.a" {
		t.Fatalf("Live order wrong: %v", live)
	}
}
