package apicheck

import (
	"fmt"
	"reflect"
	"sort"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
	"github.com/simio-dev/simio/iotype"
)

// Options configures the live validator.
type Options struct {
	// CompareKeys is the metadata key set compared between a live element and
	// the reference, and between a dynamic element and its archetype. Defaults
	// to simio.DefaultComparisonKeys. The archetype flag itself is never
	// compared; it legitimately differs between archetype and instance.
	CompareKeys []string
	// CompareMethods enables per-type method comparison against the
	// reference's type entries.
	CompareMethods bool
	// Registry supplies the live type descriptions when CompareMethods is set.
	Registry *iotype.Registry
	// OnViolation fires for each violation recorded after the
	// simulation-started checkpoint. Before the checkpoint, violations only
	// accumulate.
	OnViolation func(simio.Issue)
}

// Validator watches the identifier tree and accumulates violations of the
// frozen reference contract. Attach it with tree.AddListener before Launch so
// the buffered FIFO flush replays every startup registration through it.
type Validator struct {
	opts    Options
	ref     *simio.Doc
	started bool
	report  *simio.Report

	// archetypes maps concrete identifiers to the live archetype metadata
	// harvested at registration.
	archetypes map[string]simio.Metadata
	// seen holds every live registration observed, keyed by full identifier,
	// so checks deferred on a missing reference can replay once it arrives.
	seen map[string]ident.Registrable
}

// NewValidator returns a validator with no reference loaded; reference checks
// are deferred until SetReference.
func NewValidator(opts Options) *Validator {
	if len(opts.CompareKeys) == 0 {
		opts.CompareKeys = simio.DefaultComparisonKeys
	}
	return &Validator{
		opts:       opts,
		report:     simio.NewReport(),
		archetypes: map[string]simio.Metadata{},
		seen:       map[string]ident.Registrable{},
	}
}

// SetReference installs the frozen reference document and replays the
// deferred reference checks over every element observed so far. A nil
// reference keeps deferring.
func (v *Validator) SetReference(ref *simio.Doc) {
	v.ref = ref
	if ref == nil {
		return
	}
	ids := make([]string, 0, len(v.seen))
	for id := range v.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v.checkAgainstReference(v.seen[id])
	}
	if v.opts.CompareMethods && v.opts.Registry != nil {
		v.checkMethods()
	}
}

// ElementAdded implements ident.Listener.
func (v *Validator) ElementAdded(r ident.Registrable) {
	meta := r.Metadata()
	id := r.Node().FullID()
	v.seen[id] = r
	if meta.Archetype {
		v.archetypes[id] = meta
		return
	}
	if meta.DynamicElement {
		v.checkAgainstArchetype(r, meta)
	}
	if v.ref != nil {
		v.checkAgainstReference(r)
	}
}

// ElementRemoved implements ident.Listener. Static elements are part of the
// frozen shape of the simulation; removing one after startup is a violation.
func (v *Validator) ElementRemoved(r ident.Registrable) {
	id := r.Node().FullID()
	delete(v.seen, id)
	meta := r.Metadata()
	if meta.Archetype {
		delete(v.archetypes, id)
		return
	}
	if v.started && !meta.DynamicElement {
		v.record(simio.Issue{
			Path:    id,
			Code:    simio.RuleStaticRemoved,
			Message: "static element removed after startup",
		})
	}
}

// SimulationStarted marks the checkpoint at which the static element set is
// complete: reference entries still unmatched become violations, and from now
// on new violations surface through OnViolation as they occur.
func (v *Validator) SimulationStarted() {
	if v.started {
		return
	}
	v.started = true
	if v.ref == nil {
		return
	}
	ids := make([]string, 0, len(v.ref.Elements))
	for id := range v.ref.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entry := v.ref.Elements[id]
		if dyn, _ := entry.Metadata[simio.KeyDynamicElement].(bool); dyn {
			continue // dynamic slots come and go at runtime
		}
		if _, live := v.seen[id]; !live {
			v.record(simio.Issue{
				Path:    id,
				Code:    simio.RuleEntryMissing,
				Message: "reference element never registered",
			})
		}
	}
	if v.opts.CompareMethods && v.opts.Registry != nil {
		v.checkMethods()
	}
}

// Report returns the accumulated violations in recording order.
func (v *Validator) Report() simio.Issues { return v.report.Issues() }

// Err returns the accumulated violations as an error, or nil when clean.
func (v *Validator) Err() error { return v.report.Err() }

func (v *Validator) record(iss simio.Issue) {
	v.report.Add(iss)
	if v.started && v.opts.OnViolation != nil {
		v.opts.OnViolation(iss)
	}
}

// checkAgainstArchetype compares a dynamic instance's metadata to its live
// archetype's, key by key over the configured policy set.
func (v *Validator) checkAgainstArchetype(r ident.Registrable, meta simio.Metadata) {
	concrete := r.Node().ConcreteID()
	arch, ok := v.archetypes[concrete]
	if !ok {
		return // container not in harvesting mode
	}
	v.compareMaps(r.Node().FullID(), arch.Map(), meta.Map(), simio.RuleArchetypeDivergence, "archetype")
}

// checkAgainstReference compares a live element's metadata to the frozen
// reference entry at its concrete identifier.
func (v *Validator) checkAgainstReference(r ident.Registrable) {
	meta := r.Metadata()
	if meta.Archetype {
		return
	}
	concrete := r.Node().ConcreteID()
	entry, ok := v.ref.Elements[concrete]
	if !ok {
		v.record(simio.Issue{
			Path:    r.Node().FullID(),
			Code:    simio.RuleEntryMissing,
			Message: fmt.Sprintf("no reference entry at %q", concrete),
		})
		return
	}
	v.compareMaps(r.Node().FullID(), entry.Metadata, meta.Map(), simio.RuleArchetypeDivergence, "reference")
}

// compareMaps reports one violation per diverging comparison key. A typeName
// divergence is a type-identity change and carries its own rule code.
func (v *Validator) compareMaps(path string, want, got map[string]any, code, against string) {
	for _, key := range v.opts.CompareKeys {
		if key == simio.KeyArchetype {
			continue
		}
		w, inWant := want[key]
		if !inWant {
			continue // older documents may carry fewer keys
		}
		g := got[key]
		if reflect.DeepEqual(w, g) {
			continue
		}
		ruleCode := code
		if key == simio.KeyTypeName {
			ruleCode = simio.RuleTypeIdentityChanged
		}
		v.record(simio.Issue{
			Path:    path,
			Code:    ruleCode,
			Message: fmt.Sprintf("metadata key %q diverges from the %s: want %v, got %v", key, against, w, g),
			Params:  map[string]any{"key": key, "want": w, "got": g},
		})
	}
}

// checkMethods compares the live type descriptions against the reference's
// type entries: every reference method must exist with the same return and
// parameter types.
func (v *Validator) checkMethods() {
	names := make([]string, 0, len(v.ref.Types))
	for name := range v.ref.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		refEntry := v.ref.Types[name]
		t, ok := v.opts.Registry.Lookup(name)
		if !ok {
			continue // absent types are caught through their elements
		}
		compareMethodEntries(name, refEntry, t.Describe(), v.record)
	}
}

func compareMethodEntries(typeName string, ref, live simio.TypeEntry, record func(simio.Issue)) {
	names := make([]string, 0, len(ref.Methods))
	for n := range ref.Methods {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		want := ref.Methods[n]
		got, ok := live.Methods[n]
		if !ok {
			record(simio.Issue{
				Path:    typeName,
				Code:    simio.RuleMethodMismatch,
				Message: fmt.Sprintf("method %q missing from %s", n, typeName),
			})
			continue
		}
		if want.ReturnType != got.ReturnType || !reflect.DeepEqual(want.ParameterTypes, got.ParameterTypes) {
			record(simio.Issue{
				Path:    typeName,
				Code:    simio.RuleMethodMismatch,
				Message: fmt.Sprintf("signature of %s.%s changed", typeName, n),
				Params:  map[string]any{"method": n},
			})
		}
	}
}

// DiffDocs compares two already-harvested documents, reference against live,
// using the same rules as the live validator. Used by offline tooling.
func DiffDocs(ref, live *simio.Doc, opts Options) simio.Issues {
	if len(opts.CompareKeys) == 0 {
		opts.CompareKeys = simio.DefaultComparisonKeys
	}
	var out simio.Issues
	record := func(iss simio.Issue) { out = simio.AppendIssues(out, iss) }

	ids := make([]string, 0, len(ref.Elements))
	for id := range ref.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		refEntry := ref.Elements[id]
		liveEntry, ok := live.Elements[id]
		if !ok {
			if dyn, _ := refEntry.Metadata[simio.KeyDynamicElement].(bool); dyn {
				continue
			}
			record(simio.Issue{
				Path:    id,
				Code:    simio.RuleEntryMissing,
				Message: "reference element missing from the live document",
			})
			continue
		}
		diffMetadata(id, refEntry.Metadata, liveEntry.Metadata, opts.CompareKeys, record)
	}

	if opts.CompareMethods {
		names := make([]string, 0, len(ref.Types))
		for n := range ref.Types {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			liveEntry, ok := live.Types[n]
			if !ok {
				continue
			}
			compareMethodEntries(n, ref.Types[n], liveEntry, record)
		}
	}
	return out
}

func diffMetadata(path string, want, got map[string]any, keys []string, record func(simio.Issue)) {
	for _, key := range keys {
		if key == simio.KeyArchetype {
			continue
		}
		w, inWant := want[key]
		if !inWant {
			continue
		}
		g := got[key]
		if reflect.DeepEqual(w, g) {
			continue
		}
		code := simio.RuleArchetypeDivergence
		if key == simio.KeyTypeName {
			code = simio.RuleTypeIdentityChanged
		}
		record(simio.Issue{
			Path:    path,
			Code:    code,
			Message: fmt.Sprintf("metadata key %q diverges: want %v, got %v", key, w, g),
			Params:  map[string]any{"key": key, "want": w, "got": g},
		})
	}
}
