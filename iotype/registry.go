package iotype

import (
	"fmt"
	"regexp"
	"sort"

	simio "github.com/simio-dev/simio"
)

// RootTypeName is the name of the single root type every chain terminates at.
const RootTypeName = "ObjectIO"

// typeNamePattern: a base name ending in the fixed IO suffix, optionally
// followed by the bracketed parameter-name encoding of a parametric type.
var typeNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*IO(\[[A-Za-z0-9_,\[\]]+\])?$`)

// Registry keys types by name and memoizes parametric instantiations so that
// structurally identical instantiations are pointer-identical. It is an
// explicit context object: one per process, no package-level state.
type Registry struct {
	byName map[string]*Type
	root   *Type
}

// NewRegistry creates a registry holding only the root type.
func NewRegistry() *Registry {
	r := &Registry{byName: map[string]*Type{}}
	r.root = &Type{
		name:          RootTypeName,
		validator:     Validator{Description: "any instrumented value", IsValid: func(any) bool { return true }},
		deserializeBy: ByReference,
		documentation: "The root of the type hierarchy.",
	}
	r.byName[RootTypeName] = r.root
	return r
}

// Root returns the single type with no supertype.
func (r *Registry) Root() *Type { return r.root }

// Lookup returns the registered type of the given name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// All returns every registered type, sorted by name for deterministic output.
func (r *Registry) All() []*Type {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Type, 0, len(names))
	for _, n := range names {
		out = append(out, r.byName[n])
	}
	return out
}

// register enforces name uniqueness over the process lifetime. Re-registering
// the same instance is idempotent; a different instance under an existing
// name is an error.
func (r *Registry) register(t *Type) error {
	if prev, ok := r.byName[t.name]; ok {
		if prev == t {
			return nil
		}
		return simio.Issues{{
			Code:    simio.CodeDuplicateTypeName,
			Message: fmt.Sprintf("a different type is already registered as %q", t.name),
		}}
	}
	if t.supertype == nil && r.root != nil {
		return simio.Issues{{
			Code:    simio.CodeDuplicateRoot,
			Message: fmt.Sprintf("%q would be a second root type", t.name),
		}}
	}
	r.byName[t.name] = t
	return nil
}

// Memoize returns the type registered under name, building and registering it
// on first use. Parametric types key their cache entry by the full bracketed
// name rather than by parameter identity, so structurally equal
// instantiations share one instance.
func (r *Registry) Memoize(name string, build func() (*Type, error)) (*Type, error) {
	if t, ok := r.byName[name]; ok {
		return t, nil
	}
	t, err := build()
	if err != nil {
		return nil, err
	}
	if t.name != name {
		return nil, simio.Issues{{
			Code:    simio.CodeInvalidTypeName,
			Message: fmt.Sprintf("memoized builder produced %q under cache key %q", t.name, name),
		}}
	}
	return t, nil
}

// Reset clears every registration except the root. Test isolation only; must
// not be reachable from production code paths.
func (r *Registry) Reset() {
	r.byName = map[string]*Type{RootTypeName: r.root}
}
