// Package apicheck generates API description documents from a live element
// graph and validates the live graph against a frozen reference: missing
// entries, removed static elements, dynamic elements diverging from their
// archetype, and type-identity changes accumulate as violations rather than
// failing one by one.
package apicheck

import (
	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/ident"
	"github.com/simio-dev/simio/iotype"
)

// stater is satisfied by instrumented objects that can serialize their
// delegate.
type stater interface {
	ToState() (any, error)
}

// Describe harvests the live registrations and the type registry into an API
// description document. Dynamic elements are represented by their archetype
// slots, which register like any other element in harvesting mode; runtime
// instances are recorded under their own identifiers as well, so a live
// document reflects exactly what is registered at the time of the call.
func Describe(tree *ident.Tree, reg *iotype.Registry) (*simio.Doc, error) {
	doc := &simio.Doc{
		Elements: map[string]simio.ElementEntry{},
		Types:    map[string]simio.TypeEntry{},
	}
	for _, r := range tree.Live() {
		meta := r.Metadata()
		entry := simio.ElementEntry{Metadata: meta.Map()}
		if meta.State {
			if s, ok := r.(stater); ok {
				state, err := s.ToState()
				if err != nil {
					return nil, err
				}
				if m, ok := state.(map[string]any); ok {
					entry.InitialState = m
				}
			}
		}
		doc.Elements[r.Node().FullID()] = entry
	}
	for _, t := range reg.All() {
		doc.Types[t.Name()] = t.Describe()
	}
	return doc, nil
}
