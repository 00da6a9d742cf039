package simio

import (
	"bytes"
	"reflect"

	j "github.com/goccy/go-json"
)

// CheckJSONSafe verifies that v survives a JSON round trip unchanged. State
// objects cross the boundary to external tooling as JSON, so anything that
// cannot round-trip (functions, channels, NaN, cyclic values) is rejected at
// serialization time rather than at the boundary.
func CheckJSONSafe(v any) error {
	b, err := j.Marshal(v)
	if err != nil {
		return Issues{{Code: CodeNotJSONSafe, Message: "value does not marshal to JSON", Cause: err}}
	}
	var back any
	dec := j.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&back); err != nil {
		return Issues{{Code: CodeNotJSONSafe, Message: "value does not unmarshal from JSON", Cause: err}}
	}
	b2, err := j.Marshal(back)
	if err != nil {
		return Issues{{Code: CodeNotJSONSafe, Message: "value does not re-marshal after round trip", Cause: err}}
	}
	if !bytes.Equal(b, b2) {
		return Issues{{Code: CodeNotJSONSafe, Message: "value changes across a JSON round trip"}}
	}
	return nil
}

// CopyStateObject deep-copies a state object via a JSON round trip. Snapshots
// handed to external collaborators must not alias live state.
func CopyStateObject(v any) (any, error) {
	b, err := j.Marshal(v)
	if err != nil {
		return nil, Issues{{Code: CodeNotJSONSafe, Message: "state object does not marshal to JSON", Cause: err}}
	}
	var out any
	if err := j.Unmarshal(b, &out); err != nil {
		return nil, Issues{{Code: CodeNotJSONSafe, Message: "state object does not unmarshal from JSON", Cause: err}}
	}
	return out, nil
}

// StateEqual compares two state objects by JSON value semantics: both are
// normalized through a round trip so that e.g. int vs float64 encodings of
// the same number compare equal.
func StateEqual(a, b any) bool {
	na, err := CopyStateObject(a)
	if err != nil {
		return false
	}
	nb, err := CopyStateObject(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}
