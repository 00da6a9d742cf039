package iotype_test

import (
	"fmt"
	"testing"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/iotype"
)

// particle is a model value exposing its fields for schema-derived
// serialization.
type particle struct {
	x     float64
	label string
	seed  float64
}

func (p *particle) StateField(name string) (any, bool) {
	switch name {
	case "x":
		return p.x, true
	case "label":
		return p.label, true
	case "seed":
		return p.seed, true
	}
	return nil, false
}

func (p *particle) SetStateField(name string, v any) error {
	switch name {
	case "x":
		p.x = v.(float64)
	case "label":
		p.label = v.(string)
	case "seed":
		p.seed = v.(float64)
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

func particleType(reg *iotype.Registry) *iotype.Type {
	return iotype.New("ParticleIO").Extends(reg.Root()).
		ValidateFunc("a particle", func(v any) bool { _, ok := v.(*particle); return ok }).
		Field("x", iotype.Number(reg)).
		Field("label", iotype.String(reg)).
		PrivateField("seed", iotype.Number(reg)).
		MustBuild(reg)
}

func TestCompositeToStateObject(t *testing.T) {
	reg := iotype.NewRegistry()
	typ := particleType(reg)
	p := &particle{x: 1.5, label: "alpha", seed: 42}

	state, err := typ.ToStateObject(p)
	if err != nil {
		t.Fatalf("ToStateObject: %v", err)
	}
	m := state.(map[string]any)
	if m["x"] != 1.5 || m["label"] != "alpha" {
		t.Fatalf("public fields = %v", m)
	}
	priv, ok := m[iotype.PrivateKey].(map[string]any)
	if !ok || priv["seed"] != 42.0 {
		t.Fatalf("private partition = %v", m[iotype.PrivateKey])
	}
}

func TestCompositeApplyState(t *testing.T) {
	reg := iotype.NewRegistry()
	typ := particleType(reg)
	p := &particle{}

	state := map[string]any{
		"x":     2.5,
		"label": "beta",
		iotype.PrivateKey: map[string]any{
			"seed": 7.0,
		},
	}
	if err := typ.ApplyState(p, state); err != nil {
		t.Fatalf("ApplyState: %v", err)
	}
	if p.x != 2.5 || p.label != "beta" || p.seed != 7.0 {
		t.Fatalf("applied particle = %+v", p)
	}
}

func TestCheckStateObjectMissingKey(t *testing.T) {
	reg := iotype.NewRegistry()
	typ := particleType(reg)
	iss := typ.CheckStateObject(map[string]any{"x": 1.0})
	if len(iss) == 0 {
		t.Fatalf("missing keys must be reported")
	}
	codes := map[string]bool{}
	for _, it := range iss {
		codes[it.Code] = true
	}
	if !codes[simio.CodeMissingStateKey] {
		t.Fatalf("want %s, got %v", simio.CodeMissingStateKey, iss)
	}
}

func TestCheckStateObjectExtraKey(t *testing.T) {
	reg := iotype.NewRegistry()
	typ := particleType(reg)
	iss := typ.CheckStateObject(map[string]any{
		"x":     1.0,
		"label": "alpha",
		"rogue": true,
		iotype.PrivateKey: map[string]any{
			"seed":   1.0,
			"hidden": true,
		},
	})
	var extras []string
	for _, it := range iss {
		if it.Code == simio.CodeExtraStateKey {
			extras = append(extras, fmt.Sprint(it.Params["key"]))
		}
	}
	if len(extras) != 2 {
		t.Fatalf("extra keys = %v (issues %v)", extras, iss)
	}
}

func TestCheckStateObjectSpansInheritanceChain(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("PointIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Field("x", iotype.Number(reg)).
		MustBuild(reg)
	child := iotype.New("LabeledPointIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		Field("label", iotype.String(reg)).
		MustBuild(reg)

	// both levels' keys together are complete
	if iss := child.CheckStateObject(map[string]any{"x": 1.0, "label": "p"}); len(iss) != 0 {
		t.Fatalf("complete state rejected: %v", iss)
	}
	// a key declared only on the ancestor still counts as declared
	iss := child.CheckStateObject(map[string]any{"label": "p"})
	if len(iss) == 0 || iss[0].Code != simio.CodeMissingStateKey {
		t.Fatalf("ancestor key not enforced: %v", iss)
	}
	// errors carry the chain walked
	if len(iss[0].Types) == 0 || iss[0].Types[0] != "LabeledPointIO" {
		t.Fatalf("Types chain = %v", iss[0].Types)
	}
}

func TestDerivedSerializationRequiresProvider(t *testing.T) {
	reg := iotype.NewRegistry()
	typ := particleType(reg)
	bad := &particle{x: 1.0, label: "a", seed: 0}
	state, err := typ.ToStateObject(bad)
	if err != nil {
		t.Fatalf("valid particle rejected: %v", err)
	}
	if _, ok := state.(map[string]any); !ok {
		t.Fatalf("composite state is not a map: %T", state)
	}

	// a non-provider delegate cannot derive state
	plain := iotype.New("PlainIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Field("x", iotype.Number(reg)).
		MustBuild(reg)
	_, err = plain.ToStateObject(struct{}{})
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeNotSerializable {
		t.Fatalf("want %s, got %v", simio.CodeNotSerializable, err)
	}
}

func TestValueSchemaRoundTrip(t *testing.T) {
	reg := iotype.NewRegistry()
	num := iotype.Number(reg)

	state, err := num.ToStateObject(3)
	if err != nil {
		t.Fatalf("ToStateObject: %v", err)
	}
	if state != 3.0 {
		t.Fatalf("number state = %v (%T)", state, state)
	}
	back, err := num.FromStateObject(state)
	if err != nil || back != 3.0 {
		t.Fatalf("FromStateObject = %v, %v", back, err)
	}

	_, err = num.ToStateObject("three")
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeInvalidValue {
		t.Fatalf("invalid instance: %v", err)
	}
}

func TestNullableAndArrayBuiltins(t *testing.T) {
	reg := iotype.NewRegistry()
	nullable := iotype.Nullable(reg, iotype.String(reg))

	state, err := nullable.ToStateObject(nil)
	if err != nil || state != nil {
		t.Fatalf("nil state = %v, %v", state, err)
	}
	state, err = nullable.ToStateObject("hi")
	if err != nil || state != "hi" {
		t.Fatalf("wrapped state = %v, %v", state, err)
	}

	arr := iotype.Array(reg, iotype.Number(reg))
	state, err = arr.ToStateObject([]any{1, 2.5})
	if err != nil {
		t.Fatalf("array serialize: %v", err)
	}
	got := state.([]any)
	if got[0] != 1.0 || got[1] != 2.5 {
		t.Fatalf("array state = %v", got)
	}
	back, err := arr.FromStateObject(got)
	if err != nil || back.([]any)[1] != 2.5 {
		t.Fatalf("array deserialize = %v, %v", back, err)
	}
}

func TestApplyStateMissingDeclaredKey(t *testing.T) {
	reg := iotype.NewRegistry()
	typ := particleType(reg)
	p := &particle{}
	err := typ.ApplyState(p, map[string]any{"x": 1.0})
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeMissingStateKey {
		t.Fatalf("want %s, got %v", simio.CodeMissingStateKey, err)
	}
}
