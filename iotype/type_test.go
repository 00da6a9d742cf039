package iotype_test

import (
	"reflect"
	"testing"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/iotype"
)

func TestDefaultsMergeChildWins(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("BaseIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		MetadataDefault("featured", false).
		MetadataDefault("readOnly", true).
		DataDefault("units", "m").
		MustBuild(reg)
	child := iotype.New("ChildIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		MetadataDefault("featured", true).
		MustBuild(reg)

	got := child.AllMetadataDefaults()
	want := map[string]any{"featured": true, "readOnly": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("metadata defaults = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(child.AllDataDefaults(), map[string]any{"units": "m"}) {
		t.Fatalf("data defaults = %v", child.AllDataDefaults())
	}

	// idempotent: a second merge yields a deep-equal fresh map
	again := child.AllMetadataDefaults()
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("merge is not idempotent: %v vs %v", got, again)
	}
	again["featured"] = false
	if child.AllMetadataDefaults()["featured"] != true {
		t.Fatalf("merge result aliases internal state")
	}
}

func TestAllEventsMergesChain(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("EmitterIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Events("fired").
		MustBuild(reg)
	child := iotype.New("TimerIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		Events("expired").
		MustBuild(reg)

	if !child.HasEvent("fired") || !child.HasEvent("expired") {
		t.Fatalf("events missing: %v", child.AllEvents())
	}
	if child.HasEvent("nope") {
		t.Fatalf("undeclared event reported present")
	}
	if base.HasEvent("expired") {
		t.Fatalf("events must not leak up the chain")
	}
}

func TestValidateCarriesTypeChain(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("NumericIO").Extends(reg.Root()).
		ValidateFunc("a number", func(v any) bool { _, ok := v.(float64); return ok }).
		MustBuild(reg)
	child := iotype.New("PositiveIO").Extends(base).
		ValidateFunc("a positive number", func(v any) bool { n, ok := v.(float64); return ok && n > 0 }).
		MustBuild(reg)

	err := child.Validate(-1.0)
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeInvalidValue {
		t.Fatalf("want %s, got %v", simio.CodeInvalidValue, err)
	}
	want := []string{"PositiveIO", "NumericIO", "ObjectIO"}
	if !reflect.DeepEqual(iss[0].Types, want) {
		t.Fatalf("Types chain = %v, want %v", iss[0].Types, want)
	}
}

func TestExtendsWalksChain(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("BaseIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		MustBuild(reg)
	child := iotype.New("ChildIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		MustBuild(reg)

	if !child.Extends(base) || !child.Extends(reg.Root()) || !child.Extends(child) {
		t.Fatalf("Extends chain broken")
	}
	if base.Extends(child) {
		t.Fatalf("Extends must not run downward")
	}
}

func TestInvokeChecksArityAndArguments(t *testing.T) {
	reg := iotype.NewRegistry()
	num := iotype.Number(reg)
	typ := iotype.New("CounterIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Method("add", iotype.Method{
			Returns:    num,
			Parameters: []*iotype.Type{num},
			Impl: func(recv any, args []any) (any, error) {
				return recv.(float64) + args[0].(float64), nil
			},
		}).
		MustBuild(reg)

	got, err := typ.Invoke(1.0, "add", 2.0)
	if err != nil || got != 3.0 {
		t.Fatalf("Invoke = %v, %v", got, err)
	}

	if _, err := typ.Invoke(1.0, "add"); err == nil {
		t.Fatalf("arity mismatch must fail")
	}
	_, err = typ.Invoke(1.0, "add", "two")
	iss, ok := simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeInvalidValue {
		t.Fatalf("argument validation: %v", err)
	}
	_, err = typ.Invoke(1.0, "nope")
	iss, ok = simio.AsIssues(err)
	if !ok || iss[0].Code != simio.CodeMalformedMethod {
		t.Fatalf("unknown method: %v", err)
	}
}

func TestInvokeFindsInheritedMethods(t *testing.T) {
	reg := iotype.NewRegistry()
	num := iotype.Number(reg)
	base := iotype.New("ReadableIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Method("getValue", iotype.Method{
			Returns: num,
			Impl:    func(recv any, _ []any) (any, error) { return recv, nil },
		}).
		MustBuild(reg)
	child := iotype.New("GaugeIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		MustBuild(reg)

	got, err := child.Invoke(4.5, "getValue")
	if err != nil || got != 4.5 {
		t.Fatalf("inherited Invoke = %v, %v", got, err)
	}
}

func TestMemoizedParametricIdentity(t *testing.T) {
	reg := iotype.NewRegistry()
	a := iotype.Array(reg, iotype.Number(reg))
	b := iotype.Array(reg, iotype.Number(reg))
	if a != b {
		t.Fatalf("structurally equal instantiations must share one instance")
	}
	if a.Name() != "ArrayIO[NumberIO]" {
		t.Fatalf("parametric name = %q", a.Name())
	}
	c := iotype.Array(reg, iotype.String(reg))
	if a == c {
		t.Fatalf("different parameters must not share an instance")
	}
	nested := iotype.Array(reg, a)
	if nested.Name() != "ArrayIO[ArrayIO[NumberIO]]" {
		t.Fatalf("nested parametric name = %q", nested.Name())
	}
}

func TestRegistryLookupAndAll(t *testing.T) {
	reg := iotype.NewRegistry()
	iotype.Boolean(reg)
	iotype.Number(reg)

	if _, ok := reg.Lookup("BooleanIO"); !ok {
		t.Fatalf("BooleanIO missing")
	}
	if _, ok := reg.Lookup("NopeIO"); ok {
		t.Fatalf("unknown lookup must fail")
	}
	all := reg.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Name() > all[i].Name() {
			t.Fatalf("All is not name-sorted: %v", all)
		}
	}
}

func TestDescribeRendersTypeEntry(t *testing.T) {
	reg := iotype.NewRegistry()
	num := iotype.Number(reg)
	typ := iotype.New("ThermometerIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Events("overheated").
		Method("getTemperature", iotype.Method{
			Documentation: "current reading",
			Returns:       num,
			Impl:          func(recv any, _ []any) (any, error) { return recv, nil },
		}).
		MustBuild(reg)

	entry := typ.Describe()
	if entry.SupertypeName != "ObjectIO" {
		t.Fatalf("supertype = %q", entry.SupertypeName)
	}
	if len(entry.Events) != 1 || entry.Events[0] != "overheated" {
		t.Fatalf("events = %v", entry.Events)
	}
	m, ok := entry.Methods["getTemperature"]
	if !ok || m.ReturnType != "NumberIO" {
		t.Fatalf("methods = %v", entry.Methods)
	}
}
