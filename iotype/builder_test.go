package iotype_test

import (
	"testing"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/iotype"
)

func buildErrCode(t *testing.T, b *iotype.Builder, reg *iotype.Registry) string {
	t.Helper()
	_, err := b.Build(reg)
	if err == nil {
		t.Fatalf("Build must fail")
	}
	iss, ok := simio.AsIssues(err)
	if !ok || len(iss) == 0 {
		t.Fatalf("Build error is not Issues: %v", err)
	}
	return iss[0].Code
}

func TestBuildRejectsBadTypeName(t *testing.T) {
	reg := iotype.NewRegistry()
	b := iotype.New("Particle").Extends(reg.Root()).ValidateFunc("anything", func(any) bool { return true })
	if code := buildErrCode(t, b, reg); code != simio.CodeInvalidTypeName {
		t.Fatalf("code = %s", code)
	}
}

func TestBuildRequiresSupertypeAndValidator(t *testing.T) {
	reg := iotype.NewRegistry()
	b := iotype.New("ParticleIO").ValidateFunc("anything", func(any) bool { return true })
	if code := buildErrCode(t, b, reg); code != simio.CodeMissingSupertype {
		t.Fatalf("code = %s", code)
	}
	b = iotype.New("ParticleIO").Extends(reg.Root())
	if code := buildErrCode(t, b, reg); code != simio.CodeMissingValidator {
		t.Fatalf("code = %s", code)
	}
}

func TestBuildRejectsDuplicateTypeName(t *testing.T) {
	reg := iotype.NewRegistry()
	iotype.New("ParticleIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		MustBuild(reg)
	b := iotype.New("ParticleIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true })
	if code := buildErrCode(t, b, reg); code != simio.CodeDuplicateTypeName {
		t.Fatalf("code = %s", code)
	}
}

func TestBuildRejectsEventCollisionWithAncestor(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("EmitterIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Events("fired").
		MustBuild(reg)
	b := iotype.New("TimerIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		Events("fired")
	if code := buildErrCode(t, b, reg); code != simio.CodeDuplicateEventName {
		t.Fatalf("code = %s", code)
	}

	// duplicates at one level are rejected too
	b = iotype.New("ClockIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Events("tick", "tick")
	if code := buildErrCode(t, b, reg); code != simio.CodeDuplicateEventName {
		t.Fatalf("code = %s", code)
	}
}

func TestBuildRejectsRedundantDefault(t *testing.T) {
	reg := iotype.NewRegistry()
	base := iotype.New("BaseIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		MetadataDefault("featured", false).
		MustBuild(reg)
	b := iotype.New("ChildIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		MetadataDefault("featured", false)
	if code := buildErrCode(t, b, reg); code != simio.CodeRedundantDefault {
		t.Fatalf("code = %s", code)
	}

	// overriding with a different value is legal
	if _, err := iotype.New("OtherIO").Extends(base).
		ValidateFunc("anything", func(any) bool { return true }).
		MetadataDefault("featured", true).
		Build(reg); err != nil {
		t.Fatalf("override rejected: %v", err)
	}
}

func TestBuildRejectsMalformedMethods(t *testing.T) {
	reg := iotype.NewRegistry()
	num := iotype.Number(reg)
	b := iotype.New("BrokenIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Method("getValue", iotype.Method{Returns: num}) // no Impl
	if code := buildErrCode(t, b, reg); code != simio.CodeMalformedMethod {
		t.Fatalf("code = %s", code)
	}

	b = iotype.New("Broken2IO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		Method("getValue", iotype.Method{Impl: func(any, []any) (any, error) { return nil, nil }}) // no Returns
	if code := buildErrCode(t, b, reg); code != simio.CodeMalformedMethod {
		t.Fatalf("code = %s", code)
	}
}

func TestBuildRejectsAmbiguousSchema(t *testing.T) {
	reg := iotype.NewRegistry()
	num := iotype.Number(reg)
	b := iotype.New("MixedIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		ValueSchema("number", iotype.Validator{IsValid: func(any) bool { return true }}).
		Field("x", num).
		Serializer(func(v any) (any, error) { return v, nil }).
		Deserializer(func(state any) (any, error) { return state, nil })
	if code := buildErrCode(t, b, reg); code != simio.CodeAmbiguousSchemaKind {
		t.Fatalf("code = %s", code)
	}
}

func TestValueSchemaRequiresSerializePair(t *testing.T) {
	reg := iotype.NewRegistry()
	b := iotype.New("OpaqueIO").Extends(reg.Root()).
		ValidateFunc("anything", func(any) bool { return true }).
		ValueSchema("opaque", iotype.Validator{IsValid: func(any) bool { return true }})
	if code := buildErrCode(t, b, reg); code != simio.CodeNotSerializable {
		t.Fatalf("code = %s", code)
	}
}
