package simio

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention).
//
// Declaration-time codes abort construction of the offending type or
// identifier. Registration and serialization codes are collectable into a
// Report. Lifecycle codes always fail fast. API-rule codes never fail fast
// individually; they accumulate until a checkpoint.
const (
	// Declaration-time contract errors.
	CodeDuplicateTypeName   = "duplicate_type_name"
	CodeDuplicateEventName  = "duplicate_event_name"
	CodeMalformedMethod     = "malformed_method"
	CodeMissingValidator    = "missing_validator"
	CodeMissingSupertype    = "missing_supertype"
	CodeDuplicateRoot       = "duplicate_root"
	CodeInvalidTypeName     = "invalid_type_name"
	CodeAmbiguousSchemaKind = "ambiguous_schema_kind"
	CodeRedundantDefault    = "redundant_default"
	CodeParameterMismatch   = "parameter_mismatch"

	// Registration-time errors.
	CodeInvalidName          = "invalid_name"
	CodeMissingRequiredID    = "missing_required_id"
	CodeDuplicateID          = "duplicate_id"
	CodeDoubleRegistration   = "double_registration"
	CodeDoubleDeregistration = "double_deregistration"
	CodeNotRegistered        = "not_registered"

	// Serialization-time errors.
	CodeInvalidValue    = "invalid_value"
	CodeMissingStateKey = "missing_state_key"
	CodeExtraStateKey   = "extra_state_key"
	CodeFieldMissing    = "field_missing"
	CodeNotSerializable = "not_serializable"
	CodeNotJSONSafe     = "not_json_safe"

	// Lifecycle-protocol errors.
	CodeUnauthorizedCreate  = "unauthorized_create"
	CodeUnauthorizedDispose = "unauthorized_dispose"
	CodeReentrantEvent      = "reentrant_event"
	CodeUnknownEvent        = "unknown_event"
	CodeNoElementToDispose  = "no_element_to_dispose"
	CodeElementMismatch     = "element_schema_mismatch"
	CodeDisposed            = "disposed"

	// API-validation rules (accumulated, surfaced at a checkpoint).
	RuleEntryMissing        = "api_entry_missing"
	RuleStaticRemoved       = "api_static_removed"
	RuleArchetypeDivergence = "api_archetype_divergence"
	RuleTypeIdentityChanged = "api_type_identity_changed"
	RuleMethodMismatch      = "api_method_mismatch"
)

// Issue represents a single contract violation.
type Issue struct {
	Path    string // Dotted identifier path (for example: sim.screen1.particles.particle_7).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints.
	Cause   error  // Optional: underlying error.
	// Types carries the chain of IOType names walked when the violation
	// surfaced deep in a composite hierarchy; the root cause may be several
	// ancestor levels removed from where the mismatch was detected.
	Types []string
	// Params carries structured parameters (e.g., {"key":"x"}) for tooling.
	Params map[string]any
}

// Issues is a collection of violations that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. duplicate_id at sim.screen1.count
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// Report accumulates violations instead of failing fast. Tooling that wants
// to enumerate every problem across a whole simulation passes a Report
// through the call chain; the caller decides whether the accumulated
// violations become a hard failure via Err.
type Report struct {
	issues Issues
}

// NewReport returns an empty accumulator.
func NewReport() *Report { return &Report{} }

// Add records violations. Nil-safe so call sites can pass an optional report
// unconditionally.
func (r *Report) Add(more ...Issue) {
	if r == nil {
		return
	}
	r.issues = AppendIssues(r.issues, more...)
}

// Len returns the number of recorded violations.
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.issues)
}

// Issues returns the recorded violations in insertion order.
func (r *Report) Issues() Issues {
	if r == nil {
		return nil
	}
	return r.issues
}

// Err converts the accumulated violations into an error, or nil when empty.
func (r *Report) Err() error {
	if r == nil || len(r.issues) == 0 {
		return nil
	}
	return r.issues
}

// Collect routes err into the report when one is supplied, otherwise returns
// it unchanged. This is the fail-fast/collect-all pivot used by registration
// and validation paths.
func Collect(r *Report, err error) error {
	if err == nil {
		return nil
	}
	if r == nil {
		return err
	}
	if iss, ok := AsIssues(err); ok {
		r.Add(iss...)
		return nil
	}
	r.Add(Issue{Code: CodeInvalidValue, Message: err.Error(), Cause: err})
	return nil
}
