package simio

// Package simio provides:
//
// - A hierarchical identifier tree with buffered, FIFO-ordered registration (ident)
// - Named, single-inheritance IOType descriptors with declarative state schemas (iotype)
// - An instrumented-object base with paired event begin/end semantics (instr)
// - Dynamic-element containers coordinated with a state-restoration protocol (dynamic)
// - Live-vs-reference API validation with accumulated violation reports (apicheck)
//
// Design policy:
// - Keep only shared types and the error model in the root package; one subpackage per concern.
// - No package-level mutable registries: trees and type registries are explicit context objects.
// - Every contract violation is an Issue with a stable code; callers choose fail-fast or Report collection.
// - Prefer black-box testing against public APIs.
