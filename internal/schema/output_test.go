package schema

import (
	"errors"
	"testing"

	"pipecore/internal/value"
)

// TestEmpty verifies the empty output is a fully open object without purposes.
// Params: testing.T for assertions.
// Returns: none.
func TestEmpty(t *testing.T) {
	out := Empty()

	fields, open, ok := out.Kind().ObjectFields()
	if !ok || !open || len(fields) != 0 {
		t.Fatalf("unexpected empty kind: %s", out.Kind())
	}
	if len(out.Purpose()) != 0 {
		t.Fatalf("empty output has purposes: %v", out.Purpose())
	}
}

// TestDefineField_MergesAndBindsPurpose verifies field definitions merge and rebind purposes.
// Params: testing.T for assertions.
// Returns: none.
func TestDefineField_MergesAndBindsPurpose(t *testing.T) {
	out := Empty()
	out.DefineField(value.MustParsePath("message"), value.BytesKind(), PurposeMessage)
	out.DefineField(value.MustParsePath("ts"), value.TimestampKind(), PurposeTimestamp)
	out.DefineField(value.MustParsePath("ts"), value.IntegerKind(), "")
	out.DefineField(value.MustParsePath("meta.ts"), value.TimestampKind(), PurposeTimestamp)

	if kind := out.Kind().At(value.MustParsePath("ts")); !kind.Equal(value.Or(value.TimestampKind(), value.IntegerKind())) {
		t.Fatalf("ts kind = %s", kind)
	}
	if kind := out.Kind().At(value.MustParsePath("message")); !kind.Equal(value.BytesKind()) {
		t.Fatalf("message kind = %s", kind)
	}

	path, ok := out.PathFor(PurposeTimestamp)
	if !ok || path.String() != "meta.ts" {
		t.Fatalf("timestamp purpose = %v, %v; want meta.ts", path, ok)
	}
	if path, _ := out.PathFor(PurposeMessage); path.String() != "message" {
		t.Fatalf("message purpose = %v", path)
	}
}

// TestMerge_NotCommutativeOnPurposeCollision asserts both merge directions.
// Params: testing.T for assertions.
// Returns: none.
func TestMerge_NotCommutativeOnPurposeCollision(t *testing.T) {
	newOutputs := func() (Output, Output) {
		a := Empty()
		a.DefineField(value.MustParsePath("a_ts"), value.TimestampKind(), PurposeTimestamp)
		b := Empty()
		b.DefineField(value.MustParsePath("b_ts"), value.TimestampKind(), PurposeTimestamp)
		return a, b
	}

	a, b := newOutputs()
	conflicts := a.Merge(b)
	if path, _ := a.PathFor(PurposeTimestamp); path.String() != "b_ts" {
		t.Fatalf("merge(a,b) timestamp = %s want b_ts", path)
	}
	if len(conflicts) != 1 || conflicts[0].Existing.String() != "a_ts" || conflicts[0].Incoming.String() != "b_ts" {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}

	a, b = newOutputs()
	b.Merge(a)
	if path, _ := b.PathFor(PurposeTimestamp); path.String() != "a_ts" {
		t.Fatalf("merge(b,a) timestamp = %s want a_ts", path)
	}

	a, b = newOutputs()
	left, right := a.Clone(), b.Clone()
	left.Merge(b)
	right.Merge(a)
	if !left.Kind().Equal(right.Kind()) {
		t.Fatalf("kinds differ between merge directions: %s vs %s", left.Kind(), right.Kind())
	}
}

// TestMerge_SamePathIsNotAConflict verifies identical bindings merge silently.
// Params: testing.T for assertions.
// Returns: none.
func TestMerge_SamePathIsNotAConflict(t *testing.T) {
	a := Empty()
	a.DefineField(value.MustParsePath("ts"), value.TimestampKind(), PurposeTimestamp)
	b := a.Clone()

	if conflicts := a.Merge(b); len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
}

// TestMergeStrict verifies conflicts are reported and leave the receiver unchanged.
// Params: testing.T for assertions.
// Returns: none.
func TestMergeStrict(t *testing.T) {
	a := Empty()
	a.DefineField(value.MustParsePath("a_ts"), value.TimestampKind(), PurposeTimestamp)
	b := Empty()
	b.DefineField(value.MustParsePath("b_ts"), value.TimestampKind(), PurposeTimestamp)
	b.DefineField(value.MustParsePath("extra"), value.BytesKind(), "")

	err := a.MergeStrict(b)
	if !errors.Is(err, ErrPurposeConflict) {
		t.Fatalf("expected ErrPurposeConflict, got %v", err)
	}
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || len(conflictErr.Conflicts) != 1 {
		t.Fatalf("expected one ConflictError entry, got %v", err)
	}
	if path, _ := a.PathFor(PurposeTimestamp); path.String() != "a_ts" {
		t.Fatalf("receiver purpose changed: %s", path)
	}
	if fields, _, _ := a.Kind().ObjectFields(); len(fields) != 1 {
		t.Fatalf("receiver kind changed: %s", a.Kind())
	}

	c := Empty()
	c.DefineField(value.MustParsePath("host"), value.BytesKind(), PurposeHost)
	if err := a.MergeStrict(c); err != nil {
		t.Fatalf("MergeStrict() error: %v", err)
	}
	if _, ok := a.PathFor(PurposeHost); !ok {
		t.Fatalf("host purpose not merged")
	}
}

// TestPurpose_ReturnsCopy verifies callers cannot mutate the bindings.
// Params: testing.T for assertions.
// Returns: none.
func TestPurpose_ReturnsCopy(t *testing.T) {
	out := Empty()
	out.DefineField(value.MustParsePath("ts"), value.TimestampKind(), PurposeTimestamp)

	purposes := out.Purpose()
	purposes[PurposeTimestamp][0] = value.Field("mutated")
	delete(purposes, PurposeTimestamp)

	if path, ok := out.PathFor(PurposeTimestamp); !ok || path.String() != "ts" {
		t.Fatalf("bindings mutated through Purpose(): %v", path)
	}
}
