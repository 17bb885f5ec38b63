// Package schema describes what a pipeline component emits: the structural
// Kind of its events plus the semantic purpose bound to individual fields.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pipecore/internal/value"
)

// Purpose is a semantic tag bound to one field path of an Output.
type Purpose string

const (
	PurposeTimestamp Purpose = "timestamp"
	PurposeMessage   Purpose = "message"
	PurposeHost      Purpose = "host"
	PurposeSeverity  Purpose = "severity"
)

// ErrPurposeConflict is wrapped by ConflictError.
var ErrPurposeConflict = errors.New("schema purpose conflict")

// Conflict describes one purpose tag bound to different paths by two merged outputs.
type Conflict struct {
	Purpose  Purpose
	Existing value.Path
	Incoming value.Path
}

// String renders the conflict for logs.
func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Purpose, c.Existing, c.Incoming)
}

// ConflictError is returned by MergeStrict.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, conflict := range e.Conflicts {
		parts = append(parts, conflict.String())
	}
	return ErrPurposeConflict.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ConflictError) Unwrap() error {
	return ErrPurposeConflict
}

// Output is the schema of the events produced by one component.
//
// Outputs are built sequentially at configuration time and then only read.
// The zero value describes a component that emits nothing.
type Output struct {
	kind    value.Kind
	purpose map[Purpose]value.Path
}

// Empty returns an output with no field knowledge: a fully open object.
func Empty() Output {
	return Output{kind: value.ObjectOf(nil, true)}
}

// FromParts builds an output from a kind and purpose bindings.
// Params: kind top-level kind; purposes bindings (copied).
// Returns: output.
func FromParts(kind value.Kind, purposes map[Purpose]value.Path) Output {
	out := Output{kind: kind}
	for purpose, path := range purposes {
		out.bind(purpose, path)
	}
	return out
}

// DefineField adds type information for one field.
//
// kind is nested at path and merged into the top-level kind, so existing
// knowledge about the path and its siblings is kept. A non-empty purpose is
// bound to path, replacing any earlier binding of the same purpose.
func (o *Output) DefineField(path value.Path, kind value.Kind, purpose Purpose) {
	o.kind = o.kind.Merge(kind.NestAtPath(path))
	if purpose != "" {
		o.bind(purpose, path)
	}
}

// Merge merges other into o.
//
// Kinds are merged structurally. Purpose bindings are unioned; when both sides
// bind the same purpose, other's path wins. The overridden bindings are
// returned so callers can report them; they are never an error here.
func (o *Output) Merge(other Output) []Conflict {
	conflicts := o.Conflicts(other)
	o.kind = o.kind.Merge(other.kind)
	for purpose, path := range other.purpose {
		o.bind(purpose, path)
	}
	return conflicts
}

// MergeStrict merges other into o unless a purpose is bound to different paths.
// Params: other output to merge.
// Returns: *ConflictError and o unchanged on conflicts, nil otherwise.
func (o *Output) MergeStrict(other Output) error {
	if conflicts := o.Conflicts(other); len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	o.Merge(other)
	return nil
}

// Conflicts lists purposes that o and other bind to different paths.
// Params: other output that would be merged into o.
// Returns: conflicts sorted by purpose.
func (o Output) Conflicts(other Output) []Conflict {
	var conflicts []Conflict
	for purpose, incoming := range other.purpose {
		existing, ok := o.purpose[purpose]
		if !ok || existing.Equal(incoming) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Purpose:  purpose,
			Existing: clonePath(existing),
			Incoming: clonePath(incoming),
		})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Purpose < conflicts[j].Purpose
	})
	return conflicts
}

// Kind returns the top-level kind.
func (o Output) Kind() value.Kind {
	return o.kind
}

// Purpose returns a copy of the purpose bindings.
func (o Output) Purpose() map[Purpose]value.Path {
	out := make(map[Purpose]value.Path, len(o.purpose))
	for purpose, path := range o.purpose {
		out[purpose] = clonePath(path)
	}
	return out
}

// PathFor returns the path bound to purpose.
func (o Output) PathFor(purpose Purpose) (value.Path, bool) {
	path, ok := o.purpose[purpose]
	if !ok {
		return nil, false
	}
	return clonePath(path), true
}

// Clone returns an independent copy of o.
func (o Output) Clone() Output {
	return FromParts(o.kind, o.purpose)
}

func (o *Output) bind(purpose Purpose, path value.Path) {
	if o.purpose == nil {
		o.purpose = make(map[Purpose]value.Path)
	}
	o.purpose[purpose] = clonePath(path)
}

func clonePath(path value.Path) value.Path {
	if path == nil {
		return nil
	}
	return append(value.Path(nil), path...)
}
