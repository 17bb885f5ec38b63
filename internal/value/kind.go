package value

import (
	"fmt"
	"sort"
	"strings"
)

// scalar is a bit set over the scalar kinds.
type scalar uint8

const (
	scalarBytes scalar = 1 << iota
	scalarInteger
	scalarFloat
	scalarBoolean
	scalarTimestamp
	scalarRegex
	scalarNull
)

var scalarNames = []struct {
	bit  scalar
	name string
}{
	{scalarBytes, "bytes"},
	{scalarInteger, "integer"},
	{scalarFloat, "float"},
	{scalarBoolean, "boolean"},
	{scalarTimestamp, "timestamp"},
	{scalarRegex, "regex"},
	{scalarNull, "null"},
}

// Kind is a recursive structural type descriptor.
//
// A Kind is a union of facets: a set of scalar kinds, an optional array facet
// with one element kind, and an optional object facet with known fields and an
// open flag. The `any` sentinel accepts every value. The zero Kind accepts no
// value and is the identity of Merge.
//
// Kind values are immutable; every operation returns a new Kind and nested
// facets may be shared between results.
type Kind struct {
	any     bool
	scalars scalar
	array   *Kind
	object  *collection
}

// collection is the object facet of a Kind.
type collection struct {
	fields map[string]Kind
	open   bool
}

// AnyKind returns the unconstrained kind.
func AnyKind() Kind { return Kind{any: true} }

// BytesKind returns the bytes/string kind.
func BytesKind() Kind { return Kind{scalars: scalarBytes} }

// IntegerKind returns the integer kind.
func IntegerKind() Kind { return Kind{scalars: scalarInteger} }

// FloatKind returns the float kind.
func FloatKind() Kind { return Kind{scalars: scalarFloat} }

// BooleanKind returns the boolean kind.
func BooleanKind() Kind { return Kind{scalars: scalarBoolean} }

// TimestampKind returns the timestamp kind.
func TimestampKind() Kind { return Kind{scalars: scalarTimestamp} }

// RegexKind returns the regex kind.
func RegexKind() Kind { return Kind{scalars: scalarRegex} }

// NullKind returns the null kind.
func NullKind() Kind { return Kind{scalars: scalarNull} }

// ArrayOf returns an array kind with the given element kind.
func ArrayOf(elem Kind) Kind {
	return Kind{array: &elem}
}

// ObjectOf returns an object kind.
// Params: fields known field kinds (copied); open marks that undeclared fields may exist.
// Returns: object kind.
func ObjectOf(fields map[string]Kind, open bool) Kind {
	copied := make(map[string]Kind, len(fields))
	for name, kind := range fields {
		copied[name] = kind
	}
	return Kind{object: &collection{fields: copied, open: open}}
}

// Or returns the union of all given kinds.
// Params: kinds to union.
// Returns: merged kind; the zero Kind when kinds is empty.
func Or(kinds ...Kind) Kind {
	var out Kind
	for _, kind := range kinds {
		out = out.Merge(kind)
	}
	return out
}

// Merge returns the structural union of k and other.
//
// any absorbs everything, scalar sets are unioned, array element kinds are
// merged, object fields are merged key by key with unique keys carried over
// and the open flags OR-ed. Facets present on only one side are kept as-is, so
// mismatched shapes produce a union. Merge is commutative and associative.
func (k Kind) Merge(other Kind) Kind {
	if k.any || other.any {
		return AnyKind()
	}

	out := Kind{scalars: k.scalars | other.scalars}

	switch {
	case k.array != nil && other.array != nil:
		elem := k.array.Merge(*other.array)
		out.array = &elem
	case k.array != nil:
		out.array = k.array
	case other.array != nil:
		out.array = other.array
	}

	switch {
	case k.object != nil && other.object != nil:
		out.object = k.object.merge(other.object)
	case k.object != nil:
		out.object = k.object
	case other.object != nil:
		out.object = other.object
	}

	return out
}

func (c *collection) merge(other *collection) *collection {
	fields := make(map[string]Kind, len(c.fields)+len(other.fields))
	for name, kind := range c.fields {
		fields[name] = kind
	}
	for name, kind := range other.fields {
		if existing, ok := fields[name]; ok {
			fields[name] = existing.Merge(kind)
			continue
		}
		fields[name] = kind
	}
	return &collection{fields: fields, open: c.open || other.open}
}

// NestAtPath wraps k so that it describes only the value at path.
//
// Field segments become closed single-field objects and index segments become
// arrays, so merging the result into a larger kind constrains only path and
// keeps every sibling of the larger kind.
func (k Kind) NestAtPath(path Path) Kind {
	out := k
	for idx := len(path) - 1; idx >= 0; idx-- {
		segment := path[idx]
		if segment.IsIndex() {
			out = ArrayOf(out)
			continue
		}
		out = Kind{object: &collection{fields: map[string]Kind{segment.Field(): out}}}
	}
	return out
}

// At returns the kind of the value reachable at path.
// Params: path to resolve from the root of k.
// Returns: kind at path; null is added wherever the path may be missing.
func (k Kind) At(path Path) Kind {
	current := k
	for _, segment := range path {
		if current.any {
			return AnyKind()
		}

		var next Kind
		missing := current.scalars != 0

		if segment.IsIndex() {
			// Out-of-range indexes read as null.
			missing = true
			if current.array != nil {
				next = *current.array
			}
		} else {
			if current.array != nil {
				missing = true
			}
			switch {
			case current.object == nil:
				missing = true
			default:
				if field, ok := current.object.fields[segment.Field()]; ok {
					next = field
				} else if current.object.open {
					next = AnyKind()
				} else {
					missing = true
				}
			}
		}

		if missing {
			next = next.Merge(NullKind())
		}
		current = next
	}
	return current
}

// IsSuperset reports whether every value accepted by other is accepted by k.
func (k Kind) IsSuperset(other Kind) bool {
	if k.any {
		return true
	}
	if other.any {
		return false
	}
	if other.scalars&^k.scalars != 0 {
		return false
	}
	if other.array != nil {
		if k.array == nil || !k.array.IsSuperset(*other.array) {
			return false
		}
	}
	if other.object != nil {
		if k.object == nil || !k.object.isSuperset(other.object) {
			return false
		}
	}
	return true
}

func (c *collection) isSuperset(other *collection) bool {
	if other.open && !c.open {
		return false
	}
	for name, kind := range other.fields {
		field, ok := c.fields[name]
		if !ok {
			if !c.open {
				return false
			}
			continue
		}
		if !field.IsSuperset(kind) {
			return false
		}
	}
	for name, field := range c.fields {
		if _, ok := other.fields[name]; ok {
			continue
		}
		if other.open {
			if !field.any {
				return false
			}
			continue
		}
		if !field.ContainsNull() {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (k Kind) Equal(other Kind) bool {
	if k.any || other.any {
		return k.any == other.any
	}
	if k.scalars != other.scalars {
		return false
	}
	if (k.array == nil) != (other.array == nil) {
		return false
	}
	if k.array != nil && !k.array.Equal(*other.array) {
		return false
	}
	if (k.object == nil) != (other.object == nil) {
		return false
	}
	if k.object == nil {
		return true
	}
	if k.object.open != other.object.open || len(k.object.fields) != len(other.object.fields) {
		return false
	}
	for name, field := range k.object.fields {
		otherField, ok := other.object.fields[name]
		if !ok || !field.Equal(otherField) {
			return false
		}
	}
	return true
}

// IsAny reports whether k is the unconstrained kind.
func (k Kind) IsAny() bool { return k.any }

// IsNever reports whether k accepts no value at all.
func (k Kind) IsNever() bool {
	return !k.any && k.scalars == 0 && k.array == nil && k.object == nil
}

// ContainsNull reports whether null is an accepted value.
func (k Kind) ContainsNull() bool { return k.any || k.scalars&scalarNull != 0 }

// ContainsBytes reports whether bytes are an accepted value.
func (k Kind) ContainsBytes() bool { return k.any || k.scalars&scalarBytes != 0 }

// ContainsTimestamp reports whether timestamps are an accepted value.
func (k Kind) ContainsTimestamp() bool { return k.any || k.scalars&scalarTimestamp != 0 }

// ArrayElement returns the element kind of the array facet.
// Params: none.
// Returns: element kind and true when k has an array facet.
func (k Kind) ArrayElement() (Kind, bool) {
	if k.array == nil {
		return Kind{}, false
	}
	return *k.array, true
}

// ObjectFields returns a copy of the known fields of the object facet.
// Params: none.
// Returns: field kinds, open flag, and true when k has an object facet.
func (k Kind) ObjectFields() (map[string]Kind, bool, bool) {
	if k.object == nil {
		return nil, false, false
	}
	fields := make(map[string]Kind, len(k.object.fields))
	for name, kind := range k.object.fields {
		fields[name] = kind
	}
	return fields, k.object.open, true
}

// WithoutNull returns k with the null scalar removed.
func (k Kind) WithoutNull() Kind {
	out := k
	out.scalars &^= scalarNull
	return out
}

// String renders k deterministically, for example `{ name: bytes, value: float | null }`.
func (k Kind) String() string {
	if k.any {
		return "any"
	}
	if k.IsNever() {
		return "never"
	}

	var parts []string
	for _, item := range scalarNames {
		if k.scalars&item.bit != 0 {
			parts = append(parts, item.name)
		}
	}
	if k.array != nil {
		parts = append(parts, "["+k.array.String()+"]")
	}
	if k.object != nil {
		parts = append(parts, k.object.String())
	}
	return strings.Join(parts, " | ")
}

func (c *collection) String() string {
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]string, 0, len(names)+1)
	for _, name := range names {
		entries = append(entries, Path{Field(name)}.String()+": "+c.fields[name].String())
	}
	if c.open {
		entries = append(entries, "...")
	}
	if len(entries) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}

// ParseKind parses a `|`-separated list of kind names, as used in configuration.
// Params: raw text such as "bytes | integer", "object", "array", or "any".
// Returns: parsed kind or error for unknown names.
func ParseKind(raw string) (Kind, error) {
	var out Kind
	for _, part := range strings.Split(raw, "|") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case "any":
			out = out.Merge(AnyKind())
		case "bytes", "string":
			out = out.Merge(BytesKind())
		case "integer":
			out = out.Merge(IntegerKind())
		case "float":
			out = out.Merge(FloatKind())
		case "boolean":
			out = out.Merge(BooleanKind())
		case "timestamp":
			out = out.Merge(TimestampKind())
		case "regex":
			out = out.Merge(RegexKind())
		case "null":
			out = out.Merge(NullKind())
		case "array":
			out = out.Merge(ArrayOf(AnyKind()))
		case "object":
			out = out.Merge(ObjectOf(nil, true))
		default:
			return Kind{}, fmt.Errorf("unknown kind %q in %q", name, raw)
		}
	}
	return out, nil
}
