package value

import (
	"sort"
	"time"
	"unsafe"

	"github.com/grafana/regexp"
)

const (
	valueHeaderSize  = int(unsafe.Sizeof(Value(nil)))
	stringHeaderSize = int(unsafe.Sizeof(""))
)

// Value is one runtime value carried by log events and produced by decoders.
// Params: none.
// Returns: sealed sum type implemented by the types of this package only.
type Value interface {
	// Kind reports the structural type of this exact value.
	Kind() Kind
	// AllocatedBytes reports heap bytes referenced by the value, excluding its own header.
	AllocatedBytes() int
	sealed()
}

// Bytes is a byte string value.
type Bytes string

// Integer is a signed 64-bit integer value.
type Integer int64

// Float is a 64-bit floating point value.
type Float float64

// Boolean is a boolean value.
type Boolean bool

// Null is the absence of a value.
type Null struct{}

// Timestamp is a point in time.
// Params: embedded time value.
// Returns: timestamp value.
type Timestamp struct {
	time.Time
}

// Regex is a compiled regular expression value.
// Params: embedded compiled expression.
// Returns: regex value.
type Regex struct {
	*regexp.Regexp
}

// Array is an ordered sequence of values.
type Array []Value

// Object is a mapping from field name to value.
type Object map[string]Value

func (Bytes) sealed()     {}
func (Integer) sealed()   {}
func (Float) sealed()     {}
func (Boolean) sealed()   {}
func (Null) sealed()      {}
func (Timestamp) sealed() {}
func (Regex) sealed()     {}
func (Array) sealed()     {}
func (Object) sealed()    {}

// Kind returns the bytes kind.
func (Bytes) Kind() Kind { return BytesKind() }

// Kind returns the integer kind.
func (Integer) Kind() Kind { return IntegerKind() }

// Kind returns the float kind.
func (Float) Kind() Kind { return FloatKind() }

// Kind returns the boolean kind.
func (Boolean) Kind() Kind { return BooleanKind() }

// Kind returns the null kind.
func (Null) Kind() Kind { return NullKind() }

// Kind returns the timestamp kind.
func (Timestamp) Kind() Kind { return TimestampKind() }

// Kind returns the regex kind.
func (Regex) Kind() Kind { return RegexKind() }

// Kind returns an array kind whose element kind is the union of all element kinds.
// Params: none.
// Returns: array kind; empty arrays carry the zero (never) element kind.
func (a Array) Kind() Kind {
	var elem Kind
	for _, item := range a {
		elem = elem.Merge(item.Kind())
	}
	return ArrayOf(elem)
}

// Kind returns a closed object kind with the exact kind of every field.
// Params: none.
// Returns: object kind.
func (o Object) Kind() Kind {
	fields := make(map[string]Kind, len(o))
	for name, item := range o {
		fields[name] = item.Kind()
	}
	return ObjectOf(fields, false)
}

func (b Bytes) AllocatedBytes() int   { return len(b) }
func (Integer) AllocatedBytes() int   { return 0 }
func (Float) AllocatedBytes() int     { return 0 }
func (Boolean) AllocatedBytes() int   { return 0 }
func (Null) AllocatedBytes() int      { return 0 }
func (Timestamp) AllocatedBytes() int { return 0 }

func (r Regex) AllocatedBytes() int {
	if r.Regexp == nil {
		return 0
	}
	return len(r.String())
}

// AllocatedBytes sums the backing slice capacity and every element's heap bytes.
// Params: none.
// Returns: heap byte count.
func (a Array) AllocatedBytes() int {
	total := cap(a) * valueHeaderSize
	for _, item := range a {
		if item != nil {
			total += item.AllocatedBytes()
		}
	}
	return total
}

// AllocatedBytes sums map entries, key bytes, and every value's heap bytes.
// Params: none.
// Returns: heap byte count.
func (o Object) AllocatedBytes() int {
	total := 0
	for name, item := range o {
		total += stringHeaderSize + valueHeaderSize + len(name)
		if item != nil {
			total += item.AllocatedBytes()
		}
	}
	return total
}

// Equal reports whether both timestamps denote the same instant.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.Time.Equal(other.Time)
}

// Equal reports whether both regexes have the same source expression.
func (r Regex) Equal(other Regex) bool {
	if r.Regexp == nil || other.Regexp == nil {
		return r.Regexp == other.Regexp
	}
	return r.String() == other.String()
}

// NewTimestamp wraps t into a timestamp value.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// NewRegex compiles expr into a regex value.
// Params: expr regular expression source.
// Returns: regex value or compile error.
func NewRegex(expr string) (Regex, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regex{}, err
	}
	return Regex{Regexp: re}, nil
}

// Keys returns object field names in sorted order.
// Params: none.
// Returns: sorted key list.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for name := range o {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value stored at path.
// Params: path relative to the object; empty path returns the object itself.
// Returns: value and true when present.
func (o Object) Get(path Path) (Value, bool) {
	var current Value = o
	for _, segment := range path {
		switch typed := current.(type) {
		case Object:
			if segment.IsIndex() {
				return nil, false
			}
			next, ok := typed[segment.Field()]
			if !ok {
				return nil, false
			}
			current = next
		case Array:
			if !segment.IsIndex() {
				return nil, false
			}
			index := segment.Index()
			if index < 0 || index >= len(typed) {
				return nil, false
			}
			current = typed[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// Insert stores v at path, creating intermediate objects and arrays as needed.
// Params: path must start with a field segment; v value to store.
// Returns: error for empty or index-rooted paths.
func (o Object) Insert(path Path, v Value) error {
	if len(path) == 0 {
		return errEmptyInsertPath
	}
	if path[0].IsIndex() {
		return errIndexRootedPath
	}
	name := path[0].Field()
	o[name] = insertInto(o[name], path[1:], v)
	return nil
}

// insertInto returns container with v stored at path.
// Params: container current value (may be nil); path remaining segments; v value to store.
// Returns: updated container value.
func insertInto(container Value, path Path, v Value) Value {
	if len(path) == 0 {
		return v
	}

	segment := path[0]
	if segment.IsIndex() {
		array, _ := container.(Array)
		for len(array) <= segment.Index() {
			array = append(array, Null{})
		}
		array[segment.Index()] = insertInto(array[segment.Index()], path[1:], v)
		return array
	}

	object, ok := container.(Object)
	if !ok {
		object = Object{}
	}
	object[segment.Field()] = insertInto(object[segment.Field()], path[1:], v)
	return object
}
