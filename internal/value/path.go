package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errEmptyInsertPath = errors.New("insert path is empty")
	errIndexRootedPath = errors.New("insert path must start with a field")
)

// Segment is one step of a lookup path: a field name or an array index.
// Params: none.
// Returns: path segment value.
type Segment struct {
	field   string
	index   int
	isIndex bool
}

// Field builds a field segment.
func Field(name string) Segment {
	return Segment{field: name}
}

// Index builds an array index segment.
// Params: i non-negative index.
// Returns: index segment; negative input is clamped to zero.
func Index(i int) Segment {
	if i < 0 {
		i = 0
	}
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment addresses an array element.
func (s Segment) IsIndex() bool { return s.isIndex }

// Field returns the field name of a field segment.
func (s Segment) Field() string { return s.field }

// Index returns the position of an index segment.
func (s Segment) Index() int { return s.index }

// Path addresses a location inside an object-shaped value.
// The empty path addresses the root.
type Path []Segment

// NewPath builds a path from plain field names.
// Params: fields ordered field names.
// Returns: path made of field segments.
func NewPath(fields ...string) Path {
	path := make(Path, 0, len(fields))
	for _, name := range fields {
		path = append(path, Field(name))
	}
	return path
}

// ParsePath parses dotted lookup syntax: `a.b[0]."dotted.key"`.
// Params: raw path text; "" and "." denote the root.
// Returns: parsed path or syntax error.
func ParsePath(raw string) (Path, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, ".")

	var path Path
	for pos := 0; pos < len(text); {
		switch ch := text[pos]; {
		case ch == '.':
			if pos == len(text)-1 || text[pos+1] == '.' || text[pos+1] == '[' {
				return nil, fmt.Errorf("parse path %q: empty segment at offset %d", raw, pos)
			}
			pos++
		case ch == '[':
			end := strings.IndexByte(text[pos:], ']')
			if end < 0 {
				return nil, fmt.Errorf("parse path %q: unterminated index at offset %d", raw, pos)
			}
			index, err := strconv.Atoi(text[pos+1 : pos+end])
			if err != nil || index < 0 {
				return nil, fmt.Errorf("parse path %q: invalid index %q", raw, text[pos+1:pos+end])
			}
			path = append(path, Index(index))
			pos += end + 1
		case ch == '"':
			name, next, err := readQuotedField(text, pos)
			if err != nil {
				return nil, fmt.Errorf("parse path %q: %w", raw, err)
			}
			path = append(path, Field(name))
			pos = next
		default:
			start := pos
			for pos < len(text) && isFieldChar(text[pos]) {
				pos++
			}
			if pos == start {
				return nil, fmt.Errorf("parse path %q: unexpected %q at offset %d", raw, ch, pos)
			}
			path = append(path, Field(text[start:pos]))
		}
	}

	return path, nil
}

// MustParsePath parses raw and panics on syntax errors. Intended for literals.
func MustParsePath(raw string) Path {
	path, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return path
}

// String renders the path in the syntax accepted by ParsePath.
// Params: none.
// Returns: path text; "." for the root.
func (p Path) String() string {
	if len(p) == 0 {
		return "."
	}

	var builder strings.Builder
	for idx, segment := range p {
		if segment.IsIndex() {
			builder.WriteByte('[')
			builder.WriteString(strconv.Itoa(segment.Index()))
			builder.WriteByte(']')
			continue
		}
		if idx > 0 {
			builder.WriteByte('.')
		}
		if needsQuoting(segment.Field()) {
			builder.WriteString(strconv.Quote(segment.Field()))
			continue
		}
		builder.WriteString(segment.Field())
	}
	return builder.String()
}

// Equal reports whether both paths address the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for idx := range p {
		if p[idx] != other[idx] {
			return false
		}
	}
	return true
}

func readQuotedField(text string, start int) (string, int, error) {
	escaped := false
	for pos := start + 1; pos < len(text); pos++ {
		switch {
		case escaped:
			escaped = false
		case text[pos] == '\\':
			escaped = true
		case text[pos] == '"':
			name, err := strconv.Unquote(text[start : pos+1])
			if err != nil {
				return "", 0, fmt.Errorf("invalid quoted field %s", text[start:pos+1])
			}
			return name, pos + 1, nil
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted field at offset %d", start)
}

func isFieldChar(ch byte) bool {
	return ch == '_' || ch == '@' || ch == '-' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	for idx := 0; idx < len(name); idx++ {
		if !isFieldChar(name[idx]) {
			return true
		}
	}
	return false
}
