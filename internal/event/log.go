package event

import (
	"iter"

	"pipecore/internal/schema"
	"pipecore/internal/value"
)

// Metadata carries event bookkeeping that is not part of the payload.
// Params: SourceID names the producing component; Schema is its declared output.
// Returns: metadata value attached to a log event.
type Metadata struct {
	SourceID string
	Schema   *schema.Output
}

// LogEvent is a structured, dynamically shaped record.
type LogEvent struct {
	fields   value.Object
	metadata Metadata
}

// NewLogEvent wraps fields into a log event. A nil object becomes an empty one.
// Params: fields payload object; ownership transfers to the event.
// Returns: log event.
func NewLogEvent(fields value.Object) *LogEvent {
	if fields == nil {
		fields = value.Object{}
	}
	return &LogEvent{fields: fields}
}

// NewMessageEvent builds a log event with a single `message` field.
func NewMessageEvent(message string) *LogEvent {
	return NewLogEvent(value.Object{"message": value.Bytes(message)})
}

func (e *LogEvent) container() {}
func (e *LogEvent) event()     {}

// IntoEvents yields the log event itself, once.
func (e *LogEvent) IntoEvents() iter.Seq[Event] {
	return once(e)
}

// AllocatedBytes reports heap bytes held by the payload and metadata strings.
func (e *LogEvent) AllocatedBytes() int {
	return e.fields.AllocatedBytes() + len(e.metadata.SourceID)
}

// Value returns the payload object. The event keeps ownership.
func (e *LogEvent) Value() value.Object {
	return e.fields
}

// Get returns the payload value at path.
func (e *LogEvent) Get(path value.Path) (value.Value, bool) {
	return e.fields.Get(path)
}

// Insert stores v at path inside the payload.
// Params: path field-rooted path; v value to store.
// Returns: error for empty or index-rooted paths.
func (e *LogEvent) Insert(path value.Path, v value.Value) error {
	return e.fields.Insert(path, v)
}

// Metadata returns the event metadata.
func (e *LogEvent) Metadata() Metadata {
	return e.metadata
}

// WithMetadata replaces the event metadata and returns the event.
func (e *LogEvent) WithMetadata(metadata Metadata) *LogEvent {
	e.metadata = metadata
	return e
}

// GetByPurpose resolves the field bound to purpose in the event's schema.
// Params: purpose semantic tag such as schema.PurposeTimestamp.
// Returns: value and true when the schema binds the purpose and the field is present.
func (e *LogEvent) GetByPurpose(purpose schema.Purpose) (value.Value, bool) {
	if e.metadata.Schema == nil {
		return nil, false
	}
	path, ok := e.metadata.Schema.PathFor(purpose)
	if !ok {
		return nil, false
	}
	return e.fields.Get(path)
}
