package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"pipecore/internal/event"
	"pipecore/internal/value"
)

const (
	FormatJSON  = "json"
	FormatProto = "proto"
)

var jsonConfig = sonic.ConfigStd

// Encoder writes event batches to an output stream.
type Encoder interface {
	// Encode drains batch and writes every event.
	// Params: batch event array; it is empty after the call.
	// Returns: number of events written and the first write error.
	Encode(batch *event.EventArray) (int, error)
}

// NewEncoder returns the encoder for format.
// Params: format "json" or "proto"; w destination.
// Returns: encoder or error for unknown formats.
func NewEncoder(format string, w io.Writer) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return &JSONEncoder{enc: jsonConfig.NewEncoder(w)}, nil
	case FormatProto:
		return &ProtoEncoder{w: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// MarshalValue encodes v as JSON with object keys sorted.
func MarshalValue(v value.Value) ([]byte, error) {
	return jsonConfig.Marshal(Native(v))
}

// JSONEncoder writes one JSON document per line.
type JSONEncoder struct {
	enc sonic.Encoder
}

// Encode implements Encoder.
func (e *JSONEncoder) Encode(batch *event.EventArray) (int, error) {
	written := 0
	for item := range batch.IntoEvents() {
		if err := e.enc.Encode(NativeEvent(item)); err != nil {
			return written, fmt.Errorf("encode json event: %w", err)
		}
		written++
	}
	return written, nil
}

// ProtoEncoder writes size-delimited google.protobuf.Struct messages.
type ProtoEncoder struct {
	w io.Writer
}

// Encode implements Encoder.
func (e *ProtoEncoder) Encode(batch *event.EventArray) (int, error) {
	written := 0
	for item := range batch.IntoEvents() {
		msg, err := ToStruct(item)
		if err != nil {
			return written, err
		}
		if _, err := protodelim.MarshalTo(e.w, msg); err != nil {
			return written, fmt.Errorf("write proto event: %w", err)
		}
		written++
	}
	return written, nil
}

// ToStruct converts one event into a protobuf Struct.
func ToStruct(e event.Event) (*structpb.Struct, error) {
	if e == nil {
		return nil, errors.New("nil event")
	}
	msg, err := structpb.NewStruct(NativeEvent(e))
	if err != nil {
		return nil, fmt.Errorf("convert event to struct: %w", err)
	}
	return msg, nil
}
