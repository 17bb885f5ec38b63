package promtext

import (
	"fmt"

	"pipecore/internal/function"
	"pipecore/internal/value"
)

// FunctionName is the identifier under which ParsePrometheusText registers.
const FunctionName = "parse_prometheus_text"

// ParsePrometheusText exposes the decoder as a library function.
type ParsePrometheusText struct {
	decoder *Decoder
	precise bool
}

// NewParsePrometheusText creates the function.
// Params: decoder shared decoder, nil selects the default; precise declares PreciseKind instead of CoarseKind.
// Returns: function ready for registration.
func NewParsePrometheusText(decoder *Decoder, precise bool) *ParsePrometheusText {
	if decoder == nil {
		decoder = NewDecoder(nil)
	}
	return &ParsePrometheusText{decoder: decoder, precise: precise}
}

// Identifier returns parse_prometheus_text.
func (f *ParsePrometheusText) Identifier() string {
	return FunctionName
}

// Parameters declares the single required bytes argument.
func (f *ParsePrometheusText) Parameters() []function.Parameter {
	return []function.Parameter{
		{Keyword: "value", Kind: value.BytesKind(), Required: true},
	}
}

// Examples documents typical calls.
func (f *ParsePrometheusText) Examples() []function.Example {
	return []function.Example{
		{
			Title:  "untyped sample",
			Source: `parse_prometheus_text!("metric 12.47")`,
			Result: `[{"labels":{},"name":"metric","type":"untyped","value":12.47}]`,
		},
		{
			Title:  "labels and timestamp",
			Source: `parse_prometheus_text!("metric{foo=\"bar\"} 1 1642734998")`,
			Result: `[{"labels":{"foo":"bar"},"name":"metric","timestamp":1642734998,"type":"untyped","value":1.0}]`,
		},
	}
}

// TypeDef declares a fallible array of records.
func (f *ParsePrometheusText) TypeDef() function.TypeDef {
	kind := CoarseKind()
	if f.precise {
		kind = PreciseKind()
	}
	return function.TypeDef{Fallible: true, Kind: kind}
}

// Call decodes the `value` argument.
// Params: args with a bytes `value`.
// Returns: value.Array of records or *ParseError.
func (f *ParsePrometheusText) Call(args function.Arguments) (value.Value, error) {
	raw, err := args.Required("value")
	if err != nil {
		return nil, err
	}
	text, ok := raw.(value.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: value expects bytes, got %s", function.ErrArgumentKind, raw.Kind())
	}

	records, err := f.decoder.Decode([]byte(text))
	if err != nil {
		return nil, err
	}
	return records, nil
}
