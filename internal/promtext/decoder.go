package promtext

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/common/expfmt"

	"pipecore/internal/value"
)

// ParseError is returned when the exposition text does not follow the grammar.
type ParseError struct {
	// Line is the 1-based line of the failure, or 0 when unknown.
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed parsing Prometheus text format: " + e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(err error) *ParseError {
	out := &ParseError{Msg: err.Error(), Err: err}
	var grammarErr expfmt.ParseError
	if errors.As(err, &grammarErr) {
		out.Line = grammarErr.Line
		out.Msg = grammarErr.Msg
	}
	return out
}

// Decoder turns exposition payloads into records or metric events.
// A Decoder holds no mutable state and is safe for concurrent use.
type Decoder struct {
	parser Parser
}

// NewDecoder creates a decoder over parser.
// Params: parser grammar implementation; nil selects TextParser.
// Returns: decoder.
func NewDecoder(parser Parser) *Decoder {
	if parser == nil {
		parser = TextParser{}
	}
	return &Decoder{parser: parser}
}

// Decode parses data into one record per sample.
//
// Records are objects with `type`, `name`, `labels`, an optional integer
// `timestamp` in milliseconds, and kind-specific fields: `value` for
// counters, gauges and untyped metrics; `quantiles`, `sum` and `count` for
// summaries; `buckets`, `sum` and `count` for histograms. Invalid UTF-8 is
// replaced with U+FFFD before parsing.
//
// Params: data raw exposition bytes.
// Returns: records in group order then sample order, or *ParseError and no records.
func (d *Decoder) Decode(data []byte) (value.Array, error) {
	groups, err := d.parse(data)
	if err != nil {
		return nil, err
	}

	records := make(value.Array, 0, countSamples(groups))
	for _, group := range groups {
		for _, sample := range group.Samples {
			records = append(records, record(group, sample))
		}
	}
	return records, nil
}

func (d *Decoder) parse(data []byte) ([]Group, error) {
	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	groups, err := d.parser.Parse(text)
	if err != nil {
		return nil, newParseError(err)
	}
	return groups, nil
}

func countSamples(groups []Group) int {
	total := 0
	for _, group := range groups {
		total += len(group.Samples)
	}
	return total
}

func record(group Group, sample Sample) value.Object {
	labels := make(value.Object, len(sample.Key.Labels))
	for _, label := range sample.Key.Labels {
		labels[label.Name] = value.Bytes(label.Value)
	}

	out := value.Object{
		"type":   value.Bytes(group.Kind.String()),
		"name":   value.Bytes(group.Name),
		"labels": labels,
	}
	if sample.Key.Timestamp != nil {
		out["timestamp"] = value.Integer(*sample.Key.Timestamp)
	}

	switch group.Kind {
	case GroupSummary:
		quantiles := make(value.Array, 0, len(sample.Quantiles))
		for _, quantile := range sample.Quantiles {
			quantiles = append(quantiles, value.Object{
				"quantile": value.Float(quantile.Quantile),
				"value":    value.Float(quantile.Value),
			})
		}
		out["quantiles"] = quantiles
		out["sum"] = value.Float(sample.Sum)
		out["count"] = countValue(sample.Count)
	case GroupHistogram:
		buckets := make(value.Array, 0, len(sample.Buckets))
		for _, bucket := range sample.Buckets {
			buckets = append(buckets, value.Object{
				"bucket": value.Float(bucket.UpperBound),
				"count":  countValue(bucket.Count),
			})
		}
		out["buckets"] = buckets
		out["sum"] = value.Float(sample.Sum)
		out["count"] = countValue(sample.Count)
	default:
		out["value"] = value.Float(sample.Value)
	}

	return out
}

// countValue saturates counts that do not fit a signed integer.
func countValue(count uint64) value.Integer {
	const maxInteger = 1<<63 - 1
	if count > maxInteger {
		return value.Integer(maxInteger)
	}
	return value.Integer(count)
}
