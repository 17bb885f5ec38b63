// Package codec serializes values and event batches for output.
package codec

import (
	"math"
	"time"

	"pipecore/internal/event"
	"pipecore/internal/value"
)

// Native converts v into plain Go values suitable for generic encoders.
//
// Objects become map[string]any, arrays []any, timestamps RFC 3339 strings
// and regexes their source text. Non-finite floats become the strings "NaN",
// "+Inf" and "-Inf" since neither JSON nor protobuf Struct can carry them.
//
// Params: v value to convert; nil is treated as null.
// Returns: native representation.
func Native(v value.Value) any {
	switch typed := v.(type) {
	case nil, value.Null:
		return nil
	case value.Bytes:
		return string(typed)
	case value.Integer:
		return int64(typed)
	case value.Float:
		return nativeFloat(float64(typed))
	case value.Boolean:
		return bool(typed)
	case value.Timestamp:
		return typed.UTC().Format(time.RFC3339Nano)
	case value.Regex:
		if typed.Regexp == nil {
			return ""
		}
		return typed.String()
	case value.Array:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, Native(item))
		}
		return out
	case value.Object:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Native(item)
		}
		return out
	default:
		return nil
	}
}

func nativeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return f
	}
}

// NativeEvent converts one event into a map.
//
// Log events become their payload. Metrics become an object with `name`,
// optional `namespace`, `tags` and `timestamp`, `kind`, and one field named
// after the value type holding the payload.
func NativeEvent(e event.Event) map[string]any {
	switch typed := e.(type) {
	case *event.LogEvent:
		return Native(typed.Value()).(map[string]any)
	case *event.Metric:
		return nativeMetric(typed)
	default:
		return map[string]any{}
	}
}

func nativeMetric(m *event.Metric) map[string]any {
	out := map[string]any{
		"name": m.Series.Name,
		"kind": m.Kind.String(),
	}
	if m.Series.Namespace != "" {
		out["namespace"] = m.Series.Namespace
	}
	if len(m.Series.Tags) > 0 {
		tags := make(map[string]any, len(m.Series.Tags))
		for key, val := range m.Series.Tags {
			tags[key] = val
		}
		out["tags"] = tags
	}
	if m.Timestamp != nil {
		out["timestamp"] = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	switch payload := m.Value.(type) {
	case event.Counter:
		out[payload.Type()] = map[string]any{"value": nativeFloat(payload.Value)}
	case event.Gauge:
		out[payload.Type()] = map[string]any{"value": nativeFloat(payload.Value)}
	case event.AggregatedSummary:
		quantiles := make([]any, 0, len(payload.Quantiles))
		for _, quantile := range payload.Quantiles {
			quantiles = append(quantiles, map[string]any{
				"quantile": nativeFloat(quantile.Quantile),
				"value":    nativeFloat(quantile.Value),
			})
		}
		out["aggregated_summary"] = map[string]any{
			"quantiles": quantiles,
			"count":     payload.Count,
			"sum":       nativeFloat(payload.Sum),
		}
	case event.AggregatedHistogram:
		buckets := make([]any, 0, len(payload.Buckets))
		for _, bucket := range payload.Buckets {
			buckets = append(buckets, map[string]any{
				"upper_limit": nativeFloat(bucket.UpperLimit),
				"count":       bucket.Count,
			})
		}
		out["aggregated_histogram"] = map[string]any{
			"buckets": buckets,
			"count":   payload.Count,
			"sum":     nativeFloat(payload.Sum),
		}
	}
	return out
}
