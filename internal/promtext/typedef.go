package promtext

import "pipecore/internal/value"

// CoarseKind is the declared kind published by default: an array of closed
// objects with `name`, an optional `timestamp` and open `labels`.
//
// It does not mention `type` or the kind-specific fields, so decoded records
// are not guaranteed to satisfy it. PreciseKind does.
func CoarseKind() value.Kind {
	return value.ArrayOf(value.ObjectOf(map[string]value.Kind{
		"name":      value.BytesKind(),
		"timestamp": value.Or(value.TimestampKind(), value.NullKind()),
		"labels":    value.ObjectOf(nil, true),
	}, false))
}

// PreciseKind is the union of the per-kind record shapes. Fields that only
// some shapes carry are marked nullable.
func PreciseKind() value.Kind {
	common := func() map[string]value.Kind {
		return map[string]value.Kind{
			"type":      value.BytesKind(),
			"name":      value.BytesKind(),
			"labels":    value.ObjectOf(nil, true),
			"timestamp": value.Or(value.IntegerKind(), value.NullKind()),
		}
	}

	scalar := common()
	scalar["value"] = value.FloatKind()

	summary := common()
	summary["quantiles"] = value.ArrayOf(value.ObjectOf(map[string]value.Kind{
		"quantile": value.FloatKind(),
		"value":    value.FloatKind(),
	}, false))
	summary["sum"] = value.FloatKind()
	summary["count"] = value.IntegerKind()

	histogram := common()
	histogram["buckets"] = value.ArrayOf(value.ObjectOf(map[string]value.Kind{
		"bucket": value.FloatKind(),
		"count":  value.IntegerKind(),
	}, false))
	histogram["sum"] = value.FloatKind()
	histogram["count"] = value.IntegerKind()

	return value.ArrayOf(value.ObjectOf(unionShapes(scalar, summary, histogram), false))
}

// unionShapes merges closed object shapes field by field; fields missing from
// any shape become nullable.
func unionShapes(shapes ...map[string]value.Kind) map[string]value.Kind {
	out := make(map[string]value.Kind)
	for _, shape := range shapes {
		for name, kind := range shape {
			out[name] = out[name].Merge(kind)
		}
	}
	for name, kind := range out {
		for _, shape := range shapes {
			if _, ok := shape[name]; !ok {
				out[name] = kind.Merge(value.NullKind())
				break
			}
		}
	}
	return out
}
