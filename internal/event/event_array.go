package event

import (
	"fmt"
	"iter"
)

type arrayVariant uint8

const (
	variantLogs arrayVariant = iota
	variantMetrics
)

// EventArray is a batch holding either log events or metrics, never both.
// The zero value is an empty log batch.
type EventArray struct {
	variant arrayVariant
	logs    LogArray
	metrics MetricArray
}

// FromLogs wraps a log batch.
func FromLogs(logs LogArray) EventArray {
	return EventArray{variant: variantLogs, logs: logs}
}

// FromMetrics wraps a metric batch.
func FromMetrics(metrics MetricArray) EventArray {
	return EventArray{variant: variantMetrics, metrics: metrics}
}

// FromEvent builds a one-element batch of the variant matching e.
// Params: e event to wrap; nil yields an empty log batch.
// Returns: batch holding e in its inline slot.
func FromEvent(e Event) EventArray {
	switch typed := e.(type) {
	case nil:
		return EventArray{}
	case *LogEvent:
		return FromLogs(Single(typed))
	case *Metric:
		return FromMetrics(Single(typed))
	default:
		panic(fmt.Sprintf("event: unsupported event type %T", e))
	}
}

// Logs returns the log batch.
// Params: none.
// Returns: batch pointer and true when the array holds logs.
func (a *EventArray) Logs() (*LogArray, bool) {
	if a.variant != variantLogs {
		return nil, false
	}
	return &a.logs, true
}

// Metrics returns the metric batch.
// Params: none.
// Returns: batch pointer and true when the array holds metrics.
func (a *EventArray) Metrics() (*MetricArray, bool) {
	if a.variant != variantMetrics {
		return nil, false
	}
	return &a.metrics, true
}

// Len returns the number of events in the populated variant.
func (a *EventArray) Len() int {
	if a.variant == variantMetrics {
		return a.metrics.Len()
	}
	return a.logs.Len()
}

// Type returns "logs" or "metrics".
func (a *EventArray) Type() string {
	if a.variant == variantMetrics {
		return "metrics"
	}
	return "logs"
}

func (a *EventArray) container() {}

// AllocatedBytes delegates to the populated variant.
func (a *EventArray) AllocatedBytes() int {
	if a.variant == variantMetrics {
		return a.metrics.AllocatedBytes()
	}
	return a.logs.AllocatedBytes()
}

// IntoEvents drains the populated variant, re-wrapping each element as an Event.
// The receiver is left as an empty batch of the same variant.
func (a *EventArray) IntoEvents() iter.Seq[Event] {
	if a.variant == variantMetrics {
		return a.metrics.IntoEvents()
	}
	return a.logs.IntoEvents()
}
