// Package event holds the pipeline's event model: the two event variants, the
// EventContainer capability, and the homogeneous batches that move events
// between pipeline stages.
//
// Ownership is the only synchronization mechanism. A container is owned by
// exactly one stage at a time; IntoEvents empties the container it is called
// on, so once a batch has been handed over it cannot be drained twice.
package event

import "iter"

// ByteSizer reports heap memory held by a value.
// Params: none.
// Returns: allocated bytes, excluding inline storage and fixed headers.
type ByteSizer interface {
	AllocatedBytes() int
}

// EventContainer is implemented by every type that holds events: single log
// events, single metrics, log batches, metric batches, and EventArray.
//
// The set is closed; the unexported method keeps implementations inside this
// package.
type EventContainer interface {
	ByteSizer
	// IntoEvents consumes the container and returns its events in source order.
	// The sequence yields every event exactly once; ranging over it again resumes
	// after the last yielded event.
	IntoEvents() iter.Seq[Event]
	container()
}

// Event is one unit of telemetry: a *LogEvent or a *Metric.
type Event interface {
	EventContainer
	event()
}

// once returns a one-shot sequence over a single event.
func once(e Event) iter.Seq[Event] {
	done := false
	return func(yield func(Event) bool) {
		if done {
			return
		}
		done = true
		yield(e)
	}
}

// Collect drains container into a slice.
// Params: container to consume.
// Returns: events in source order.
func Collect(container EventContainer) []Event {
	var events []Event
	for e := range container.IntoEvents() {
		events = append(events, e)
	}
	return events
}
