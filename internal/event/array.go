package event

import (
	"iter"
	"unsafe"
)

// Array is a homogeneous, ordered batch of events of one variant.
//
// The first element lives in an inline slot so the dominant single-element
// batch needs no backing slice; further elements spill into a heap slice.
// The zero value is an empty batch.
type Array[T Event] struct {
	inline T
	spill  []T
	length int
}

// LogArray is a batch of log events.
type LogArray = Array[*LogEvent]

// MetricArray is a batch of metrics.
type MetricArray = Array[*Metric]

// Single builds a one-element batch stored inline.
// Params: item first and only element.
// Returns: batch without spilled storage.
func Single[T Event](item T) Array[T] {
	return Array[T]{inline: item, length: 1}
}

// NewArray builds a batch from items, preserving order.
// Params: items ordered elements.
// Returns: batch; the first element is stored inline.
func NewArray[T Event](items ...T) Array[T] {
	var out Array[T]
	if len(items) > 1 {
		out.spill = make([]T, 0, len(items)-1)
	}
	for _, item := range items {
		out.Push(item)
	}
	return out
}

// Push appends item to the batch.
func (a *Array[T]) Push(item T) {
	if a.length == 0 {
		a.inline = item
		a.length = 1
		return
	}
	a.spill = append(a.spill, item)
	a.length++
}

// Len returns the number of elements.
func (a *Array[T]) Len() int {
	return a.length
}

// Spilled reports whether elements live outside the inline slot.
func (a *Array[T]) Spilled() bool {
	return cap(a.spill) > 0
}

// At returns the element at position i. It panics when i is out of range.
func (a *Array[T]) At(i int) T {
	if i < 0 || i >= a.length {
		panic("event: array index out of range")
	}
	if i == 0 {
		return a.inline
	}
	return a.spill[i-1]
}

// All iterates over the batch without consuming it.
// Params: none.
// Returns: index/element sequence in order.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < a.length; i++ {
			if !yield(i, a.At(i)) {
				return
			}
		}
	}
}

func (a *Array[T]) container() {}

// IntoEvents moves the elements out of the batch and yields them as events.
// The receiver is left empty; each element is released as it is yielded.
func (a *Array[T]) IntoEvents() iter.Seq[Event] {
	taken := *a
	*a = Array[T]{}

	next := 0
	return func(yield func(Event) bool) {
		for next < taken.length {
			item := taken.release(next)
			next++
			if !yield(item) {
				return
			}
		}
	}
}

// release returns the element at i and clears its slot.
func (a *Array[T]) release(i int) T {
	var zero T
	if i == 0 {
		item := a.inline
		a.inline = zero
		return item
	}
	item := a.spill[i-1]
	a.spill[i-1] = zero
	return item
}

// AllocatedBytes sums element heap bytes and the spilled slice capacity.
// The inline slot itself is not counted.
func (a *Array[T]) AllocatedBytes() int {
	var zero T
	total := cap(a.spill) * int(unsafe.Sizeof(zero))
	for _, item := range a.All() {
		total += item.AllocatedBytes()
	}
	return total
}
