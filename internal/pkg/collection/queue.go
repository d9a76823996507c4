// Package collection provides utility data structures.
package collection

// Queue is a FIFO queue backed by a slice. Popped space is reclaimed once
// the head outgrows the live elements.
type Queue[T any] struct {
	data []T
	head int
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(v T) {
	q.data = append(q.data, v)
}

// Pop removes and returns the front element, or the zero value when the
// queue is empty.
func (q *Queue[T]) Pop() T {
	if q.head >= len(q.data) {
		var zero T
		return zero
	}

	v := q.data[q.head]
	var zero T
	q.data[q.head] = zero
	q.head++
	if q.head > len(q.data)/2 {
		q.data = append(q.data[:0], q.data[q.head:]...)
		q.head = 0
	}
	return v
}

// Peek returns the front element without removing it, or the zero value
// when the queue is empty.
func (q *Queue[T]) Peek() T {
	if q.head >= len(q.data) {
		var zero T
		return zero
	}
	return q.data[q.head]
}

func (q *Queue[T]) Len() int {
	return len(q.data) - q.head
}

// Iter drains the queue in FIFO order, stopping early when yield returns
// false. Elements pushed during iteration are yielded too.
func (q *Queue[T]) Iter(yield func(T) bool) {
	for q.Len() > 0 {
		if !yield(q.Pop()) {
			break
		}
	}
}

// ToSlice returns all elements in the queue as a slice without modifying
// the queue.
func (q *Queue[T]) ToSlice() []T {
	out := make([]T, q.Len())
	copy(out, q.data[q.head:])
	return out
}
