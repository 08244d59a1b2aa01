package queue

// Ring is a fixed-capacity FIFO queue. When full, pushing a new element evicts
// the oldest one. All operations are O(1) and never allocate after New.
// Ring is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

// New creates and returns a new Ring that holds at most capacity elements.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push adds an element to the end of the queue.
// The boolean reports whether the oldest element had to be evicted to make room.
func (q *Ring[T]) Push(item T) (evicted bool) {
	if q.size == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		evicted = true
	}
	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++
	return evicted
}

// Pop removes and returns the front element of the queue.
// The boolean indicates whether an element was dequeued (false if the queue was empty).
func (q *Ring[T]) Pop() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return item, true
}

// Clear drops every queued element.
func (q *Ring[T]) Clear() {
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head = 0
	q.size = 0
}

// Len returns the number of elements in the queue.
func (q *Ring[T]) Len() int {
	return q.size
}

// Cap returns the fixed capacity of the queue.
func (q *Ring[T]) Cap() int {
	return len(q.items)
}

// IsEmpty returns true if the queue is empty.
func (q *Ring[T]) IsEmpty() bool {
	return q.size == 0
}
