package scanner

import "github.com/gammazero/deque"

// bounded keeps the newest limit entries, newest first.
type bounded[T any] struct {
	q     deque.Deque[T]
	limit int
}

func newBounded[T any](limit int) *bounded[T] {
	return &bounded[T]{limit: limit}
}

// push adds v as the newest entry and evicts the oldest beyond the limit.
func (b *bounded[T]) push(v T) {
	b.q.PushFront(v)
	for b.q.Len() > b.limit {
		b.q.PopBack()
	}
}

func (b *bounded[T]) len() int { return b.q.Len() }

func (b *bounded[T]) clear() { b.q.Clear() }

// items returns a copy, newest first.
func (b *bounded[T]) items() []T {
	out := make([]T, b.q.Len())
	for i := range out {
		out[i] = b.q.At(i)
	}
	return out
}
