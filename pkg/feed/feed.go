// Package feed holds the bounded, newest-first lists the dashboard renders.
package feed

// List keeps at most limit items, newest at index 0. It is not safe for
// concurrent use; the owner of the view serializes access.
type List[T any] struct {
	items []T
	limit int
}

func New[T any](limit int) *List[T] {
	if limit <= 0 {
		limit = 1
	}
	return &List[T]{items: make([]T, 0, limit), limit: limit}
}

// Push prepends item and drops the oldest entries beyond the limit.
func (l *List[T]) Push(item T) {
	if len(l.items) < l.limit {
		l.items = append(l.items, item)
	}
	copy(l.items[1:], l.items[:len(l.items)-1])
	l.items[0] = item
}

// Replace sets the contents to items (already newest first), truncated.
func (l *List[T]) Replace(items []T) {
	l.items = l.items[:0]
	for i := 0; i < len(items) && i < l.limit; i++ {
		l.items = append(l.items, items[i])
	}
}

// Backfill appends older history after the items already present.
func (l *List[T]) Backfill(older []T) {
	for i := 0; i < len(older) && len(l.items) < l.limit; i++ {
		l.items = append(l.items, older[i])
	}
}

// Items returns a copy, newest first.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List[T]) At(i int) T { return l.items[i] }

func (l *List[T]) Len() int { return len(l.items) }

func (l *List[T]) Cap() int { return l.limit }
