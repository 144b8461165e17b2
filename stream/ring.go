package stream

import (
	"sync"
)

// Ring keeps the last n values added to it, oldest first.
// It is safe for concurrent use.
type Ring[T any] struct {
	mu     sync.Mutex
	values []T
	next   int
	count  int
}

// NewRing returns a ring holding up to n values. n is at least 1.
func NewRing[T any](n int) *Ring[T] {
	if n < 1 {
		n = 1
	}
	return &Ring[T]{values: make([]T, n)}
}

// Add appends v, evicting the oldest value if the ring is full.
func (r *Ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[r.next] = v
	r.next = (r.next + 1) % len(r.values)
	if r.count < len(r.values) {
		r.count++
	}
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// at is the i'th oldest value. r.mu must be held.
func (r *Ring[T]) at(i int) T {
	size := len(r.values)
	return r.values[(r.next+size-r.count+i)%size]
}

// Tail returns up to the n newest values, oldest first.
// n <= 0 returns everything.
func (r *Ring[T]) Tail(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.at(i))
	}
	return out
}

// Each calls fn on every value, oldest first, until fn returns false.
func (r *Ring[T]) Each(fn func(T) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < r.count; i++ {
		if !fn(r.at(i)) {
			return
		}
	}
}
