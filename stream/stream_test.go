package stream

import (
	"bytes"
	"context"
	"slices"
	"testing"
)

func collect[T any](in <-chan T) []T {
	out := []T{}
	for v := range in {
		out = append(out, v)
	}
	return out
}

func TestSliceFilter(t *testing.T) {
	ctx := context.Background()
	result := collect(Filter(ctx, func(n int) bool { return n != 0 }, Slice(ctx, []int{0, 2, 0, 6, 8})))
	if !slices.Equal([]int{2, 6, 8}, result) {
		t.Errorf("Expected [2, 6, 8], got %v", result)
	}
}

func TestNDJSON(t *testing.T) {
	type entry struct {
		N int `json:"n"`
	}
	ctx := context.Background()

	var errs []error
	onErr := func(err error) { errs = append(errs, err) }

	result := collect(NDJSON[entry](ctx, bytes.NewBufferString("{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n"), onErr))
	if len(result) != 3 || result[2].N != 3 {
		t.Errorf("Expected 3 entries, got %v", result)
	}
	if len(errs) != 0 {
		t.Errorf("EOF reported as error: %v", errs)
	}

	result = collect(NDJSON[entry](ctx, bytes.NewBufferString("{\"n\":1}\n{\"n\":"), onErr))
	if len(result) != 1 {
		t.Errorf("Expected the entry before the truncated tail, got %v", result)
	}
	if len(errs) != 1 {
		t.Errorf("Expected 1 error, got %v", errs)
	}
}

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	if got := r.Tail(0); len(got) != 0 {
		t.Errorf("Expected empty ring, got %v", got)
	}
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}
	if !slices.Equal([]int{3, 4, 5}, r.Tail(0)) {
		t.Errorf("Expected [3, 4, 5], got %v", r.Tail(0))
	}
	if !slices.Equal([]int{4, 5}, r.Tail(2)) {
		t.Errorf("Expected [4, 5], got %v", r.Tail(2))
	}
	if !slices.Equal([]int{3, 4, 5}, r.Tail(10)) {
		t.Errorf("Expected [3, 4, 5], got %v", r.Tail(10))
	}
	if r.Len() != 3 {
		t.Errorf("Expected len 3, got %d", r.Len())
	}
	seen := []int{}
	r.Each(func(i int) bool {
		seen = append(seen, i)
		return i < 4
	})
	if !slices.Equal([]int{3, 4}, seen) {
		t.Errorf("Expected [3, 4], got %v", seen)
	}

	small := NewRing[int](0)
	small.Add(1)
	small.Add(2)
	if !slices.Equal([]int{2}, small.Tail(0)) {
		t.Errorf("Expected [2], got %v", small.Tail(0))
	}
}
