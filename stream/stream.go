// Package stream has the channel pipeline helpers used to replay
// and reload samples, and a bounded ring for the location history.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Slice emits each element of in until it is exhausted or ctx is done.
func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// NDJSON decodes newline-delimited JSON values from in.
// The stream ends at EOF or at the first decode error, which is passed
// to onErr if it is not nil. A decoder cannot resume after a syntax error.
func NDJSON[T any](ctx context.Context, in io.Reader, onErr func(error)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		dec := json.NewDecoder(in)
		for {
			var element T
			if err := dec.Decode(&element); err != nil {
				if !errors.Is(err, io.EOF) && onErr != nil {
					onErr(err)
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// Filter passes on the elements for which predicate is true.
func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if !predicate(element) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}
