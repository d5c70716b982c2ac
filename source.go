package asidecache

import (
	"context"
	"iter"
	"maps"
	"slices"
)

type sourceKind uint8

const (
	sourceNone sourceKind = iota
	sourceValue
	sourceFuture
	sourceFunc
)

// Source is where a stream item's value comes from when the key misses.
// The zero Source resolves to no value.
type Source[V any] struct {
	kind   sourceKind
	value  V
	future *Future[V]
	fn     Producer[V]
}

// Value is a source holding a known value.
func Value[V any](v V) Source[V] { return Source[V]{kind: sourceValue, value: v} }

// Await is a source backed by an already started future.
func Await[V any](f *Future[V]) Source[V] { return Source[V]{kind: sourceFuture, future: f} }

// Func is a source whose producer runs only if the key misses.
func Func[V any](fn Producer[V]) Source[V] { return Source[V]{kind: sourceFunc, fn: fn} }

// Resolve produces the value. ok is false for an absent value.
func (s Source[V]) Resolve(ctx context.Context) (V, bool, error) {
	var zero V
	switch s.kind {
	case sourceValue:
		return s.value, !absent(s.value), nil
	case sourceFuture:
		if s.future == nil {
			return zero, false, nil
		}
		v, ok, err := s.future.Await(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		return v, !absent(v), nil
	case sourceFunc:
		if s.fn == nil {
			return zero, false, nil
		}
		v, err := s.fn(ctx)
		if err != nil {
			return zero, false, err
		}
		return v, !absent(v), nil
	}
	return zero, false, nil
}

// Item is one key of a stream together with the source of its value.
type Item[V any] struct {
	Key    string
	Source Source[V]
}

// Items yields one Value item per map entry in ascending key order.
func Items[V any](m map[string]V) iter.Seq[Item[V]] {
	return func(yield func(Item[V]) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield(Item[V]{Key: k, Source: Value(m[k])}) {
				return
			}
		}
	}
}

// Pairs yields items in the given order.
func Pairs[V any](items ...Item[V]) iter.Seq[Item[V]] {
	return slices.Values(items)
}

// FromChannel yields items received from ch until it is closed or ctx ends.
func FromChannel[V any](ctx context.Context, ch <-chan Item[V]) iter.Seq[Item[V]] {
	return func(yield func(Item[V]) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case it, ok := <-ch:
				if !ok || !yield(it) {
					return
				}
			}
		}
	}
}
