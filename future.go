package asidecache

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Future is the pending result of work started on its own goroutine.
// It is resolved exactly once; Await may be called any number of times.
type Future[T any] struct {
	done chan struct{}
	val  T
	ok   bool
	err  error
}

// Go runs fn on a new goroutine. ok is reported as true when fn succeeds.
// A panic in fn resolves the future with the recovered value as an error.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	return spawn(ctx, func(ctx context.Context) (T, bool, error) {
		v, err := fn(ctx)
		return v, err == nil, err
	})
}

// Resolved returns a future already holding v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v, ok: true}
	close(f.done)
	return f
}

func spawn[T any](ctx context.Context, fn func(context.Context) (T, bool, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		var pc panics.Catcher
		pc.Try(func() { f.val, f.ok, f.err = fn(ctx) })
		if r := pc.Recovered(); r != nil {
			var zero T
			f.val, f.ok, f.err = zero, false, r.AsError()
		}
	}()
	return f
}

// Await blocks until the future resolves or ctx ends. When ctx ends first it
// returns ctx.Err(); the work keeps running and a later Await still sees its result.
func (f *Future[T]) Await(ctx context.Context) (T, bool, error) {
	select {
	case <-f.done:
		return f.val, f.ok, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.ok, f.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
