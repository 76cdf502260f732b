package assets

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDependencyFailed wraps the error of an upstream future in Then.
	ErrDependencyFailed = errors.New("dependency failed")
	// ErrPanicked is the error of a future whose function panicked.
	ErrPanicked = errors.New("load panicked")
)

// Result is the outcome of an asynchronous operation: either Value or Err.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Future is a write-once Result filled by a background goroutine.
type Future[T any] struct {
	done chan struct{}
	res  Result[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.res = Result[T]{Value: v, Err: err}
	close(f.done)
}

// Go runs fn on a new goroutine and returns its future result. A panic in
// fn fails the future with ErrPanicked instead of crashing the process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				v, err = zero, fmt.Errorf("%w: %v", ErrPanicked, r)
			}
			f.resolve(v, err)
		}()
		v, err = fn(ctx)
	}()
	return f
}

// Resolved returns an already completed future.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Poll returns the result without blocking; ok is false while pending.
func (f *Future[T]) Poll() (res Result[T], ok bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return Result[T]{}, false
	}
}

// Wait blocks until the result is available or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.Value, f.res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then starts fn with the value of f once f succeeds. If f fails, fn never
// runs and the returned future fails with ErrDependencyFailed.
func Then[T, U any](ctx context.Context, f *Future[T], fn func(context.Context, T) (U, error)) *Future[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		v, err := f.Wait(ctx)
		if err != nil {
			var zero U
			return zero, fmt.Errorf("%w: %w", ErrDependencyFailed, err)
		}
		return fn(ctx, v)
	})
}
