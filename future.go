package finder

import (
	"context"

	"github.com/pkg/errors"
)

// Future is the result of an operation started by Go.
type Future[R any] struct {
	done  chan struct{}
	value R
	err   error
}

// Go runs fn on a new goroutine. fn gets a context that keeps ctx's values
// but not its cancellation, so once started the operation runs to completion.
func Go[R any](ctx context.Context, fn func(ctx context.Context) (R, error)) *Future[R] {
	f := &Future[R]{done: make(chan struct{})}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = errors.Errorf("panic: %v", r)
			}
		}()
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Await waits for the result. Cancelling ctx stops the wait only.
func (f *Future[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, errors.WithStack(ctx.Err())
	}
}

// Done is closed once the result is available.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}
