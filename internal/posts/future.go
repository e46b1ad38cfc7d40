package posts

import (
	"context"
	"fmt"
)

// Future is the pending result of a request served by the Service.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolvedFuture returns a Future that is already complete.
func resolvedFuture[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(val, err)
	return f
}

func (f *Future[T]) resolve(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request finishes or ctx is done. Cancelling ctx does
// not cancel the request itself.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// submit queues fn on the actor goroutine and returns its Future.
func submit[T any](s *Service, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	req := func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.resolve(zero, fmt.Errorf("post service panic: %v", r))
			}
		}()
		val, err := fn()
		f.resolve(val, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		var zero T
		f.resolve(zero, ErrServiceClosed)
		return f
	}
	s.requests <- req
	return f
}
