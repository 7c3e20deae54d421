// Package future implements a single-assignment asynchronous result.
//
// A Future completes exactly once, either with a value or with an error.
// Callbacks registered with OnComplete run on the Executor given at
// registration. Cancelling a pending Future completes it with ErrCancelled
// and drops every registered callback; the work producing the value is not
// interrupted, its result is simply discarded.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/maxiofs/simplestore/pkg/executors"
)

// ErrCancelled is the error of a Future that was cancelled before completing.
var ErrCancelled = errors.New("future: cancelled")

type callback[T any] struct {
	exec executors.Executor
	fn   func(T, error)
}

// Future is the read side of an asynchronous result.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	cancelled bool
	value     T
	err       error
	callbacks []callback[T]
	onCancel  func()
	exec      executors.Executor
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise returns a pending Promise whose callbacks default to running
// inline.
func NewPromise[T any]() *Promise[T] {
	return NewPromiseOn[T](nil)
}

// NewPromiseOn returns a pending Promise whose callbacks default to exec.
func NewPromiseOn[T any](exec executors.Executor) *Promise[T] {
	if exec == nil {
		exec = executors.Direct()
	}
	return &Promise[T]{f: &Future[T]{done: make(chan struct{}), exec: exec}}
}

// Future returns the Future fed by p.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Resolve completes the Future with v. It reports whether this call completed it.
func (p *Promise[T]) Resolve(v T) bool {
	return p.f.complete(v, nil, false)
}

// Reject completes the Future with err.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.f.complete(zero, err, false)
}

// Complete resolves or rejects depending on err.
func (p *Promise[T]) Complete(v T, err error) bool {
	if err != nil {
		return p.Reject(err)
	}
	return p.Resolve(v)
}

// Resolved returns a completed Future holding v.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p.f
}

// Failed returns a completed Future holding err.
func Failed[T any](err error) *Future[T] {
	return FailedOn[T](nil, err)
}

// FailedOn is Failed with callbacks defaulting to exec.
func FailedOn[T any](exec executors.Executor, err error) *Future[T] {
	p := NewPromiseOn[T](exec)
	p.Reject(err)
	return p.f
}

// Go runs fn on exec and returns a Future for its result. A panic in fn
// fails the Future. fn is skipped if the Future was cancelled before exec
// got to it.
func Go[T any](exec executors.Executor, fn func() (T, error)) *Future[T] {
	return GoOn(exec, nil, fn)
}

// GoOn is Go with callbacks defaulting to callbacks instead of running inline.
func GoOn[T any](exec, callbacks executors.Executor, fn func() (T, error)) *Future[T] {
	p := NewPromiseOn[T](callbacks)
	exec.Execute(func() {
		if p.f.IsCancelled() {
			return
		}
		v, err := call(fn)
		p.Complete(v, err)
	})
	return p.f
}

func call[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("future: task panicked: %v", r)
		}
	}()
	return fn()
}

// Then returns a Future holding fn applied to f's value. Errors from f skip fn
// and propagate unchanged. Cancelling the returned Future cancels f.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromiseOn[U](f.exec)
	p.f.onCancel = func() { f.Cancel() }
	f.OnComplete(executors.Direct(), func(v T, err error) {
		if err != nil {
			var zero U
			p.Complete(zero, err)
			return
		}
		p.Complete(call(func() (U, error) { return fn(v) }))
	})
	return p.f
}

// Map is Then for transforms that cannot fail.
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	return Then(f, func(v T) (U, error) { return fn(v), nil })
}

// Done is closed once the Future has completed or been cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result or for ctx to end, whichever comes first.
// Returning because of ctx leaves the Future untouched.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the Future completes.
func (f *Future[T]) Wait() (T, error) {
	return f.Get(context.Background())
}

// OnComplete schedules fn on exec once the Future completes. If it already
// has, fn is scheduled immediately. A nil exec selects the Future's default
// callback executor. Nothing is delivered for a cancelled Future.
func (f *Future[T]) OnComplete(exec executors.Executor, fn func(T, error)) {
	if exec == nil {
		exec = f.exec
	}

	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, callback[T]{exec: exec, fn: fn})
		f.mu.Unlock()
		return
	}
	cancelled, v, err := f.cancelled, f.value, f.err
	f.mu.Unlock()

	if !cancelled {
		exec.Execute(func() { fn(v, err) })
	}
}

// Cancel abandons a pending Future. It reports whether the Future was still
// pending.
func (f *Future[T]) Cancel() bool {
	if !f.complete(*new(T), ErrCancelled, true) {
		return false
	}
	if f.onCancel != nil {
		f.onCancel()
	}
	return true
}

// IsCancelled reports whether Cancel won the race to complete the Future.
func (f *Future[T]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *Future[T]) complete(v T, err error, cancel bool) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.cancelled = cancel
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	if cancel {
		return true
	}
	for _, cb := range callbacks {
		cb := cb
		cb.exec.Execute(func() { cb.fn(v, err) })
	}
	return true
}
