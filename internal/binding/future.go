package binding

import (
	"context"
	"sync"

	"github.com/arolang/aro/internal/failure"
)

// Future is the resolvable handle a REQUEST-role action binds when it starts
// I/O without waiting for it. A later statement blocks only when it actually
// reads the handle, not at its textual position.
type Future struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

// NewFuture creates an unresolved handle.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the handle with a value or an error. Only the first
// resolution counts.
func (f *Future) Resolve(v any, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Resolved reports whether the handle has completed.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the handle resolves or the context ends. A context
// deadline surfaces as a Timeout failure.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, failure.New(failure.KindTimeout, "timed out waiting for a pending operation")
		}
		return nil, failure.New(failure.KindCanceled, "execution canceled while waiting for a pending operation")
	}
}

// Settle returns the value behind v, awaiting it when v is an unresolved
// handle. Plain values pass through unchanged.
func Settle(ctx context.Context, v any) (any, error) {
	if f, ok := v.(*Future); ok {
		return f.Await(ctx)
	}
	return v, nil
}
