package memcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reactormc/memcache/op"
)

// promise is the shared completion state behind a Future[T]: only the
// first resolve call takes effect, guarded by once, per design note
// §9's idempotent-completion requirement.
type promise[T any] struct {
	once      sync.Once
	done      chan struct{}
	value     T
	err       error
	cancelled atomic.Bool
	underlying *op.Operation
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{done: make(chan struct{})}
}

func (p *promise[T]) resolve(v T, err error) {
	p.once.Do(func() {
		p.value = v
		p.err = err
		close(p.done)
	})
}

// Future is the handle an application holds for an in-flight
// operation: Get blocks (optionally with a context deadline) for the
// result, Cancel asks the underlying Operation to stop delivering a
// real response.
type Future[T any] struct {
	p *promise[T]
}

// Get blocks until the operation completes, ctx is done, or the
// operation was already cancelled, whichever happens first.
func (f Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.p.done:
		return f.p.value, f.p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetTimeout is a convenience over Get using a fixed duration,
// matching the teacher's blocking Store/Get/Delete call shape. It
// returns ErrTimeout if d elapses before the future resolves.
func (f Future[T]) GetTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	v, err := f.Get(ctx)
	if err == context.DeadlineExceeded {
		return v, ErrTimeout
	}
	return v, err
}

// Cancel marks the underlying operation cancelled. If it hasn't
// started writing yet, no bytes are ever sent; if it's in flight, its
// eventual response is discarded and the future resolves with
// ErrCancelled instead.
func (f Future[T]) Cancel() {
	if f.p.cancelled.CompareAndSwap(false, true) {
		f.p.underlying.Cancel()
	}
}

// Done reports whether the future has already resolved.
func (f Future[T]) Done() bool {
	select {
	case <-f.p.done:
		return true
	default:
		return false
	}
}
