package memcache

import (
	"time"

	"github.com/reactormc/memcache/metrics"
	"github.com/reactormc/memcache/op"
)

// instrumented wraps a Callback so the wall-clock time from operation
// construction to its terminal status is recorded in the
// gomemcache_operation_duration_seconds histogram, grounded on the
// teacher's metrics.go call sites bracketing each synchronous verb.
type instrumented struct {
	op.Callback
	kind  string
	start time.Time
}

// instrument returns a Callback that records kind's duration/outcome
// before forwarding to cb.
func instrument(kind string, cb op.Callback) op.Callback {
	return &instrumented{Callback: cb, kind: kind, start: time.Now()}
}

func (i *instrumented) ReceivedStatus(s op.Status) {
	metrics.ObserveOperation(i.kind, time.Since(i.start).Seconds(), s.Success && !s.Cancelled)
	i.Callback.ReceivedStatus(s)
}
