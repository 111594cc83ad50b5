// Package op defines the unit of work dispatched through the reactor:
// Operation, its state machine, and the Callback capability set used to
// deliver results. Grounded on the teacher's per-verb request builders
// in memcached.Client (Store/Get/Delete/Delta/Append), generalized from
// "build a request and block for one response" into "build a request,
// hand it to the reactor, resolve a callback asynchronously".
package op

import (
	"errors"
	"sync/atomic"
)

// Kind identifies the memcached verb an Operation carries.
type Kind int

const (
	Get Kind = iota
	Gets
	Store
	Cat
	CAS
	Delete
	Mutate
	Flush
	Version
	Stats
	Noop
)

// StoreMode distinguishes set/add/replace for a Store operation.
type StoreMode int

const (
	Set StoreMode = iota
	Add
	Replace
)

// CatMode distinguishes append/prepend for a Cat operation.
type CatMode int

const (
	Append CatMode = iota
	Prepend
)

// MutateMode distinguishes incr/decr for a Mutate operation.
type MutateMode int

const (
	Incr MutateMode = iota
	Decr
)

// State is a node in the Operation state machine described by the
// spec: WRITE_QUEUED -> WRITING -> READING -> COMPLETE, with RETRY and
// CANCELLED as the two exceptional transitions.
type State int32

const (
	WriteQueued State = iota
	Writing
	Reading
	Complete
	Cancelled
	Retry
)

func (s State) String() string {
	switch s {
	case WriteQueued:
		return "WRITE_QUEUED"
	case Writing:
		return "WRITING"
	case Reading:
		return "READING"
	case Complete:
		return "COMPLETE"
	case Cancelled:
		return "CANCELLED"
	case Retry:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrInvalidKey names the invalid-key error kind. The client
	// façade does not return it: it rejects bad keys synchronously
	// with memcache.ErrMalformedKey.
	ErrInvalidKey = errors.New("op: invalid key")
	// ErrAlreadyComplete guards against a double Complete() delivery.
	ErrAlreadyComplete = errors.New("op: operation already complete")
)

// Status carries the result of a completed operation: whether it
// succeeded and, for protocol errors, the verbatim server message.
type Status struct {
	Success bool
	Message string
	// Cancelled is true if this status replaces whatever status would
	// otherwise have been delivered, per the cancellation contract.
	Cancelled bool
	// Numeric carries a mutate response's new value directly, set by
	// both the ASCII and binary codecs so the resolved numeric-parsing
	// open question holds for either protocol: the caller never
	// re-parses Message to get it. HasNumeric distinguishes "absent"
	// from a genuine zero.
	Numeric    int64
	HasNumeric bool
}

// Callback is the capability set an Operation's creator supplies. The
// contract: zero or more GotData/GotStat calls, then exactly one
// ReceivedStatus, then exactly one Complete — unless the operation is
// cancelled, in which case ReceivedStatus carries a cancelled Status
// and no further data events are delivered.
type Callback interface {
	ReceivedStatus(Status)
	GotData(key string, flags uint32, cas uint64, data []byte)
	GotStat(name, value string)
	Complete()
}

// Operation is one request/response unit dispatched to a single node.
type Operation struct {
	Kind Kind
	Keys []string

	// Bytes is the pre-encoded wire representation of this command,
	// built by the Factory's Encoder at construction time.
	Bytes []byte

	Callback Callback

	state  atomic.Int32
	cancel atomic.Bool

	// NodeAddr is the address this operation was last dispatched to,
	// set by the reactor/node when it is placed on a write queue.
	NodeAddr string

	// statusDelivered guards against delivering ReceivedStatus twice
	// (e.g. once from a protocol parse and once from a cancellation
	// race landing after the real response already arrived).
	statusDelivered   atomic.Bool
	completeDelivered atomic.Bool
}

// New creates an Operation in state WRITE_QUEUED.
func New(kind Kind, keys []string, bytes []byte, cb Callback) *Operation {
	o := &Operation{Kind: kind, Keys: keys, Bytes: bytes, Callback: cb}
	o.state.Store(int32(WriteQueued))
	return o
}

// State returns the operation's current state.
func (o *Operation) State() State {
	return State(o.state.Load())
}

// setState moves the operation to s unconditionally. Callers are
// responsible for only requesting legal transitions; Operation does
// not itself validate the state graph since the reactor, node, and
// client all share the same single-writer-at-a-time discipline over a
// given operation's lifetime.
func (o *Operation) setState(s State) {
	o.state.Store(int32(s))
}

// BeginWrite transitions WRITE_QUEUED -> WRITING. It does not check
// cancellation; callers must check Cancelled() before writing any
// bytes.
func (o *Operation) BeginWrite() {
	o.setState(Writing)
}

// FinishWrite transitions WRITING -> READING.
func (o *Operation) FinishWrite() {
	o.setState(Reading)
}

// MarkRetry transitions to RETRY; the node will move it back to
// WRITE_QUEUED once the connection is reestablished.
func (o *Operation) MarkRetry() {
	o.setState(Retry)
}

// RequeueForRetry transitions RETRY -> WRITE_QUEUED after reconnect.
func (o *Operation) RequeueForRetry() {
	o.setState(WriteQueued)
}

// Cancel marks the operation cancelled. It is cooperative: it does not
// interrupt an in-flight write, but it prevents a write from starting
// if one hasn't yet, and it ensures the eventual response (if any) is
// discarded rather than delivered to Callback.
func (o *Operation) Cancel() {
	o.cancel.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (o *Operation) Cancelled() bool {
	return o.cancel.Load()
}

// CanStartWrite reports whether the operation is still eligible to
// have its bytes written: not cancelled and still WRITE_QUEUED.
func (o *Operation) CanStartWrite() bool {
	return !o.Cancelled() && o.State() == WriteQueued
}

// CanRetry reports whether the operation may be replayed verbatim
// after a reconnect: only WRITE_QUEUED operations are safe to retry,
// per the spec's retry policy (an operation once WRITING or READING
// cannot safely establish whether the server saw it).
func (o *Operation) CanRetry() bool {
	return o.State() == WriteQueued || o.State() == Retry
}

// deliverStatus delivers ReceivedStatus at most once.
func (o *Operation) deliverStatus(s Status) {
	if o.statusDelivered.CompareAndSwap(false, true) {
		o.Callback.ReceivedStatus(s)
	}
}

// CompleteWith delivers the final status (if not already delivered)
// and then Complete, exactly once, honoring the at-most-one-status
// guarantee.
func (o *Operation) CompleteWith(s Status) {
	o.deliverStatus(s)
	o.finish()
}

// CompleteCancelled delivers a cancelled status and completes the
// operation. It is idempotent: calling it twice (e.g. once from the
// caller cancelling the future and once from connection-loss cleanup)
// only delivers one terminal callback pair.
func (o *Operation) CompleteCancelled() {
	o.setState(Cancelled)
	o.deliverStatus(Status{Success: false, Cancelled: true, Message: "cancelled"})
	o.finish()
}

func (o *Operation) finish() {
	if o.completeDelivered.CompareAndSwap(false, true) {
		if o.State() != Cancelled {
			o.setState(Complete)
		}
		o.Callback.Complete()
	}
}
