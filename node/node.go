// Package node implements the per-server connection state machine: the
// input/write/read queues, socket buffers, and reconnect backoff
// described by the spec's MemcachedNode. Node itself is single-
// threaded — every method except Offer is called only from the
// reactor goroutine that owns it — which is what lets it hold raw
// slices for writeQueue/readQueue instead of mutex-guarded state,
// mirroring the spec's "reactor thread as an actor" design note.
package node

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/reactormc/memcache/ascii"
	"github.com/reactormc/memcache/logger"
	"github.com/reactormc/memcache/op"
	"github.com/reactormc/memcache/queue"
)

// FailureMode controls what happens to WRITE_QUEUED operations when a
// node's connection is lost.
type FailureMode int

const (
	// Retry replays WRITE_QUEUED operations verbatim once the
	// connection is reestablished. This is the default.
	Retry FailureMode = iota
	// Cancel completes WRITE_QUEUED operations with a connection-lost
	// status instead of waiting for reconnect.
	Cancel
	// Redistribute hands WRITE_QUEUED operations to the Redistribute
	// callback (typically: re-route via NodeLocator.Sequence) instead
	// of queueing them for replay on this node.
	Redistribute
)

var (
	ErrConnectionLost = errors.New("node: connection lost")
	ErrNotConnected   = errors.New("node: not connected")
)

// DialFunc opens a connection to addr; it is injected so tests can
// substitute an in-memory pipe instead of a real socket.
type DialFunc func(addr net.Addr, timeout time.Duration) (net.Conn, error)

// Observer receives connection lifecycle notifications, matching the
// spec's external Observer interface.
type Observer interface {
	ConnectionEstablished(addr net.Addr, reconnectCount int)
	ConnectionLost(addr net.Addr)
}

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	defaultReadBufSize  = 16 * 1024
	defaultWriteBufSize = 16 * 1024
	defaultDialTimeout  = 500 * time.Millisecond
	defaultIOTimeout    = 20 * time.Millisecond

	maxOpsPerTick = 256
)

// Node is one upstream server: its connection and the three op queues
// described by the spec (input_queue, write_queue, read_queue).
type Node struct {
	Addr  net.Addr
	codec ascii.Codec
	dial  DialFunc

	input *queue.Queue[*op.Operation]

	writeQueue []*op.Operation
	writeOff   int // bytes of writeQueue[0].Bytes already written

	readQueue []*op.Operation
	parser    ascii.ConnParser

	conn net.Conn

	active atomic.Bool

	reconnectAttempts int
	nextReconnectAt   time.Time

	failureMode  FailureMode
	redistribute func(*op.Operation)
	observer     Observer

	readBufSize  int
	writeBufSize int
	dialTimeout  time.Duration
	ioTimeout    time.Duration
}

// Config bundles the tunables a Node is constructed with.
type Config struct {
	InputQueueCap int
	ReadBufSize   int
	WriteBufSize  int
	DialTimeout   time.Duration
	IOTimeout     time.Duration
	FailureMode   FailureMode
	Redistribute  func(*op.Operation)
	Observer      Observer
}

// New creates a disconnected Node for addr. It dials lazily on its
// first Tick.
func New(addr net.Addr, codec ascii.Codec, dial DialFunc, cfg Config) *Node {
	if cfg.InputQueueCap <= 0 {
		cfg.InputQueueCap = 1024
	}
	if cfg.ReadBufSize <= 0 {
		cfg.ReadBufSize = defaultReadBufSize
	}
	if cfg.WriteBufSize <= 0 {
		cfg.WriteBufSize = defaultWriteBufSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}
	return &Node{
		Addr:         addr,
		codec:        codec,
		dial:         dial,
		input:        queue.New[*op.Operation](cfg.InputQueueCap),
		parser:       codec.NewParser(),
		failureMode:  cfg.FailureMode,
		redistribute: cfg.Redistribute,
		observer:     cfg.Observer,
		readBufSize:  cfg.ReadBufSize,
		writeBufSize: cfg.WriteBufSize,
		dialTimeout:  cfg.DialTimeout,
		ioTimeout:    cfg.IOTimeout,
	}
}

// Offer enqueues an operation from any goroutine. It never blocks:
// queue.ErrFull is returned immediately if the node is overloaded.
func (n *Node) Offer(o *op.Operation) error {
	return n.input.Offer(o)
}

// Active reports whether the node currently has a live connection.
func (n *Node) Active() bool {
	return n.active.Load()
}

// QueueDepths reports the three queue lengths, for metrics/tests.
func (n *Node) QueueDepths() (input, write, read int) {
	return n.input.Len(), len(n.writeQueue), len(n.readQueue)
}

// Drain permanently retires the node: its input queue is closed so no
// further operations are accepted, everything still queued or
// in-flight is cancelled, and its connection is closed. Used when a
// membership change removes this node from the ring.
func (n *Node) Drain() {
	n.input.Close()
	n.input.Drain(maxOpsPerTick*64, func(o *op.Operation) bool {
		o.CompleteCancelled()
		return true
	})
	for _, o := range n.writeQueue {
		o.CompleteCancelled()
	}
	n.writeQueue = nil
	for _, o := range n.readQueue {
		o.CompleteCancelled()
	}
	n.readQueue = nil
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
	n.active.Store(false)
}

// Tick performs one reactor step for this node: connect if due, drain
// input onto the write queue, write pending bytes, and read/dispatch
// whatever the server has sent back.
func (n *Node) Tick(now time.Time) {
	if n.conn == nil {
		n.tryReconnect(now)
		return
	}

	n.drainInput()
	n.writePending(now)
	if n.conn != nil {
		n.readPending(now)
	}
}

func (n *Node) drainInput() {
	n.input.Drain(maxOpsPerTick, func(o *op.Operation) bool {
		n.writeQueue = append(n.writeQueue, o)
		return true
	})
}

func (n *Node) tryReconnect(now time.Time) {
	if now.Before(n.nextReconnectAt) {
		return
	}
	conn, err := n.dial(n.Addr, n.dialTimeout)
	if err != nil {
		n.scheduleBackoff(now)
		logger.Warnf("node: connect to %s failed: %s", n.Addr, err)
		return
	}
	n.conn = conn
	n.parser = n.codec.NewParser()
	n.writeOff = 0
	n.active.Store(true)
	count := n.reconnectAttempts
	n.reconnectAttempts = 0
	n.nextReconnectAt = time.Time{}
	n.requeueRetries()
	if n.observer != nil {
		n.observer.ConnectionEstablished(n.Addr, count)
	}
}

// requeueRetries moves every RETRY-state operation on the write queue
// back to WRITE_QUEUED, the spec's "RETRY --reconnect--> WRITE_QUEUED"
// transition, called once a new connection is established.
func (n *Node) requeueRetries() {
	for _, o := range n.writeQueue {
		if o.State() == op.Retry {
			o.RequeueForRetry()
		}
	}
}

func (n *Node) scheduleBackoff(now time.Time) {
	n.reconnectAttempts++
	backoff := minBackoff << uint(n.reconnectAttempts-1)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	n.nextReconnectAt = now.Add(backoff)
}

func (n *Node) writePending(now time.Time) {
	iterations := 0
	for len(n.writeQueue) > 0 && iterations < maxOpsPerTick {
		iterations++
		head := n.writeQueue[0]

		if head.Cancelled() && head.State() == op.WriteQueued {
			head.CompleteCancelled()
			n.popWrite()
			continue
		}

		if head.State() == op.WriteQueued {
			head.BeginWrite()
		}

		if n.writeOff >= len(head.Bytes) {
			head.FinishWrite()
			n.readQueue = append(n.readQueue, head)
			n.popWrite()
			continue
		}

		_ = n.conn.SetWriteDeadline(now.Add(n.ioTimeout))
		written, err := n.conn.Write(head.Bytes[n.writeOff:])
		n.writeOff += written
		if err != nil {
			if isTimeout(err) {
				return
			}
			n.onConnectionLost(now)
			return
		}
		if n.writeOff >= len(head.Bytes) {
			head.FinishWrite()
			n.readQueue = append(n.readQueue, head)
			n.popWrite()
		} else {
			// Partial write; resume same operation next tick.
			return
		}
	}
}

func (n *Node) popWrite() {
	n.writeQueue = n.writeQueue[1:]
	n.writeOff = 0
}

func (n *Node) readPending(now time.Time) {
	_ = n.conn.SetReadDeadline(now.Add(n.ioTimeout))
	buf := make([]byte, n.readBufSize)
	read, err := n.conn.Read(buf)
	if read > 0 {
		n.parser.Feed(buf[:read])
		n.dispatchEvents()
	}
	if err != nil && !isTimeout(err) {
		n.onConnectionLost(now)
	}
}

func (n *Node) dispatchEvents() {
	for len(n.readQueue) > 0 {
		head := n.readQueue[0]
		ev, ok, err := n.parser.Next(head.Kind)
		if err != nil {
			logger.Errorf("node: protocol error from %s: %s", n.Addr, err)
			n.failReadQueueOnProtocolError()
			return
		}
		if !ok {
			return
		}

		discard := head.Cancelled()

		switch ev.Kind {
		case ascii.EventData:
			if !discard {
				head.Callback.GotData(ev.Key, ev.Flags, ev.Cas, ev.Data)
			}
			if !n.codec.TerminatesWithEnd(head.Kind) {
				n.finishHead(discard, op.Status{Success: true})
			}
		case ascii.EventStat:
			if !discard {
				head.Callback.GotStat(ev.StatName, ev.StatValue)
			}
		case ascii.EventStatus:
			// A bare status line on a get/gets/stats stream only
			// happens for an error; success always ends with EventEnd
			// instead, so either way this is terminal.
			n.finishHead(discard, op.Status{Success: ev.Success, Message: ev.Message, Numeric: ev.Numeric, HasNumeric: ev.HasNumeric})
		case ascii.EventEnd:
			n.finishHead(discard, op.Status{Success: true})
		}
	}
}

func (n *Node) finishHead(discard bool, status op.Status) {
	head := n.readQueue[0]
	n.readQueue = n.readQueue[1:]
	if discard {
		head.CompleteCancelled()
		return
	}
	head.CompleteWith(status)
}

// failReadQueueOnProtocolError drops the connection per the spec's
// recoverable-error rule: an unparsable line means the whole stream is
// no longer trustworthy, so every in-flight read is lost along with
// the socket.
func (n *Node) failReadQueueOnProtocolError() {
	n.onConnectionLost(time.Now())
}

func (n *Node) onConnectionLost(now time.Time) {
	if n.conn != nil {
		_ = n.conn.Close()
	}
	n.conn = nil
	n.active.Store(false)
	n.parser = n.codec.NewParser()

	for _, o := range n.readQueue {
		o.CompleteCancelled()
	}
	n.readQueue = nil

	pending := n.writeQueue
	n.writeQueue = nil
	n.writeOff = 0

	for _, o := range pending {
		switch o.State() {
		case op.Writing:
			// Partially written; the server may or may not have seen
			// it. Unsafe to retry.
			o.CompleteCancelled()
		case op.WriteQueued:
			n.handleWriteQueuedOnLoss(o)
		default:
			o.CompleteCancelled()
		}
	}

	if n.observer != nil {
		n.observer.ConnectionLost(n.Addr)
	}
	n.scheduleBackoff(now)
}

func (n *Node) handleWriteQueuedOnLoss(o *op.Operation) {
	switch n.failureMode {
	case Cancel:
		o.CompleteCancelled()
	case Redistribute:
		if n.redistribute != nil {
			n.redistribute(o)
		} else {
			o.CompleteCancelled()
		}
	default: // Retry
		o.MarkRetry()
		n.writeQueue = append(n.writeQueue, o)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
