// Package reactor implements the single-goroutine I/O loop that owns
// every node.Node: it routes incoming operations by key through a
// consistenthash.Locator, ticks each node's connection on a fixed
// interval, and fans broadcast operations (flush/version/stats/noop)
// out to every node at once. Grounded on the teacher's
// initNodesProvider/checkNodesHealth background-loop pattern in
// memcached/client.go, generalized from periodic health polling into
// a tight per-tick drive of all per-node state machines.
package reactor

import (
	"net"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/reactormc/memcache/ascii"
	"github.com/reactormc/memcache/consistenthash"
	"github.com/reactormc/memcache/logger"
	"github.com/reactormc/memcache/metrics"
	"github.com/reactormc/memcache/node"
	"github.com/reactormc/memcache/op"
)

// Observer is the external lifecycle hook the spec names; Reactor
// forwards every node's connection events to it.
type Observer interface {
	ConnectionEstablished(addr net.Addr, reconnectCount int)
	ConnectionLost(addr net.Addr)
}

type noopObserver struct{}

func (noopObserver) ConnectionEstablished(net.Addr, int) {}
func (noopObserver) ConnectionLost(net.Addr)             {}

// Config configures a Reactor.
type Config struct {
	TickInterval  time.Duration
	InputQueueCap int
	ReadBufSize   int
	WriteBufSize  int
	DialTimeout   time.Duration
	IOTimeout     time.Duration
	FailureMode   node.FailureMode
	Observer      Observer
	Dial          node.DialFunc
}

const defaultTick = 2 * time.Millisecond

// Reactor is the single-threaded I/O loop. All of its unexported state
// is touched only by the goroutine started in Run; Submit,
// SubmitToLive, Broadcast, Rebuild and Stop are the methods called
// from other goroutines.
type Reactor struct {
	codec   ascii.Codec
	locator *consistenthash.Locator
	cfg     Config

	mu    sync.RWMutex
	nodes map[string]*node.Node

	stop chan struct{}
	done chan struct{}
}

// New creates a Reactor bound to the given Locator and wire codec. It
// does not start ticking until Run is called.
func New(locator *consistenthash.Locator, codec ascii.Codec, cfg Config) *Reactor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTick
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	cfg.Observer = &metricsObserver{inner: cfg.Observer}
	if cfg.Dial == nil {
		cfg.Dial = func(addr net.Addr, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout(addr.Network(), addr.String(), timeout)
		}
	}
	r := &Reactor{
		codec:   codec,
		locator: locator,
		cfg:     cfg,
		nodes:   make(map[string]*node.Node),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, addr := range locator.Snapshot().All() {
		r.addNodeLocked(addr)
	}
	return r
}

func (r *Reactor) addNodeLocked(addr net.Addr) *node.Node {
	n := node.New(addr, r.codec, r.cfg.Dial, node.Config{
		InputQueueCap: r.cfg.InputQueueCap,
		ReadBufSize:   r.cfg.ReadBufSize,
		WriteBufSize:  r.cfg.WriteBufSize,
		DialTimeout:   r.cfg.DialTimeout,
		IOTimeout:     r.cfg.IOTimeout,
		FailureMode:   r.cfg.FailureMode,
		Observer:      r.cfg.Observer,
		Redistribute:  r.redistribute,
	})
	r.nodes[addr.String()] = n
	return n
}

// Run drives the reactor loop until Stop is called. It is meant to be
// started in its own goroutine (the spec's single dedicated I/O
// thread).
func (r *Reactor) Run() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

func (r *Reactor) tick(now time.Time) {
	for _, n := range r.snapshotNodes() {
		n.Tick(now)
		input, write, read := n.QueueDepths()
		metrics.SetQueueDepth(n.Addr.String(), input, write, read)
	}
}

// metricsObserver wraps a caller-supplied Observer so every reactor
// tracks reconnects in Prometheus without the caller needing to do it
// itself.
type metricsObserver struct {
	inner Observer
}

func (o *metricsObserver) ConnectionEstablished(addr net.Addr, reconnectCount int) {
	if reconnectCount > 0 {
		metrics.IncReconnect(addr.String())
	}
	o.inner.ConnectionEstablished(addr, reconnectCount)
}

func (o *metricsObserver) ConnectionLost(addr net.Addr) {
	o.inner.ConnectionLost(addr)
}

// snapshotNodes copies the current node set out from under the lock,
// grounded on the teacher's maps.Keys/maps.Clone use in node_provider.go
// for lock-free iteration over a snapshot.
func (r *Reactor) snapshotNodes() []*node.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Values(r.nodes)
}

// Stop halts the reactor loop, waits for it to exit, then drains every
// node: queued and in-flight operations complete as cancelled and
// further submissions are rejected.
func (r *Reactor) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
	for _, n := range r.snapshotNodes() {
		n.Drain()
	}
}

// Rebuild replaces the node membership: the Locator is rebuilt first,
// then Reactor adds/removes node.Node instances to match. Nodes
// dropped from the ring have their in-flight and queued operations
// cancelled rather than silently discarded.
func (r *Reactor) Rebuild(addrs ...net.Addr) {
	r.locator.Rebuild(addrs...)

	want := make(map[string]net.Addr, len(addrs))
	for _, a := range addrs {
		want[a.String()] = a
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, addr := range want {
		if _, ok := r.nodes[key]; !ok {
			r.addNodeLocked(addr)
		}
	}
	for key, n := range r.nodes {
		if _, ok := want[key]; !ok {
			n.Drain()
			delete(r.nodes, key)
		}
	}
}

// Submit routes op by its first key through the locator and offers it
// to the primary node. If the primary is at capacity or inactive and
// the caller wants a live node, SubmitToLive should be used instead;
// Submit always targets the deterministic primary, matching the
// spec's single-primary routing rule for Get/Store/Delete/etc.
func (r *Reactor) Submit(key string, o *op.Operation) error {
	addr, ok := r.locator.Primary([]byte(key))
	if !ok {
		return node.ErrNotConnected
	}
	n := r.nodeFor(addr)
	if n == nil {
		return node.ErrNotConnected
	}
	o.NodeAddr = addr.String()
	return n.Offer(o)
}

// SubmitToLive behaves like Submit but walks the locator's fallback
// Sequence to find the first active node, implementing the
// FailureMode=Redistribute routing described by the spec: a down
// primary does not fail the operation outright, it tries the next
// ring neighbor. If no candidate is active yet — cold start, or every
// Sequence entry mid-reconnect — it falls back to queuing on the
// primary's input queue via Submit instead of rejecting the operation,
// matching the enqueue-and-return behavior Retry/Cancel modes get for
// free from Offer not requiring an established connection.
func (r *Reactor) SubmitToLive(key string, o *op.Operation) error {
	for addr := range r.locator.Sequence([]byte(key)) {
		n := r.nodeFor(addr)
		if n == nil || !n.Active() {
			continue
		}
		o.NodeAddr = addr.String()
		if err := n.Offer(o); err != nil {
			continue
		}
		return nil
	}
	return r.Submit(key, o)
}

func (r *Reactor) redistribute(o *op.Operation) {
	if err := r.SubmitToLive(firstKey(o), o); err != nil {
		o.CompleteCancelled()
	}
}

func firstKey(o *op.Operation) string {
	if len(o.Keys) == 0 {
		return ""
	}
	return o.Keys[0]
}

func (r *Reactor) nodeFor(addr net.Addr) *node.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[addr.String()]
}

// NodeResult is one node's contribution to a Broadcast: the status its
// operation completed with, plus any STAT lines it emitted. The
// client façade's Version/Stats calls key their result maps by
// Addr, matching the spec's Map<addr,string>/Map<addr,Map<name,val>>
// external interface.
type NodeResult struct {
	Addr   string
	Status op.Status
	Stats  map[string]string
}

// Broadcast builds one operation per current node via factory, waits
// for all of them to complete, and hands done the per-node results
// keyed by address. It returns immediately: the wait happens on its
// own goroutine, preserving the "public calls never block on I/O"
// rule even for fan-out operations. Grounded on the teacher's
// FlushAll, which spun one goroutine per node and waited on a
// sync.WaitGroup before returning.
func (r *Reactor) Broadcast(factory func(addr net.Addr, cb op.Callback) *op.Operation, done func(map[string]NodeResult)) {
	nodes := r.snapshotNodes()
	if len(nodes) == 0 {
		done(map[string]NodeResult{})
		return
	}
	results := make(map[string]NodeResult, len(nodes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(nodes))
	for _, n := range nodes {
		c := &nodeResultCollector{addr: n.Addr, wg: &wg, mu: &mu, results: results}
		o := factory(n.Addr, c)
		o.NodeAddr = n.Addr.String()
		if err := n.Offer(o); err != nil {
			logger.Warnf("reactor: broadcast to %s failed: %s", n.Addr, err)
			c.ReceivedStatus(op.Status{Success: false, Message: err.Error()})
			c.Complete()
		}
	}
	go func() {
		wg.Wait()
		done(results)
	}()
}

// nodeResultCollector is the op.Callback bound to one node's share of a
// Broadcast: it accumulates that node's STAT lines and terminal status,
// then records a NodeResult into the shared map on Complete.
type nodeResultCollector struct {
	addr    net.Addr
	mu      *sync.Mutex
	wg      *sync.WaitGroup
	results map[string]NodeResult

	stats  map[string]string
	status op.Status
}

func (c *nodeResultCollector) GotData(string, uint32, uint64, []byte) {}
func (c *nodeResultCollector) GotStat(name, value string) {
	if c.stats == nil {
		c.stats = make(map[string]string)
	}
	c.stats[name] = value
}
func (c *nodeResultCollector) ReceivedStatus(s op.Status) { c.status = s }
func (c *nodeResultCollector) Complete() {
	c.mu.Lock()
	c.results[c.addr.String()] = NodeResult{Addr: c.addr.String(), Status: c.status, Stats: c.stats}
	c.mu.Unlock()
	c.wg.Done()
}
