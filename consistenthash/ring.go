package consistenthash

import (
	"fmt"
	"net"
	"sort"
	"sync/atomic"
)

const (
	// ketamaPointsPerNode mirrors libmemcached/spymemcached's 160
	// points per server (40 MD5 calls * 4 words per digest).
	ketamaPointsPerNode = 160
	ketamaCallsPerNode  = ketamaPointsPerNode / 4
)

// LocatorMode selects the ring construction strategy.
type LocatorMode string

const (
	// Ketama places each node at 160 ring points derived from MD5,
	// guaranteeing minimal key reassignment when a node is added or
	// removed.
	Ketama LocatorMode = "ketama"
	// Array assigns keys to nodes by hash(key) mod len(nodes); any
	// membership change reshuffles most keys.
	Array LocatorMode = "array"
)

type point struct {
	hash uint32
	node net.Addr
}

// Ring is an immutable key->node mapping snapshot. A new Ring is built
// and swapped in wholesale on membership changes (see Locator); it is
// never mutated in place, so the reactor goroutine can read it
// concurrently with a rebuild happening on another goroutine.
type Ring struct {
	mode   LocatorMode
	nodes  []net.Addr
	points []point // sorted by hash, used when mode == Ketama
	hash   Func
}

// Build constructs a Ring over nodes using mode. hashFn is used for
// array-mode bucketing and is ignored in Ketama mode, which always
// uses the MD5-based KetamaWords per the wire protocol.
func Build(mode LocatorMode, hashFn Func, nodes ...net.Addr) *Ring {
	r := &Ring{mode: mode, nodes: append([]net.Addr(nil), nodes...), hash: hashFn}
	if mode == Ketama {
		r.buildKetama()
	}
	return r
}

func (r *Ring) buildKetama() {
	points := make([]point, 0, len(r.nodes)*ketamaPointsPerNode)
	for _, n := range r.nodes {
		key := n.String()
		for i := 0; i < ketamaCallsPerNode; i++ {
			words := KetamaWords([]byte(fmt.Sprintf("%s-%d", key, i)))
			for _, w := range words {
				points = append(points, point{hash: w, node: n})
			}
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].hash < points[j].hash })
	r.points = points
}

// Primary returns the node a key routes to: in Ketama mode, the first
// ring point whose hash is >= hash(key), wrapping around to the first
// point if none is. In Array mode, nodes[hash(key) % len(nodes)].
func (r *Ring) Primary(key []byte) (net.Addr, bool) {
	if len(r.nodes) == 0 {
		return nil, false
	}
	if r.mode == Array {
		idx := int(r.hash(key) % uint32(len(r.nodes)))
		return r.nodes[idx], true
	}
	if len(r.points) == 0 {
		return nil, false
	}
	h := KetamaWords(key)[0]
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].node, true
}

// Sequence returns the primary node for key followed by each other
// distinct node encountered walking clockwise around the ring, used to
// find a live fallback when the primary is down. The caller should
// stop consuming once it finds a live node; Sequence always yields
// every distinct node exactly once.
func (r *Ring) Sequence(key []byte) func(yield func(net.Addr) bool) {
	return func(yield func(net.Addr) bool) {
		if len(r.nodes) == 0 {
			return
		}
		if r.mode == Array {
			start := int(r.hash(key) % uint32(len(r.nodes)))
			for i := 0; i < len(r.nodes); i++ {
				if !yield(r.nodes[(start+i)%len(r.nodes)]) {
					return
				}
			}
			return
		}
		if len(r.points) == 0 {
			return
		}
		h := KetamaWords(key)[0]
		start := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
		seen := make(map[string]struct{}, len(r.nodes))
		for i := 0; i < len(r.points); i++ {
			p := r.points[(start+i)%len(r.points)]
			addr := p.node.String()
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			if !yield(p.node) {
				return
			}
		}
	}
}

// All returns every node in the ring, in construction order.
func (r *Ring) All() []net.Addr {
	return append([]net.Addr(nil), r.nodes...)
}

// ReadonlyCopy returns r itself: Ring is already immutable, so a
// "copy" for a read-only caller is just a shared reference. The method
// exists to satisfy the NodeLocator contract from the spec explicitly.
func (r *Ring) ReadonlyCopy() *Ring {
	return r
}

// Locator owns the current Ring and swaps in a freshly built one on
// membership changes without ever mutating a Ring a reader might be
// using concurrently.
type Locator struct {
	mode LocatorMode
	hash Func
	cur  atomic.Pointer[Ring]
}

// NewLocator builds a Locator seeded with nodes.
func NewLocator(mode LocatorMode, hash Func, nodes ...net.Addr) *Locator {
	if hash == nil {
		hash = FNV1A32
	}
	l := &Locator{mode: mode, hash: hash}
	l.cur.Store(Build(mode, hash, nodes...))
	return l
}

// Snapshot returns the current immutable Ring.
func (l *Locator) Snapshot() *Ring {
	return l.cur.Load()
}

// Rebuild atomically replaces the ring with one built from nodes.
func (l *Locator) Rebuild(nodes ...net.Addr) {
	l.cur.Store(Build(l.mode, l.hash, nodes...))
}

// Primary is a convenience that snapshots then routes.
func (l *Locator) Primary(key []byte) (net.Addr, bool) {
	return l.Snapshot().Primary(key)
}

// Sequence is a convenience that snapshots then walks the ring.
func (l *Locator) Sequence(key []byte) func(yield func(net.Addr) bool) {
	return l.Snapshot().Sequence(key)
}
