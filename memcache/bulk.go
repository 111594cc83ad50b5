package memcache

import (
	"net"

	"github.com/reactormc/memcache/consistenthash"
)

// keyGroup is one node's share of a bulk request's key set.
type keyGroup struct {
	addr net.Addr
	keys []string
}

// groupKeysByNode partitions keys by the node each currently routes
// to, grounded on the teacher's getNodesForKeys helper (map[node][]key
// built from one hr.Get(key) lookup per key), generalized to work over
// an immutable Ring snapshot instead of a locked HashRing.
func groupKeysByNode(ring *consistenthash.Ring, keys []string) []keyGroup {
	index := make(map[string]int, len(ring.All()))
	groups := make([]keyGroup, 0, len(ring.All()))

	for _, key := range keys {
		addr, ok := ring.Primary([]byte(key))
		if !ok {
			continue
		}
		i, seen := index[addr.String()]
		if !seen {
			i = len(groups)
			index[addr.String()] = i
			groups = append(groups, keyGroup{addr: addr})
		}
		groups[i].keys = append(groups[i].keys, key)
	}
	return groups
}
