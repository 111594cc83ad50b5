package memcache

import (
	"net"
	"strconv"

	"github.com/reactormc/memcache/op"
	"github.com/reactormc/memcache/reactor"
)

func newFuture[T any](underlying *op.Operation) (Future[T], *promise[T]) {
	p := newPromise[T]()
	p.underlying = underlying
	return Future[T]{p: p}, p
}

// Set stores data unconditionally, the ASCII "set" verb.
func (c *Client) Set(key string, exptimeSeconds uint32, v any) (Future[bool], error) {
	return c.store("set", op.Set, key, exptimeSeconds, v)
}

// Add stores data only if key does not already exist.
func (c *Client) Add(key string, exptimeSeconds uint32, v any) (Future[bool], error) {
	return c.store("add", op.Add, key, exptimeSeconds, v)
}

// Replace stores data only if key already exists.
func (c *Client) Replace(key string, exptimeSeconds uint32, v any) (Future[bool], error) {
	return c.store("replace", op.Replace, key, exptimeSeconds, v)
}

func (c *Client) store(kind string, mode op.StoreMode, key string, exptimeSeconds uint32, v any) (Future[bool], error) {
	if err := validateKey(key); err != nil {
		return Future[bool]{}, err
	}
	flags, data, err := c.cfg.transcoder.Encode(v)
	if err != nil {
		return Future[bool]{}, err
	}
	future, p := newFuture[bool](nil)
	cb := instrument(kind, &statusCallback{p: p})
	o := c.factory.Store(mode, key, flags, exptimeSeconds, data, cb)
	p.underlying = o
	if err := c.submit(key, o); err != nil {
		return Future[bool]{}, err
	}
	return future, nil
}

// Cas performs a compare-and-swap store: it succeeds only if casID
// still matches the server's current value for key.
func (c *Client) Cas(key string, exptimeSeconds uint32, v any, casID uint64) (Future[bool], error) {
	if err := validateKey(key); err != nil {
		return Future[bool]{}, err
	}
	flags, data, err := c.cfg.transcoder.Encode(v)
	if err != nil {
		return Future[bool]{}, err
	}
	future, p := newFuture[bool](nil)
	cb := instrument("cas", &statusCallback{p: p})
	o := c.factory.Cas(key, casID, flags, exptimeSeconds, data, cb)
	p.underlying = o
	if err := c.submit(key, o); err != nil {
		return Future[bool]{}, err
	}
	return future, nil
}

// Append appends data to an existing value.
func (c *Client) Append(key string, data []byte) (Future[bool], error) {
	return c.cat("append", op.Append, key, data)
}

// Prepend prepends data to an existing value.
func (c *Client) Prepend(key string, data []byte) (Future[bool], error) {
	return c.cat("prepend", op.Prepend, key, data)
}

func (c *Client) cat(kind string, mode op.CatMode, key string, data []byte) (Future[bool], error) {
	if err := validateKey(key); err != nil {
		return Future[bool]{}, err
	}
	future, p := newFuture[bool](nil)
	cb := instrument(kind, &statusCallback{p: p})
	o := c.factory.Cat(mode, key, data, cb)
	p.underlying = o
	if err := c.submit(key, o); err != nil {
		return Future[bool]{}, err
	}
	return future, nil
}

// Get fetches a single key.
func (c *Client) Get(key string) (Future[*Item], error) {
	return c.get("get", key, false)
}

// Gets fetches a single key along with its CAS identifier.
func (c *Client) Gets(key string) (Future[*Item], error) {
	return c.get("gets", key, true)
}

// GetInto fetches key, blocks up to the operation timeout, and decodes
// its value into dst via the configured Transcoder — the synchronous,
// typed counterpart to Get's raw *Item future.
func (c *Client) GetInto(key string, dst any) error {
	f, err := c.Get(key)
	if err != nil {
		return err
	}
	item, err := f.GetTimeout(c.blockingTimeout())
	if err != nil {
		return err
	}
	return item.Decode(dst)
}

func (c *Client) get(kind, key string, withCas bool) (Future[*Item], error) {
	if err := validateKey(key); err != nil {
		return Future[*Item]{}, err
	}
	future, p := newFuture[*Item](nil)
	cb := instrument(kind, &itemCallback{p: p, transcoder: c.cfg.transcoder})
	var o *op.Operation
	if withCas {
		o = c.factory.Gets([]string{key}, cb)
	} else {
		o = c.factory.Get([]string{key}, cb)
	}
	p.underlying = o
	if err := c.submit(key, o); err != nil {
		return Future[*Item]{}, err
	}
	return future, nil
}

// GetBulk fetches many keys at once, grouping them by the node each
// routes to so each server sees exactly one multi-key GET, grounded on
// the teacher's getNodesForKeys helper.
func (c *Client) GetBulk(keys []string) (Future[map[string]*Item], error) {
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return Future[map[string]*Item]{}, err
		}
	}
	groups := groupKeysByNode(c.locator.Snapshot(), keys)
	if len(groups) == 0 {
		future, p := newFuture[map[string]*Item](nil)
		p.resolve(map[string]*Item{}, nil)
		return future, nil
	}

	bulk := newBulkCallback(len(groups), c.cfg.transcoder)
	for _, group := range groups {
		cb := instrument("get_bulk", bulk)
		o := c.factory.Get(group.keys, cb)
		if err := c.submit(group.keys[0], o); err != nil {
			cb.ReceivedStatus(op.Status{Success: false, Message: err.Error()})
			cb.Complete()
		}
	}

	future, p := newFuture[map[string]*Item](nil)
	go func() {
		items, err := bulk.wait()
		p.resolve(items, err)
	}()
	return future, nil
}

// Delete removes a key.
func (c *Client) Delete(key string) (Future[bool], error) {
	if err := validateKey(key); err != nil {
		return Future[bool]{}, err
	}
	future, p := newFuture[bool](nil)
	cb := instrument("delete", &statusCallback{p: p})
	o := c.factory.Delete(key, cb)
	p.underlying = o
	if err := c.submit(key, o); err != nil {
		return Future[bool]{}, err
	}
	return future, nil
}

// Incr increments key's numeric value by delta. If the key does not
// exist, it is seeded with initial and the increment retried once,
// resolving the default-value race described by spec.md §4.7/§8
// scenario 3.
func (c *Client) Incr(key string, delta, initial uint64, exptimeSeconds uint32) (Future[int64], error) {
	return c.mutateWithDefault("incr", op.Incr, key, delta, initial, exptimeSeconds)
}

// Decr decrements key's numeric value by delta, with the same
// default-value race handling as Incr.
func (c *Client) Decr(key string, delta, initial uint64, exptimeSeconds uint32) (Future[int64], error) {
	return c.mutateWithDefault("decr", op.Decr, key, delta, initial, exptimeSeconds)
}

func (c *Client) mutateWithDefault(kind string, mode op.MutateMode, key string, delta, initial uint64, exptimeSeconds uint32) (Future[int64], error) {
	if err := validateKey(key); err != nil {
		return Future[int64]{}, err
	}
	future, p := newFuture[int64](nil)
	go c.runMutateWithDefault(kind, mode, key, delta, initial, exptimeSeconds, p)
	return future, nil
}

func (c *Client) runMutateWithDefault(kind string, mode op.MutateMode, key string, delta, initial uint64, exptimeSeconds uint32, p *promise[int64]) {
	n, err := c.mutateOnce(kind, mode, key, delta)
	if err == nil {
		p.resolve(n, nil)
		return
	}
	if err != ErrCacheMiss {
		p.resolve(-1, err)
		return
	}

	addFuture, err := c.Add(key, exptimeSeconds, strconv.FormatUint(initial, 10))
	if err != nil {
		p.resolve(-1, err)
		return
	}
	ctx, cancel := c.timeoutCtx()
	added, err := addFuture.Get(ctx)
	cancel()
	if err != nil && err != ErrNotStored {
		p.resolve(-1, err)
		return
	}
	if added {
		p.resolve(int64(initial), nil)
		return
	}

	// Lost the race to another writer between NOT_FOUND and Add;
	// someone else created the key, so retry the mutate once.
	n, err = c.mutateOnce(kind, mode, key, delta)
	p.resolve(n, err)
}

func (c *Client) mutateOnce(kind string, mode op.MutateMode, key string, delta uint64) (int64, error) {
	future, p := newFuture[int64](nil)
	cb := instrument(kind, &mutateCallback{p: p})
	o := c.factory.Mutate(mode, key, delta, cb)
	p.underlying = o
	if err := c.submit(key, o); err != nil {
		return -1, err
	}
	ctx, cancel := c.timeoutCtx()
	defer cancel()
	return future.Get(ctx)
}

// Flush invalidates every item on every node, delaySeconds from now
// (0 for immediately). It succeeds only if every node reports OK.
func (c *Client) Flush(delaySeconds int64) (Future[bool], error) {
	future, p := newFuture[bool](nil)
	c.reactor.Broadcast(func(addr net.Addr, cb op.Callback) *op.Operation {
		return c.factory.Flush(delaySeconds, instrument("flush", cb))
	}, func(results map[string]reactor.NodeResult) {
		p.resolve(allSucceeded(results), nil)
	})
	return future, nil
}

// Version queries every node's server version string, matching the
// spec's Map<addr,string> external interface.
func (c *Client) Version() (Future[map[string]string], error) {
	future, p := newFuture[map[string]string](nil)
	c.reactor.Broadcast(func(addr net.Addr, cb op.Callback) *op.Operation {
		return c.factory.Version(instrument("version", cb))
	}, func(results map[string]reactor.NodeResult) {
		versions := make(map[string]string, len(results))
		for addr, r := range results {
			versions[addr] = r.Status.Message
		}
		p.resolve(versions, nil)
	})
	return future, nil
}

// Stats queries every node's stats; arg selects a stats sub-report
// (e.g. "items"), or "" for the default report. Matches the spec's
// Map<addr,Map<name,val>> external interface: each node's STAT lines
// are kept separate rather than merged across nodes.
func (c *Client) Stats(arg string) (Future[map[string]map[string]string], error) {
	future, p := newFuture[map[string]map[string]string](nil)
	c.reactor.Broadcast(func(addr net.Addr, cb op.Callback) *op.Operation {
		return c.factory.Stats(arg, instrument("stats", cb))
	}, func(results map[string]reactor.NodeResult) {
		byAddr := make(map[string]map[string]string, len(results))
		for addr, r := range results {
			stats := r.Stats
			if stats == nil {
				stats = map[string]string{}
			}
			byAddr[addr] = stats
		}
		p.resolve(byAddr, nil)
	})
	return future, nil
}

// Noop submits a round-trip liveness check to every node.
func (c *Client) Noop() (Future[bool], error) {
	future, p := newFuture[bool](nil)
	c.reactor.Broadcast(func(addr net.Addr, cb op.Callback) *op.Operation {
		return c.factory.Noop(instrument("noop", cb))
	}, func(results map[string]reactor.NodeResult) {
		p.resolve(allSucceeded(results), nil)
	})
	return future, nil
}

// allSucceeded reports whether every node in a Broadcast result set
// completed with a successful, non-cancelled status.
func allSucceeded(results map[string]reactor.NodeResult) bool {
	for _, r := range results {
		if !r.Status.Success || r.Status.Cancelled {
			return false
		}
	}
	return true
}

