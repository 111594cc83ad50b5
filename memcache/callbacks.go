package memcache

import (
	"strconv"
	"sync"

	"github.com/reactormc/memcache/op"
)

// statusCallback adapts a single status-only response (store, cas,
// cat, delete) into a promise[bool] resolution.
type statusCallback struct {
	p *promise[bool]
}

func (c *statusCallback) ReceivedStatus(s op.Status) {
	if s.Cancelled {
		c.p.resolve(false, ErrCancelled)
		return
	}
	c.p.resolve(s.Success, statusError(s.Message))
}
func (c *statusCallback) GotData(string, uint32, uint64, []byte) {}
func (c *statusCallback) GotStat(string, string)                 {}
func (c *statusCallback) Complete()                              {}

// itemCallback adapts a single-key Get/Gets response into a
// promise[*Item]. GotData may fire before ReceivedStatus's terminating
// EventEnd; only ReceivedStatus resolves the promise.
type itemCallback struct {
	p          *promise[*Item]
	transcoder Transcoder
	item       *Item
}

func (c *itemCallback) ReceivedStatus(s op.Status) {
	if s.Cancelled {
		c.p.resolve(nil, ErrCancelled)
		return
	}
	if !s.Success {
		c.p.resolve(nil, statusError(s.Message))
		return
	}
	if c.item == nil {
		c.p.resolve(nil, ErrCacheMiss)
		return
	}
	c.p.resolve(c.item, nil)
}
func (c *itemCallback) GotData(key string, flags uint32, cas uint64, data []byte) {
	c.item = &Item{Key: key, Flags: flags, Cas: cas, Value: append([]byte(nil), data...), transcoder: c.transcoder}
}
func (c *itemCallback) GotStat(string, string) {}
func (c *itemCallback) Complete()              {}

// bulkCallback accumulates every VALUE block of a multi-key Get/Gets
// response into a shared map, safe for concurrent use across the
// several per-node operations a bulk fetch fans out into.
type bulkCallback struct {
	mu         sync.Mutex
	transcoder Transcoder
	items      map[string]*Item
	wg         sync.WaitGroup
	errOnce    sync.Once
	err        error
}

func newBulkCallback(nodeCount int, transcoder Transcoder) *bulkCallback {
	b := &bulkCallback{items: make(map[string]*Item), transcoder: transcoder}
	b.wg.Add(nodeCount)
	return b
}

func (c *bulkCallback) GotData(key string, flags uint32, cas uint64, data []byte) {
	c.mu.Lock()
	c.items[key] = &Item{Key: key, Flags: flags, Cas: cas, Value: append([]byte(nil), data...), transcoder: c.transcoder}
	c.mu.Unlock()
}
func (c *bulkCallback) GotStat(string, string) {}
func (c *bulkCallback) ReceivedStatus(s op.Status) {
	if s.Cancelled || !s.Success {
		c.errOnce.Do(func() {
			if s.Cancelled {
				c.err = ErrCancelled
			} else {
				c.err = statusError(s.Message)
			}
		})
	}
}
func (c *bulkCallback) Complete() { c.wg.Done() }

func (c *bulkCallback) wait() (map[string]*Item, error) {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.err
}

// mutateCallback decodes an incr/decr response's decimal body,
// surfacing -1 on any non-success status per the resolved numeric-
// parsing open question.
type mutateCallback struct {
	p *promise[int64]
}

func (c *mutateCallback) GotData(string, uint32, uint64, []byte) {}
func (c *mutateCallback) GotStat(string, string)                 {}
func (c *mutateCallback) ReceivedStatus(s op.Status) {
	if s.Cancelled {
		c.p.resolve(-1, ErrCancelled)
		return
	}
	if !s.Success {
		c.p.resolve(-1, statusError(s.Message))
		return
	}
	if s.HasNumeric {
		c.p.resolve(s.Numeric, nil)
		return
	}
	n, err := strconv.ParseInt(s.Message, 10, 64)
	if err != nil {
		c.p.resolve(-1, statusError(s.Message))
		return
	}
	c.p.resolve(n, nil)
}
func (c *mutateCallback) Complete() {}
