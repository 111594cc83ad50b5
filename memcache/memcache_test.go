package memcache

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reactormc/memcache/node"
)

// fakeMemcached is a minimal ASCII-protocol server good enough to drive
// the client through real wire round trips: set/add/cas/get/gets/incr/
// decr/delete, with an atomic per-key CAS counter. Grounded on the
// loopback TCP harnesses in node_test.go/reactor_test.go, extended into
// a stateful server since the client package's own scenarios (CAS
// races, incr-with-default) need actual server-side semantics rather
// than a single scripted reply.
type fakeMemcached struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]*fakeItem

	casSeq uint64

	// addHook lets a test inject a delay or observe the race window
	// between a failed incr and the client's fallback Add.
	addHook func(key string)
}

type fakeItem struct {
	flags uint32
	value []byte
	cas   uint64
}

func startFakeMemcached(t *testing.T) *fakeMemcached {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeMemcached{ln: ln, data: make(map[string]*fakeItem)}
	go s.serve()
	return s
}

func (s *fakeMemcached) addr() net.Addr { return s.ln.Addr() }

func (s *fakeMemcached) close() { _ = s.ln.Close() }

func (s *fakeMemcached) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeMemcached) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		verb := fields[0]

		switch verb {
		case "set", "add", "replace", "cas":
			if !s.handleStore(conn, r, verb, fields) {
				return
			}
		case "get", "gets":
			if !s.handleGet(conn, fields[1:], verb == "gets") {
				return
			}
		case "delete":
			s.handleDelete(conn, fields[1])
		case "incr", "decr":
			s.handleMutate(conn, verb, fields[1], fields[2])
		case "version":
			fmt.Fprintf(conn, "VERSION 1.6.0\r\n")
		case "flush_all":
			s.mu.Lock()
			s.data = make(map[string]*fakeItem)
			s.mu.Unlock()
			fmt.Fprintf(conn, "OK\r\n")
		case "stats":
			fmt.Fprintf(conn, "STAT curr_items %d\r\nEND\r\n", len(s.data))
		default:
			fmt.Fprintf(conn, "ERROR\r\n")
		}
	}
}

func (s *fakeMemcached) handleStore(conn net.Conn, r *bufio.Reader, verb string, fields []string) bool {
	key := fields[1]
	flags, _ := strconv.ParseUint(fields[2], 10, 32)
	length, _ := strconv.Atoi(fields[4])
	var reqCas uint64
	if verb == "cas" {
		reqCas, _ = strconv.ParseUint(fields[5], 10, 64)
	}

	body := make([]byte, length+2)
	if _, err := readFullBuf(r, body); err != nil {
		return false
	}
	data := body[:length]

	if s.addHook != nil {
		s.addHook(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[key]
	switch verb {
	case "add":
		if ok {
			fmt.Fprintf(conn, "NOT_STORED\r\n")
			return true
		}
	case "replace":
		if !ok {
			fmt.Fprintf(conn, "NOT_STORED\r\n")
			return true
		}
	case "cas":
		if !ok {
			fmt.Fprintf(conn, "NOT_FOUND\r\n")
			return true
		}
		if existing.cas != reqCas {
			fmt.Fprintf(conn, "EXISTS\r\n")
			return true
		}
	}
	s.casSeq++
	s.data[key] = &fakeItem{flags: uint32(flags), value: append([]byte(nil), data...), cas: s.casSeq}
	fmt.Fprintf(conn, "STORED\r\n")
	return true
}

func (s *fakeMemcached) handleGet(conn net.Conn, keys []string, withCas bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		item, ok := s.data[k]
		if !ok {
			continue
		}
		if withCas {
			fmt.Fprintf(conn, "VALUE %s %d %d %d\r\n", k, item.flags, len(item.value), item.cas)
		} else {
			fmt.Fprintf(conn, "VALUE %s %d %d\r\n", k, item.flags, len(item.value))
		}
		conn.Write(item.value)
		fmt.Fprintf(conn, "\r\n")
	}
	fmt.Fprintf(conn, "END\r\n")
	return true
}

func (s *fakeMemcached) handleDelete(conn net.Conn, key string) {
	s.mu.Lock()
	_, ok := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()
	if ok {
		fmt.Fprintf(conn, "DELETED\r\n")
	} else {
		fmt.Fprintf(conn, "NOT_FOUND\r\n")
	}
}

func (s *fakeMemcached) handleMutate(conn net.Conn, verb, key, byStr string) {
	by, _ := strconv.ParseUint(byStr, 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.data[key]
	if !ok {
		fmt.Fprintf(conn, "NOT_FOUND\r\n")
		return
	}
	n, _ := strconv.ParseUint(string(item.value), 10, 64)
	if verb == "incr" {
		n += by
	} else if n >= by {
		n -= by
	} else {
		n = 0
	}
	item.value = []byte(strconv.FormatUint(n, 10))
	s.casSeq++
	item.cas = s.casSeq
	fmt.Fprintf(conn, "%d\r\n", n)
}

func readFullBuf(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func newTestClient(t *testing.T, servers ...net.Addr) *Client {
	t.Helper()
	addrs := make([]string, len(servers))
	for i, s := range servers {
		addrs[i] = s.String()
	}
	c, err := New(addrs, WithOperationTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

func TestClientSetThenGetRoundTrips(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setFuture, err := c.Set("foo", 0, []byte("bar"))
	require.NoError(t, err)
	ok, err := setFuture.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	getFuture, err := c.Get("foo")
	require.NoError(t, err)
	item, err := getFuture.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), item.Value)
}

func TestClientGetMissReturnsCacheMiss(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future, err := c.Get("missing")
	require.NoError(t, err)
	_, err = future.Get(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)
}

// TestClientCasFailsOnStaleGeneration exercises the compare-and-swap
// race: a Gets-then-Cas sequence where a third party mutates the key in
// between must report EXISTS, not STORED.
func TestClientCasFailsOnStaleGeneration(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setFuture, err := c.Set("k", 0, []byte("1"))
	require.NoError(t, err)
	_, err = setFuture.Get(ctx)
	require.NoError(t, err)

	getsFuture, err := c.Gets("k")
	require.NoError(t, err)
	item, err := getsFuture.Get(ctx)
	require.NoError(t, err)
	staleCas := item.Cas

	// Someone else updates the key, advancing its generation.
	otherSet, err := c.Set("k", 0, []byte("2"))
	require.NoError(t, err)
	_, err = otherSet.Get(ctx)
	require.NoError(t, err)

	casFuture, err := c.Cas("k", 0, []byte("3"), staleCas)
	require.NoError(t, err)
	ok, err := casFuture.Get(ctx)
	require.ErrorIs(t, err, ErrCASConflict)
	require.False(t, ok)
}

// TestClientIncrSeedsDefaultOnMiss covers the Incr-with-initial race
// described by the default-value scenario: a miss seeds the key via
// Add and returns initial rather than erroring.
func TestClientIncrSeedsDefaultOnMiss(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future, err := c.Incr("counter", 5, 10, 0)
	require.NoError(t, err)
	n, err := future.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 10, n)

	future2, err := c.Incr("counter", 5, 10, 0)
	require.NoError(t, err)
	n2, err := future2.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 15, n2)
}

// TestClientIncrRetriesAfterLosingAddRace covers the case where a
// competing writer creates the key between Incr's NOT_FOUND and the
// fallback Add: Add reports NOT_STORED and the client must retry the
// mutate instead of surfacing a spurious error.
func TestClientIncrRetriesAfterLosingAddRace(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	var once sync.Once
	srv.addHook = func(key string) {
		if key != "race" {
			return
		}
		once.Do(func() {
			srv.mu.Lock()
			srv.casSeq++
			srv.data[key] = &fakeItem{value: []byte("7"), cas: srv.casSeq}
			srv.mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future, err := c.Incr("race", 1, 100, 0)
	require.NoError(t, err)
	n, err := future.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 8, n)
}

func TestClientDeleteRemovesKey(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setFuture, err := c.Set("gone", 0, []byte("x"))
	require.NoError(t, err)
	_, err = setFuture.Get(ctx)
	require.NoError(t, err)

	delFuture, err := c.Delete("gone")
	require.NoError(t, err)
	ok, err := delFuture.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	getFuture, err := c.Get("gone")
	require.NoError(t, err)
	_, err = getFuture.Get(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestClientGetBulkGroupsByNode(t *testing.T) {
	srvA := startFakeMemcached(t)
	defer srvA.close()
	srvB := startFakeMemcached(t)
	defer srvB.close()
	c := newTestClient(t, srvA.addr(), srvB.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	keys := []string{"a", "b", "c", "d", "e", "f"}
	for _, k := range keys {
		f, err := c.Set(k, 0, []byte(k+"-val"))
		require.NoError(t, err)
		_, err = f.Get(ctx)
		require.NoError(t, err)
	}

	future, err := c.GetBulk(keys)
	require.NoError(t, err)
	items, err := future.Get(ctx)
	require.NoError(t, err)
	require.Len(t, items, len(keys))
	for _, k := range keys {
		require.Equal(t, k+"-val", string(items[k].Value))
	}
}

func TestClientVersionReturnsPerNodeMap(t *testing.T) {
	srvA := startFakeMemcached(t)
	defer srvA.close()
	srvB := startFakeMemcached(t)
	defer srvB.close()
	c := newTestClient(t, srvA.addr(), srvB.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future, err := c.Version()
	require.NoError(t, err)
	versions, err := future.Get(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	for _, v := range versions {
		require.Equal(t, "1.6.0", v)
	}
}

func TestClientSetSyncGetSyncRoundTrip(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ok, err := c.SetSync("foo", 0, []byte("bar"))
	require.NoError(t, err)
	require.True(t, ok)

	item, err := c.GetSync("foo")
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), item.Value)
}

func TestClientGetIntoDecodesThroughConfiguredTranscoder(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setFuture, err := c.Set("greeting", 0, []byte("hello"))
	require.NoError(t, err)
	_, err = setFuture.Get(ctx)
	require.NoError(t, err)

	var s string
	require.NoError(t, c.GetInto("greeting", &s))
	require.Equal(t, "hello", s)

	getFuture, err := c.Get("greeting")
	require.NoError(t, err)
	item, err := getFuture.Get(ctx)
	require.NoError(t, err)
	var viaDecode []byte
	require.NoError(t, item.Decode(&viaDecode))
	require.Equal(t, []byte("hello"), viaDecode)
}

func TestClientGetIntoMissReturnsCacheMiss(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()
	c := newTestClient(t, srv.addr())

	var s string
	err := c.GetInto("absent", &s)
	require.ErrorIs(t, err, ErrCacheMiss)
}

// TestClientRedistributeQueuesBeforeFirstConnect covers submit() with
// FailureMode=Redistribute at cold start: no node has dialed yet, so
// reactor.SubmitToLive's Sequence walk finds nothing Active and must
// fall back to queuing on the primary rather than failing synchronously.
func TestClientRedistributeQueuesBeforeFirstConnect(t *testing.T) {
	srv := startFakeMemcached(t)
	defer srv.close()

	addrs := []string{srv.addr().String()}
	c, err := New(addrs, WithOperationTimeout(2*time.Second), WithFailureMode(node.Redistribute))
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	setFuture, err := c.Set("cold", 0, []byte("start"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := setFuture.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClientFlushSucceedsAcrossAllNodes(t *testing.T) {
	srvA := startFakeMemcached(t)
	defer srvA.close()
	srvB := startFakeMemcached(t)
	defer srvB.close()
	c := newTestClient(t, srvA.addr(), srvB.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future, err := c.Flush(0)
	require.NoError(t, err)
	ok, err := future.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
