// Package memcache is the client façade: it validates keys, encodes
// values through a Transcoder, builds op.Operations via op.Factory,
// submits them to a reactor.Reactor, and hands back a Future[T] that
// resolves once the operation completes. Grounded on the teacher's
// memcached.Client (struct layout, functional options, InitFromEnv),
// generalized from synchronous pooled calls into async futures over
// the new reactor core.
package memcache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/reactormc/memcache/ascii"
	"github.com/reactormc/memcache/consistenthash"
	"github.com/reactormc/memcache/logger"
	"github.com/reactormc/memcache/node"
	"github.com/reactormc/memcache/op"
	"github.com/reactormc/memcache/reactor"
	"github.com/reactormc/memcache/utils"
)

const maxKeyLength = 250

// Item is one key's wire payload: the raw flags+bytes pair, plus the
// Transcoder the client fetched it with so Decode can hand back a
// typed value symmetric with the Encode half Set/Add/Replace/Cas
// apply on the way in.
type Item struct {
	Key   string
	Flags uint32
	Cas   uint64
	Value []byte

	transcoder Transcoder
}

// Decode unmarshals the item's value into dst via the Transcoder it
// was fetched with (ByteTranscoder by default, or whatever
// WithTranscoder configured).
func (i *Item) Decode(dst any) error {
	if i == nil {
		return ErrCacheMiss
	}
	return i.transcoder.Decode(i.Flags, i.Value, dst)
}

// Observer re-exports reactor.Observer so callers configuring
// WithObserver don't need to import the reactor package directly.
type Observer = reactor.Observer

// Client is the asynchronous memcached client façade. It is safe for
// concurrent use by multiple goroutines.
type Client struct {
	cfg     config
	locator *consistenthash.Locator
	reactor *reactor.Reactor
	factory *op.Factory
	codec   ascii.Codec
	started atomic.Bool
}

type envConfig struct {
	HeadlessServiceAddress string   `envconfig:"MEMCACHED_HEADLESS_SERVICE_ADDRESS"`
	Servers                []string `envconfig:"MEMCACHED_SERVERS"`
	MemcachedPort          int      `envconfig:"MEMCACHED_PORT" default:"11211"`
}

// New builds a Client over a fixed, static list of server addresses.
func New(servers []string, opts ...Option) (*Client, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	addrs := make([]net.Addr, 0, len(servers))
	for _, s := range servers {
		addr, err := utils.AddrRepr(s)
		if err != nil {
			return nil, fmt.Errorf("memcache: invalid address %q: %w", s, err)
		}
		addrs = append(addrs, addr)
	}
	return newClient(addrs, opts...)
}

// InitFromEnv builds a Client from MEMCACHED_SERVERS or
// MEMCACHED_HEADLESS_SERVICE_ADDRESS/MEMCACHED_PORT, matching the
// teacher's InitFromEnv contract.
func InitFromEnv(opts ...Option) (*Client, error) {
	var ec envConfig
	if err := envconfig.Process("", &ec); err != nil {
		return nil, fmt.Errorf("%s: config error: %w", libPrefix, err)
	}
	servers, err := resolveServers(net.LookupHost, ec)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, ErrNotConfigured
	}
	return New(servers, opts...)
}

func resolveServers(lookup func(string) ([]string, error), cfg envConfig) ([]string, error) {
	if cfg.HeadlessServiceAddress != "" {
		hosts, err := lookup(cfg.HeadlessServiceAddress)
		if err != nil {
			return nil, fmt.Errorf("memcache: resolving %s: %w", cfg.HeadlessServiceAddress, err)
		}
		out := make([]string, len(hosts))
		for i, h := range hosts {
			out[i] = net.JoinHostPort(h, strconv.Itoa(cfg.MemcachedPort))
		}
		return out, nil
	}
	return cfg.Servers, nil
}

func newClient(addrs []net.Addr, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.disableLogger {
		logger.DisableLogger()
	}

	hashFn := consistenthash.HashFunc(cfg.hashAlgorithm)
	locator := consistenthash.NewLocator(cfg.locatorMode, hashFn, addrs...)

	var codec ascii.Codec
	if cfg.protocol == ascii.Binary {
		codec = ascii.NewBinaryCodec()
	} else {
		codec = ascii.NewTextCodec()
	}

	observer := cfg.observer
	if observer == nil {
		observer = noopObserver{}
	}

	r := reactor.New(locator, codec, reactor.Config{
		TickInterval:  cfg.tickInterval,
		InputQueueCap: cfg.opQueueMax,
		ReadBufSize:   cfg.readBufSize,
		WriteBufSize:  cfg.writeBufSize,
		FailureMode:   cfg.failureMode,
		Observer:      observer,
	})

	c := &Client{
		cfg:     cfg,
		locator: locator,
		reactor: r,
		factory: op.NewFactory(codec),
		codec:   codec,
	}
	if cfg.daemon {
		c.Run()
	}
	return c, nil
}

type noopObserver struct{}

func (noopObserver) ConnectionEstablished(net.Addr, int) {}
func (noopObserver) ConnectionLost(net.Addr)             {}

// Run starts the reactor's I/O loop in its own goroutine. It is called
// automatically unless the client was built with WithDaemon(false).
func (c *Client) Run() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.reactor.Run()
}

// Stop halts the reactor loop, cancelling whatever is still in flight.
func (c *Client) Stop() {
	c.reactor.Stop()
}

// Rebuild replaces the server list, e.g. after a headless-service DNS
// change. Operations already in flight on removed nodes are
// cancelled.
func (c *Client) Rebuild(servers []string) error {
	addrs := make([]net.Addr, 0, len(servers))
	for _, s := range servers {
		addr, err := utils.AddrRepr(s)
		if err != nil {
			return fmt.Errorf("memcache: invalid address %q: %w", s, err)
		}
		addrs = append(addrs, addr)
	}
	c.reactor.Rebuild(addrs...)
	return nil
}

func validateKey(key string) error {
	if len(key) == 0 || len(key) > maxKeyLength {
		return ErrMalformedKey
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case ' ', '\r', '\n', 0:
			return ErrMalformedKey
		}
	}
	return nil
}

func (c *Client) submit(key string, o *op.Operation) error {
	if c.cfg.failureMode == node.Redistribute {
		return c.reactor.SubmitToLive(key, o)
	}
	return c.reactor.Submit(key, o)
}

// blockingTimeout returns the wait duration used by *Sync methods.
func (c *Client) blockingTimeout() time.Duration {
	if c.cfg.operationTimeout <= 0 {
		return DefaultOperationTimeout
	}
	return c.cfg.operationTimeout
}

func (c *Client) timeoutCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.blockingTimeout())
}
