package memcache

import (
	"time"

	"github.com/reactormc/memcache/ascii"
	"github.com/reactormc/memcache/consistenthash"
	"github.com/reactormc/memcache/node"
)

// Defaults mirror the teacher's options.go constants in spirit: a
// conservative timeout, a bounded per-node queue, and sensible I/O
// buffer sizes for a single long-lived connection per node instead of
// a connection pool.
const (
	DefaultOperationTimeout = 500 * time.Millisecond
	DefaultReadBufSize      = 16 * 1024
	DefaultWriteBufSize     = 16 * 1024
	DefaultOpQueueMax       = 4096
	DefaultTickInterval     = 2 * time.Millisecond
)

type config struct {
	operationTimeout time.Duration
	daemon           bool
	readBufSize      int
	writeBufSize     int
	opQueueMax       int
	tickInterval     time.Duration
	locatorMode      consistenthash.LocatorMode
	hashAlgorithm    consistenthash.Algorithm
	transcoder       Transcoder
	failureMode      node.FailureMode
	protocol         ascii.Protocol
	disableLogger    bool
	observer         Observer
}

func defaultConfig() config {
	return config{
		operationTimeout: DefaultOperationTimeout,
		daemon:           true,
		readBufSize:      DefaultReadBufSize,
		writeBufSize:     DefaultWriteBufSize,
		opQueueMax:       DefaultOpQueueMax,
		tickInterval:     DefaultTickInterval,
		locatorMode:      consistenthash.Ketama,
		hashAlgorithm:    consistenthash.AlgorithmFNV1A_32,
		transcoder:       ByteTranscoder{},
		failureMode:      node.Retry,
		protocol:         ascii.Text,
	}
}

// Option configures a Client, following the teacher's options.go
// functional-options shape (type Option func(*options), one WithXxx
// constructor per tunable, doc-commented defaults).
type Option func(*config)

// WithOperationTimeout sets how long a *Sync call waits for its future
// before returning ErrTimeout. By default, DefaultOperationTimeout is
// used.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *config) { c.operationTimeout = d }
}

// WithDaemon controls whether the reactor's I/O loop is started
// automatically by New/InitFromEnv (the default) or left for the
// caller to start explicitly via Client.Run.
func WithDaemon(daemon bool) Option {
	return func(c *config) { c.daemon = daemon }
}

// WithReadBufSize sets the per-node socket read buffer size. By
// default, DefaultReadBufSize is used.
func WithReadBufSize(n int) Option {
	return func(c *config) { c.readBufSize = n }
}

// WithWriteBufSize sets the per-node socket write buffer size. By
// default, DefaultWriteBufSize is used.
func WithWriteBufSize(n int) Option {
	return func(c *config) { c.writeBufSize = n }
}

// WithOpQueueMax sets the bounded capacity of each node's ingress
// queue. By default, DefaultOpQueueMax is used.
func WithOpQueueMax(n int) Option {
	return func(c *config) { c.opQueueMax = n }
}

// WithLocator selects the NodeLocator strategy (Ketama or Array). By
// default, consistenthash.Ketama is used.
func WithLocator(mode consistenthash.LocatorMode) Option {
	return func(c *config) { c.locatorMode = mode }
}

// WithHashAlgorithm selects the hash function used for array-mode
// locators and non-Ketama key hashing. By default,
// consistenthash.AlgorithmFNV1A_32 is used; Ketama mode ignores this and
// always hashes with the MD5-based KetamaWords per the wire protocol.
func WithHashAlgorithm(alg consistenthash.Algorithm) Option {
	return func(c *config) { c.hashAlgorithm = alg }
}

// WithTranscoder sets the value transcoder used by Set/Add/Replace/Get
// and friends. By default, ByteTranscoder is used, passing []byte and
// string values through unchanged.
func WithTranscoder(t Transcoder) Option {
	return func(c *config) { c.transcoder = t }
}

// WithFailureMode selects what happens to queued operations when a
// node's connection drops: node.Retry (default), node.Cancel, or
// node.Redistribute.
func WithFailureMode(mode node.FailureMode) Option {
	return func(c *config) { c.failureMode = mode }
}

// WithProtocol selects the wire protocol: ascii.Text (default) or
// ascii.Binary.
func WithProtocol(p ascii.Protocol) Option {
	return func(c *config) { c.protocol = p }
}

// WithDisableLogger disables the package logger for this client.
func WithDisableLogger() Option {
	return func(c *config) { c.disableLogger = true }
}

// WithObserver registers a caller-supplied Observer for connection
// lifecycle events, in addition to the client's own metrics/logging.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}
