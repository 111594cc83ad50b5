package memcache

import "errors"

const libPrefix = "memcache"

var (
	// ErrCacheMiss means a Get found no value for the key.
	ErrCacheMiss = errors.New("memcache: cache miss")
	// ErrCASConflict means a Cas call lost the race: the value changed
	// between the caller's Get and this Cas.
	ErrCASConflict = errors.New("memcache: compare-and-swap conflict")
	// ErrNotStored means a conditional write (Add/Replace/Cas) failed
	// because its precondition wasn't met.
	ErrNotStored = errors.New("memcache: item not stored")
	// ErrServerError means the server reported an internal error.
	ErrServerError = errors.New("memcache: server error")
	// ErrMalformedKey is returned synchronously, before an operation
	// ever reaches the reactor, for a key that is empty, longer than
	// 250 bytes, or contains a space/CR/LF/NUL byte.
	ErrMalformedKey = errors.New("memcache: key is too long or contains invalid characters")
	// ErrNoServers means the locator has no nodes configured.
	ErrNoServers = errors.New("memcache: no servers configured")
	// ErrNotConfigured means InitFromEnv found neither
	// MEMCACHED_SERVERS nor MEMCACHED_HEADLESS_SERVICE_ADDRESS set.
	ErrNotConfigured = errors.New("memcache: not configured, set MEMCACHED_SERVERS or MEMCACHED_HEADLESS_SERVICE_ADDRESS")
	// ErrTimeout is returned by a *Sync call when operation_timeout_ms
	// elapses before the future resolves.
	ErrTimeout = errors.New("memcache: operation timed out")
	// ErrCancelled is returned by Future.Get after Future.Cancel.
	ErrCancelled = errors.New("memcache: operation cancelled")
)

// statusError turns a non-success wire status message into one of the
// sentinel errors above, mirroring the teacher's wrapMemcachedResp but
// matching on the ASCII status line instead of a binary status code.
func statusError(message string) error {
	switch {
	case message == "" || message == "STORED" || message == "DELETED" || message == "OK":
		return nil
	case message == "NOT_FOUND":
		return ErrCacheMiss
	case message == "EXISTS":
		return ErrCASConflict
	case message == "NOT_STORED":
		return ErrNotStored
	default:
		return errors.Join(ErrServerError, errors.New(message))
	}
}
