package ascii

import (
	"fmt"
	"strconv"
	"strings"
)

// Writer encodes commands into the pre-serialized byte form an
// op.Operation carries. Grounded on the teacher's Request.fillHeaderBytes/
// Transmit split (build the wire form once, hand raw bytes to the
// writer), adapted from a fixed 24-byte binary header into CRLF-
// terminated ASCII lines.
type Writer struct{}

// NewWriter returns a stateless ASCII command writer.
func NewWriter() Writer { return Writer{} }

// Store encodes set/add/replace <key> <flags> <exptime> <bytes>\r\n<data>\r\n.
func (Writer) Store(verb, key string, flags, exptime uint32, data []byte, noreply bool) []byte {
	var b strings.Builder
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(flags), 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(exptime), 10))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(data)))
	if noreply {
		b.WriteString(" noreply")
	}
	b.WriteString(crlf)
	b.Write(data)
	b.WriteString(crlf)
	return []byte(b.String())
}

// Cas encodes cas <key> <flags> <exptime> <bytes> <cas>\r\n<data>\r\n.
func (Writer) Cas(key string, flags, exptime uint32, data []byte, casID uint64) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "cas %s %d %d %d %d%s", key, flags, exptime, len(data), casID, crlf)
	b.Write(data)
	b.WriteString(crlf)
	return []byte(b.String())
}

// Get encodes get/gets <k1> <k2> ...\r\n.
func (Writer) Get(keys []string, withCas bool) []byte {
	verb := "get"
	if withCas {
		verb = "gets"
	}
	var b strings.Builder
	b.WriteString(verb)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
	}
	b.WriteString(crlf)
	return []byte(b.String())
}

// Delete encodes delete <key>\r\n.
func (Writer) Delete(key string) []byte {
	return []byte("delete " + key + crlf)
}

// Mutate encodes incr/decr <key> <by>\r\n.
func (Writer) Mutate(verb, key string, by uint64) []byte {
	return []byte(fmt.Sprintf("%s %s %d%s", verb, key, by, crlf))
}

// FlushAll encodes flush_all [delay]\r\n.
func (Writer) FlushAll(delaySeconds int64) []byte {
	if delaySeconds <= 0 {
		return []byte("flush_all" + crlf)
	}
	return []byte(fmt.Sprintf("flush_all %d%s", delaySeconds, crlf))
}

// Version encodes version\r\n.
func (Writer) Version() []byte {
	return []byte("version" + crlf)
}

// Stats encodes stats [arg]\r\n.
func (Writer) Stats(arg string) []byte {
	if arg == "" {
		return []byte("stats" + crlf)
	}
	return []byte("stats " + arg + crlf)
}

// Noop encodes the wire form used for a liveness/sync round-trip. The
// ASCII protocol has no dedicated no-op command; a version round-trip
// serves the same purpose (confirm the connection is alive, flush the
// FIFO ahead of it) without inventing a command real servers reject.
func (Writer) Noop() []byte {
	return []byte("version" + crlf)
}
