package ascii

import (
	"encoding/binary"

	"github.com/reactormc/memcache/op"
)

// Binary protocol opcodes and header layout, adapted near-verbatim from
// the teacher's memcached/constants.go and requests.go/responses.go:
// the 24-byte request/response header and opcode table are an external
// wire-format constant, not a design choice, so this file keeps the
// teacher's header layout and magic values rather than reinventing
// them.
const (
	reqMagic = 0x80
	resMagic = 0x81

	hdrLen = 24
)

type binOpcode uint8

const (
	opGet       binOpcode = 0x00
	opSet       binOpcode = 0x01
	opAdd       binOpcode = 0x02
	opReplace   binOpcode = 0x03
	opDelete    binOpcode = 0x04
	opIncrement binOpcode = 0x05
	opDecrement binOpcode = 0x06
	opAppend    binOpcode = 0x0e
	opPrepend   binOpcode = 0x0f
	opFlush     binOpcode = 0x08
	opNoop      binOpcode = 0x0a
	opVersion   binOpcode = 0x0b
	opStat      binOpcode = 0x10
)

type binStatus uint16

const (
	binSuccess     binStatus = 0x00
	binKeyEnoent   binStatus = 0x01
	binKeyEexists  binStatus = 0x02
	binE2big       binStatus = 0x03
	binEinval      binStatus = 0x04
	binNotStored   binStatus = 0x05
	binDeltaBadval binStatus = 0x06
)

// BinaryCodec implements Codec over the memcached binary protocol. It
// is the optional parallel implementation named by the spec's external
// interface (protocol=Binary).
type BinaryCodec struct {
	opaque uint32
}

// NewBinaryCodec returns the binary protocol Codec.
func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{}
}

func (c *BinaryCodec) nextOpaque() uint32 {
	c.opaque++
	return c.opaque
}

func fillRequestHeader(buf []byte, opcode binOpcode, extrasLen, keyLen, bodyLen int, opaque uint32, cas uint64) {
	buf[0] = reqMagic
	buf[1] = byte(opcode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(keyLen))
	buf[4] = byte(extrasLen)
	buf[5] = 0
	binary.BigEndian.PutUint16(buf[6:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], uint32(extrasLen+keyLen+bodyLen))
	binary.BigEndian.PutUint32(buf[12:16], opaque)
	binary.BigEndian.PutUint64(buf[16:24], cas)
}

func (c *BinaryCodec) buildRequest(opcode binOpcode, key string, extras, body []byte) []byte {
	buf := make([]byte, hdrLen+len(extras)+len(key)+len(body))
	fillRequestHeader(buf, opcode, len(extras), len(key), len(body), c.nextOpaque(), 0)
	pos := hdrLen
	pos += copy(buf[pos:], extras)
	pos += copy(buf[pos:], key)
	copy(buf[pos:], body)
	return buf
}

func storageExtras(flags, exptime uint32) []byte {
	extras := make([]byte, 8)
	binary.BigEndian.PutUint32(extras[0:4], flags)
	binary.BigEndian.PutUint32(extras[4:8], exptime)
	return extras
}

func (c *BinaryCodec) EncodeStore(mode op.StoreMode, key string, flags, exptime uint32, data []byte) []byte {
	opcode := opSet
	switch mode {
	case op.Add:
		opcode = opAdd
	case op.Replace:
		opcode = opReplace
	}
	return c.buildRequest(opcode, key, storageExtras(flags, exptime), data)
}

func (c *BinaryCodec) EncodeCas(key string, flags, exptime uint32, data []byte, casID uint64) []byte {
	buf := make([]byte, hdrLen+8+len(key)+len(data))
	fillRequestHeader(buf, opSet, 8, len(key), len(data), c.nextOpaque(), casID)
	pos := hdrLen
	binary.BigEndian.PutUint32(buf[pos:pos+4], flags)
	binary.BigEndian.PutUint32(buf[pos+4:pos+8], exptime)
	pos += 8
	pos += copy(buf[pos:], key)
	copy(buf[pos:], data)
	return buf
}

func (c *BinaryCodec) EncodeCat(mode op.CatMode, key string, data []byte) []byte {
	opcode := opAppend
	if mode == op.Prepend {
		opcode = opPrepend
	}
	return c.buildRequest(opcode, key, nil, data)
}

func (c *BinaryCodec) EncodeGet(keys []string, _ bool) []byte {
	// The reactor dispatches one binary GET per key; multi-key fan-out
	// happens above the codec (same as the text protocol).
	key := ""
	if len(keys) > 0 {
		key = keys[0]
	}
	return c.buildRequest(opGet, key, nil, nil)
}

func (c *BinaryCodec) EncodeDelete(key string) []byte {
	return c.buildRequest(opDelete, key, nil, nil)
}

func (c *BinaryCodec) EncodeMutate(mode op.MutateMode, key string, by uint64) []byte {
	opcode := opIncrement
	if mode == op.Decr {
		opcode = opDecrement
	}
	extras := make([]byte, 20)
	binary.BigEndian.PutUint64(extras[0:8], by)
	binary.BigEndian.PutUint64(extras[8:16], 0)
	binary.BigEndian.PutUint32(extras[16:20], 0xffffffff) // no auto-create; client handles the default-value race
	return c.buildRequest(opcode, key, extras, nil)
}

func (c *BinaryCodec) EncodeFlush(delaySeconds int64) []byte {
	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, uint32(delaySeconds))
	return c.buildRequest(opFlush, "", extras, nil)
}

func (c *BinaryCodec) EncodeVersion() []byte {
	return c.buildRequest(opVersion, "", nil, nil)
}

func (c *BinaryCodec) EncodeStats(arg string) []byte {
	return c.buildRequest(opStat, arg, nil, nil)
}

func (c *BinaryCodec) EncodeNoop() []byte {
	return c.buildRequest(opNoop, "", nil, nil)
}

func (c *BinaryCodec) NewParser() ConnParser {
	return &binaryParser{}
}

// TerminatesWithEnd is always false: every binary response is a single
// self-contained frame, never an END-terminated block.
func (c *BinaryCodec) TerminatesWithEnd(op.Kind) bool {
	return false
}

type binaryParser struct {
	buf []byte
}

func (p *binaryParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Next parses one binary response frame: a fixed 24-byte header
// followed by extras+key+body. Mutate responses return their new
// value as an 8-byte big-endian body per the spec's resolved open
// question — no re-stringifying through Message.
func (p *binaryParser) Next(kind op.Kind) (Event, bool, error) {
	if len(p.buf) < hdrLen {
		return Event{}, false, nil
	}
	hdr := p.buf[:hdrLen]
	if hdr[0] != resMagic && hdr[0] != reqMagic {
		return Event{}, false, ErrProtocol
	}
	keyLen := int(binary.BigEndian.Uint16(hdr[2:4]))
	extrasLen := int(hdr[4])
	status := binStatus(binary.BigEndian.Uint16(hdr[6:8]))
	totalBody := int(binary.BigEndian.Uint32(hdr[8:12]))
	if len(p.buf) < hdrLen+totalBody {
		return Event{}, false, nil
	}
	body := p.buf[hdrLen : hdrLen+totalBody]
	p.buf = p.buf[hdrLen+totalBody:]

	key := string(body[extrasLen : extrasLen+keyLen])
	value := body[extrasLen+keyLen:]
	cas := binary.BigEndian.Uint64(hdr[16:24])

	if status != binSuccess {
		return Event{Kind: EventStatus, Success: false, Message: statusMessage(status, value)}, true, nil
	}

	switch kind {
	case op.Get, op.Gets:
		var flags uint32
		if extrasLen >= 4 {
			flags = binary.BigEndian.Uint32(body[0:4])
		}
		return Event{Kind: EventData, Key: key, Flags: flags, Cas: cas, Data: append([]byte(nil), value...)}, true, nil
	case op.Mutate:
		var n uint64
		if len(value) >= 8 {
			n = binary.BigEndian.Uint64(value)
		}
		return Event{Kind: EventStatus, Success: true, Numeric: int64(n), HasNumeric: true}, true, nil
	default:
		return Event{Kind: EventStatus, Success: true, Message: "OK"}, true, nil
	}
}

func statusMessage(s binStatus, body []byte) string {
	switch s {
	case binKeyEnoent:
		return "NOT_FOUND"
	case binKeyEexists:
		return "EXISTS"
	case binNotStored:
		return "NOT_STORED"
	case binEinval, binDeltaBadval:
		return "CLIENT_ERROR " + string(body)
	case binE2big:
		return "SERVER_ERROR object too large for cache"
	default:
		return "SERVER_ERROR " + string(body)
	}
}
