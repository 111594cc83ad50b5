package ascii

import "github.com/reactormc/memcache/op"

// Codec is the WireCodec contract: encode one command's bytes, and
// parse response fragments for an operation of a given kind. Both the
// ASCII text implementation (Writer+Parser above) and the binary
// protocol implementation (binary.go) satisfy it, selected by the
// protocol config option.
type Codec interface {
	EncodeStore(verb op.StoreMode, key string, flags, exptime uint32, data []byte) []byte
	EncodeCas(key string, flags, exptime uint32, data []byte, casID uint64) []byte
	EncodeCat(mode op.CatMode, key string, data []byte) []byte
	EncodeGet(keys []string, withCas bool) []byte
	EncodeDelete(key string) []byte
	EncodeMutate(mode op.MutateMode, key string, by uint64) []byte
	EncodeFlush(delaySeconds int64) []byte
	EncodeVersion() []byte
	EncodeStats(arg string) []byte
	EncodeNoop() []byte

	NewParser() ConnParser

	// TerminatesWithEnd reports whether responses to this kind end
	// with an explicit EventEnd marker (ASCII get/gets/stats) or
	// complete after exactly one status/data event (everything else,
	// and the whole binary protocol).
	TerminatesWithEnd(kind op.Kind) bool
}

// ConnParser is the per-connection parsing state a Codec hands out;
// node.Node feeds it bytes and asks it for the next Event bound to the
// kind of the operation currently at the head of the read queue.
type ConnParser interface {
	Feed(data []byte)
	Next(kind op.Kind) (Event, bool, error)
}

// TextCodec adapts Writer/Parser to the Codec interface.
type TextCodec struct {
	w Writer
}

// NewTextCodec returns the ASCII protocol Codec.
func NewTextCodec() *TextCodec {
	return &TextCodec{w: NewWriter()}
}

func storeVerb(mode op.StoreMode) string {
	switch mode {
	case op.Add:
		return "add"
	case op.Replace:
		return "replace"
	default:
		return "set"
	}
}

func mutateVerb(mode op.MutateMode) string {
	if mode == op.Decr {
		return "decr"
	}
	return "incr"
}

func (c *TextCodec) EncodeStore(mode op.StoreMode, key string, flags, exptime uint32, data []byte) []byte {
	return c.w.Store(storeVerb(mode), key, flags, exptime, data, false)
}

func (c *TextCodec) EncodeCas(key string, flags, exptime uint32, data []byte, casID uint64) []byte {
	return c.w.Cas(key, flags, exptime, data, casID)
}

func catVerb(mode op.CatMode) string {
	if mode == op.Prepend {
		return "prepend"
	}
	return "append"
}

func (c *TextCodec) EncodeCat(mode op.CatMode, key string, data []byte) []byte {
	return c.w.Store(catVerb(mode), key, 0, 0, data, false)
}

func (c *TextCodec) EncodeGet(keys []string, withCas bool) []byte {
	return c.w.Get(keys, withCas)
}

func (c *TextCodec) EncodeDelete(key string) []byte {
	return c.w.Delete(key)
}

func (c *TextCodec) EncodeMutate(mode op.MutateMode, key string, by uint64) []byte {
	return c.w.Mutate(mutateVerb(mode), key, by)
}

func (c *TextCodec) EncodeFlush(delaySeconds int64) []byte {
	return c.w.FlushAll(delaySeconds)
}

func (c *TextCodec) EncodeVersion() []byte {
	return c.w.Version()
}

func (c *TextCodec) EncodeStats(arg string) []byte {
	return c.w.Stats(arg)
}

func (c *TextCodec) EncodeNoop() []byte {
	return c.w.Noop()
}

func (c *TextCodec) NewParser() ConnParser {
	return NewParser()
}

func (c *TextCodec) TerminatesWithEnd(kind op.Kind) bool {
	return kind == op.Get || kind == op.Gets || kind == op.Stats
}
