package op

// Encoder is the subset of ascii.Codec the factory needs to turn a
// verb into pre-serialized wire bytes. It is declared here, rather
// than imported from the ascii package, so op has no dependency on the
// wire format — any Codec implementation (ascii.TextCodec,
// ascii.BinaryCodec, or a future one) satisfies it structurally.
type Encoder interface {
	EncodeStore(mode StoreMode, key string, flags, exptime uint32, data []byte) []byte
	EncodeCas(key string, flags, exptime uint32, data []byte, casID uint64) []byte
	EncodeCat(mode CatMode, key string, data []byte) []byte
	EncodeGet(keys []string, withCas bool) []byte
	EncodeDelete(key string) []byte
	EncodeMutate(mode MutateMode, key string, by uint64) []byte
	EncodeFlush(delaySeconds int64) []byte
	EncodeVersion() []byte
	EncodeStats(arg string) []byte
	EncodeNoop() []byte
}

// Factory builds Operations from an Encoder, one constructor per verb.
// Grounded on the teacher's per-method request construction in
// memcached.Client (build a *Request, call prepareExtras) generalized
// to hand back an Operation instead of driving a synchronous send.
type Factory struct {
	enc Encoder
}

// NewFactory returns a Factory that encodes commands with enc.
func NewFactory(enc Encoder) *Factory {
	return &Factory{enc: enc}
}

func (f *Factory) Store(mode StoreMode, key string, flags, exptime uint32, data []byte, cb Callback) *Operation {
	return New(Store, []string{key}, f.enc.EncodeStore(mode, key, flags, exptime, data), cb)
}

func (f *Factory) Cas(key string, casID uint64, flags, exptime uint32, data []byte, cb Callback) *Operation {
	return New(CAS, []string{key}, f.enc.EncodeCas(key, flags, exptime, data, casID), cb)
}

func (f *Factory) Cat(mode CatMode, key string, data []byte, cb Callback) *Operation {
	return New(Cat, []string{key}, f.enc.EncodeCat(mode, key, data), cb)
}

func (f *Factory) Get(keys []string, cb Callback) *Operation {
	return New(Get, keys, f.enc.EncodeGet(keys, false), cb)
}

func (f *Factory) Gets(keys []string, cb Callback) *Operation {
	return New(Gets, keys, f.enc.EncodeGet(keys, true), cb)
}

func (f *Factory) Delete(key string, cb Callback) *Operation {
	return New(Delete, []string{key}, f.enc.EncodeDelete(key), cb)
}

func (f *Factory) Mutate(mode MutateMode, key string, by uint64, cb Callback) *Operation {
	return New(Mutate, []string{key}, f.enc.EncodeMutate(mode, key, by), cb)
}

func (f *Factory) Flush(delaySeconds int64, cb Callback) *Operation {
	return New(Flush, nil, f.enc.EncodeFlush(delaySeconds), cb)
}

func (f *Factory) Version(cb Callback) *Operation {
	return New(Version, nil, f.enc.EncodeVersion(), cb)
}

func (f *Factory) Stats(arg string, cb Callback) *Operation {
	return New(Stats, nil, f.enc.EncodeStats(arg), cb)
}

func (f *Factory) Noop(cb Callback) *Operation {
	return New(Noop, nil, f.enc.EncodeNoop(), cb)
}
