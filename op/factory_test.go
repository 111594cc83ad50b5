package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEncoder struct{}

func (fakeEncoder) EncodeStore(mode StoreMode, key string, flags, exptime uint32, data []byte) []byte {
	return []byte("store")
}
func (fakeEncoder) EncodeCas(key string, flags, exptime uint32, data []byte, casID uint64) []byte {
	return []byte("cas")
}
func (fakeEncoder) EncodeCat(mode CatMode, key string, data []byte) []byte { return []byte("cat") }
func (fakeEncoder) EncodeGet(keys []string, withCas bool) []byte          { return []byte("get") }
func (fakeEncoder) EncodeDelete(key string) []byte                        { return []byte("delete") }
func (fakeEncoder) EncodeMutate(mode MutateMode, key string, by uint64) []byte {
	return []byte("mutate")
}
func (fakeEncoder) EncodeFlush(delaySeconds int64) []byte { return []byte("flush") }
func (fakeEncoder) EncodeVersion() []byte                 { return []byte("version") }
func (fakeEncoder) EncodeStats(arg string) []byte         { return []byte("stats") }
func (fakeEncoder) EncodeNoop() []byte                    { return []byte("noop") }

func TestFactoryBuildsOperationsWithKindAndKeys(t *testing.T) {
	f := NewFactory(fakeEncoder{})
	cb := &recordingCallback{}

	get := f.Get([]string{"a", "b"}, cb)
	require.Equal(t, Get, get.Kind)
	require.Equal(t, []string{"a", "b"}, get.Keys)
	require.Equal(t, WriteQueued, get.State())

	store := f.Store(Set, "k", 0, 0, []byte("v"), cb)
	require.Equal(t, Store, store.Kind)

	mut := f.Mutate(Incr, "counter", 1, cb)
	require.Equal(t, Mutate, mut.Kind)

	bcast := f.Flush(0, cb)
	require.Equal(t, Flush, bcast.Kind)
	require.Empty(t, bcast.Keys)
}
