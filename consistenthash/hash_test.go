package consistenthash

import (
	"crypto/md5" //nolint:gosec // test verifies our byte-order extraction against the stdlib digest.
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKetamaWordsMatchesLittleEndianExtraction(t *testing.T) {
	for _, key := range []string{"test-0", "10.0.1.1:11211-0", "192.168.100.1:11211-39"} {
		sum := md5.Sum([]byte(key)) //nolint:gosec
		want := [4]uint32{
			binary.LittleEndian.Uint32(sum[0:4]),
			binary.LittleEndian.Uint32(sum[4:8]),
			binary.LittleEndian.Uint32(sum[8:12]),
			binary.LittleEndian.Uint32(sum[12:16]),
		}
		require.Equal(t, want, KetamaWords([]byte(key)), "key=%s", key)
	}
}

func TestKetamaWordsDeterministic(t *testing.T) {
	a := KetamaWords([]byte("10.0.1.1:11211-0"))
	b := KetamaWords([]byte("10.0.1.1:11211-0"))
	require.Equal(t, a, b)

	c := KetamaWords([]byte("10.0.1.2:11211-0"))
	require.NotEqual(t, a, c)
}

func TestFNV1A32KnownVector(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the offset basis.
	require.Equal(t, uint32(2166136261), FNV1A32(nil))
}

func TestHashFuncResolvesKnownAlgorithms(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmNative, AlgorithmFNV1_32, AlgorithmFNV1A_32, AlgorithmCRC, AlgorithmXXHash, AlgorithmKetama, "bogus"} {
		fn := HashFunc(alg)
		require.NotNil(t, fn)
		_ = fn([]byte("probe"))
	}
}
