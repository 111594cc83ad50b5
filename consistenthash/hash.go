// Package consistenthash implements the key-to-node routing used by the
// reactor core: a Ketama-compatible hash ring plus a simple array-mode
// fallback, selectable by the hash_algorithm/locator configuration.
package consistenthash

import (
	"crypto/md5" //nolint:gosec // required by the Ketama wire protocol, not for security.
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash"
)

// Func hashes a byte string down to a 32-bit routing value.
type Func func(data []byte) uint32

// Algorithm names the hash_algorithm config values from the client's
// external interface.
type Algorithm string

const (
	AlgorithmNative Algorithm = "native"
	AlgorithmKetama Algorithm = "ketama"
	AlgorithmFNV1_32  Algorithm = "fnv1_32"
	AlgorithmFNV1A_32 Algorithm = "fnv1a_32"
	AlgorithmCRC      Algorithm = "crc"
	AlgorithmXXHash   Algorithm = "xxhash"
)

// HashFunc resolves a named algorithm to a Func. Ketama is handled
// separately by Ring since it needs the full 4-word MD5 expansion, not
// a single 32-bit value; resolving it here returns the first of the
// four words, which is suitable for Array-mode use of "ketama" as a
// plain hash but not for ring construction.
func HashFunc(a Algorithm) Func {
	switch a {
	case AlgorithmKetama:
		return func(data []byte) uint32 { return KetamaWords(data)[0] }
	case AlgorithmFNV1_32:
		return FNV1_32
	case AlgorithmCRC:
		return CRC32
	case AlgorithmXXHash:
		return XXHash32
	case AlgorithmNative, AlgorithmFNV1A_32, "":
		return FNV1A32
	default:
		return FNV1A32
	}
}

// KetamaWords computes MD5(data) and returns the four 32-bit words at
// byte offsets 0, 4, 8, 12 as little-endian integers. This exact byte
// order is protocol-critical: it must match reference Ketama clients
// bit for bit, or keys route to different servers than every other
// client in the deployment.
func KetamaWords(data []byte) [4]uint32 {
	sum := md5.Sum(data) //nolint:gosec
	var words [4]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(sum[i*4 : i*4+4])
	}
	return words
}

// FNV1A32 is the fast default hash used outside Ketama ring
// construction (array-mode locator, hash_algorithm=native/fnv1a_32).
func FNV1A32(data []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for _, b := range data {
		h ^= uint32(b)
		h *= prime32
	}
	return h
}

// FNV1_32 is the non-"a" variant of FNV-1, offered for parity with the
// hash_algorithm enum in the client's external interface.
func FNV1_32(data []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for _, b := range data {
		h *= prime32
		h ^= uint32(b)
	}
	return h
}

// CRC32 hashes with the IEEE polynomial, matching the "CRC" entry of
// the hash_algorithm enum.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// XXHash32 adapts the teacher's xxhash dependency (originally the
// module's sole hash function) into one entry of the hash_algorithm
// enum, truncated to 32 bits for ring compatibility.
func XXHash32(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}
