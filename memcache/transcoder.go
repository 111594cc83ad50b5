package memcache

import "fmt"

// Transcoder is the value codec contract spec.md names as an external
// collaborator and leaves out of scope: this module only ever moves
// flags+bytes, never application values. Grounded on the teacher's
// CachedData pattern (an opaque flags+body pair the client never
// interprets).
type Transcoder interface {
	Encode(v any) (flags uint32, data []byte, err error)
	Decode(flags uint32, data []byte, v any) error
}

// ByteTranscoder is the one concrete Transcoder this module ships: a
// passthrough for []byte and string, with flags always zero. Anything
// richer (JSON, gob, protobuf) is an external Transcoder the caller
// supplies via WithTranscoder.
type ByteTranscoder struct{}

func (ByteTranscoder) Encode(v any) (uint32, []byte, error) {
	switch val := v.(type) {
	case []byte:
		return 0, val, nil
	case string:
		return 0, []byte(val), nil
	default:
		return 0, nil, fmt.Errorf("memcache: ByteTranscoder cannot encode %T, supply a custom Transcoder", v)
	}
}

func (ByteTranscoder) Decode(_ uint32, data []byte, v any) error {
	switch dst := v.(type) {
	case *[]byte:
		*dst = append([]byte(nil), data...)
		return nil
	case *string:
		*dst = string(data)
		return nil
	default:
		return fmt.Errorf("memcache: ByteTranscoder cannot decode into %T, supply a custom Transcoder", v)
	}
}
