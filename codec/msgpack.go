package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is compact and fast; the remote backend uses it as the fallback
// encoding for values JSON rejects.
type Msgpack struct{}

func (Msgpack) ID() byte { return IDMsgpack }

func (Msgpack) Encode(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack) Decode(b []byte) (any, error) {
	var v any
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
