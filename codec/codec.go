// Package codec serializes arbitrary cache values for persistent and remote
// backends. Each codec carries a stable one-byte id that is written into the
// wire envelope so values can be decoded by whichever codec produced them.
package codec

// Stable wire ids. Never reorder or reuse; stored entries outlive releases.
const (
	IDJSON     byte = 1
	IDCBOR     byte = 2
	IDMsgpack  byte = 3
	IDProtobuf byte = 4
)

// Codec encodes/decodes arbitrary values to []byte for storage.
type Codec interface {
	// ID is the codec's wire id, recorded alongside every encoded value.
	ID() byte
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

var registry = map[byte]Codec{
	IDJSON:     JSON{},
	IDCBOR:     CBOR{},
	IDMsgpack:  Msgpack{},
	IDProtobuf: Protobuf{},
}

// ByID resolves a codec from its wire id.
func ByID(id byte) (Codec, bool) {
	c, ok := registry[id]
	return c, ok
}
