package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/unkn0wn-root/apicache/internal/wire"
)

// Fallback frames values for storage, preferring Primary and degrading to
// Secondary when the value cannot be encoded (the single recovery allowed
// for serialization failures). proto.Message values are always routed to
// the Protobuf codec so the concrete type survives.
//
// Unmarshal dispatches on the envelope's codec id, so any mix of encodings
// can coexist under one backend.
type Fallback struct {
	Primary   Codec
	Secondary Codec
}

// ForDisk is the durable backend's encoding: human-inspectable JSON first,
// CBOR for values JSON rejects.
func ForDisk() Fallback { return Fallback{Primary: JSON{}, Secondary: CBOR{}} }

// ForRemote is the remote backend's encoding: JSON first, msgpack fallback.
func ForRemote() Fallback { return Fallback{Primary: JSON{}, Secondary: Msgpack{}} }

// Marshal encodes v and frames it with the producing codec's id.
func (f Fallback) Marshal(v any) ([]byte, error) {
	if _, ok := v.(proto.Message); ok {
		b, err := (Protobuf{}).Encode(v)
		if err != nil {
			return nil, err
		}
		return wire.Encode(IDProtobuf, b), nil
	}

	b, err := f.Primary.Encode(v)
	if err == nil {
		return wire.Encode(f.Primary.ID(), b), nil
	}
	if f.Secondary == nil {
		return nil, err
	}
	b, ferr := f.Secondary.Encode(v)
	if ferr != nil {
		return nil, fmt.Errorf("encode: primary: %v; fallback: %w", err, ferr)
	}
	return wire.Encode(f.Secondary.ID(), b), nil
}

// Unmarshal decodes framed bytes produced by Marshal.
func (f Fallback) Unmarshal(b []byte) (any, error) {
	id, payload, err := wire.Decode(b)
	if err != nil {
		return nil, err
	}
	c, ok := ByID(id)
	if !ok {
		return nil, fmt.Errorf("decode: unknown codec id %d: %w", id, wire.ErrCorrupt)
	}
	return c.Decode(payload)
}
