package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR handles values JSON cannot express (binary blobs, non-string map
// keys, NaN). Used as the disk backend's fallback encoding.
// Time values are encoded as RFC3339Nano for stable timestamps.
type CBOR struct{}

func (CBOR) ID() byte { return IDCBOR }

var cborEnc cbor.EncMode

func init() {
	eo := cbor.PreferredUnsortedEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		panic(err)
	}
	cborEnc = em
}

func (CBOR) Encode(v any) ([]byte, error) { return cborEnc.Marshal(v) }

func (CBOR) Decode(b []byte) (any, error) {
	var v any
	err := cbor.Unmarshal(b, &v)
	return v, err
}
