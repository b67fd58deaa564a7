// Package wire frames serialized cache values so a reader can tell which
// codec produced them.
//
// Envelope: magic(4) | ver(1) | codec(1) | payload. The codec byte is
// assigned by the codec package; the envelope itself is codec-agnostic.
package wire

import (
	"bytes"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("apicache: corrupt entry")
	magic4     = [...]byte{'A', 'P', 'I', 'C'}
)

const headerLen = 4 + 1 + 1

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload with the given codec id.
func Encode(codecID byte, payload []byte) []byte {
	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, magic4[:]...)
	out = append(out, version, codecID)
	out = append(out, payload...)
	return out
}

// Decode validates the envelope and returns the codec id and payload.
// The payload aliases b; callers must not retain it past b's lifetime.
func Decode(b []byte) (codecID byte, payload []byte, err error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	return b[5], b[headerLen:], nil
}
