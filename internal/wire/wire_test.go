package wire

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte(`{"state":"on"}`)
	framed := Encode(3, payload)

	id, got, err := Decode(framed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if id != 3 {
		t.Fatalf("codec id = %d, want 3", id)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	bad := [][]byte{
		nil,
		[]byte("AP"),
		[]byte("NOPE\x01\x01payload"),
		append([]byte{'A', 'P', 'I', 'C', 99, 1}, []byte("x")...), // wrong version
	}
	for _, b := range bad {
		if _, _, err := Decode(b); err != ErrCorrupt {
			t.Errorf("Decode(%q) err = %v, want ErrCorrupt", b, err)
		}
	}
}

func TestEmptyPayload(t *testing.T) {
	id, payload, err := Decode(Encode(1, nil))
	if err != nil || id != 1 || len(payload) != 0 {
		t.Fatalf("Decode(Encode(1, nil)) = %d, %q, %v", id, payload, err)
	}
}
