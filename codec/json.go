package codec

import "encoding/json"

// JSON is the default codec. Values round-trip through their JSON form, so
// structs come back as map[string]any; callers needing the original type
// re-marshal on their side.
type JSON struct{}

func (JSON) ID() byte { return IDJSON }

func (JSON) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Decode(b []byte) (any, error) {
	var v any
	err := json.Unmarshal(b, &v)
	return v, err
}
