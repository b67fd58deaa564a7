package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// Protobuf stores proto.Message values. The message is wrapped in anypb.Any
// so the concrete type survives the round trip: Decode resolves it through
// the global type registry, which requires the message's generated package
// to be linked into the reading process.
type Protobuf struct{}

func (Protobuf) ID() byte { return IDProtobuf }

func (Protobuf) Encode(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf codec: %T is not a proto.Message", v)
	}
	wrapped, err := anypb.New(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(wrapped)
}

func (Protobuf) Decode(b []byte) (any, error) {
	var wrapped anypb.Any
	if err := proto.Unmarshal(b, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.UnmarshalNew()
}
