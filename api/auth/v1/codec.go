package authv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype of the JSON codec (application/grpc+json).
const CodecName = "json"

// Codec marshals proto messages (e.g. grpc.health.v1) with protojson and plain Go structs with
// encoding/json, so both can share one connection.
type Codec struct{}

func init() {
	encoding.RegisterCodec(Codec{})
}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal %T: %w", v, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: unmarshal %T: %w", v, err)
	}
	return nil
}

// WithJSON selects the JSON codec for a call. Clients built by NewAuthServiceClient add it themselves.
func WithJSON() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
