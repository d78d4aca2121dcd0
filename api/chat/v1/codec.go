// Package chatv1 is the wire contract of chat.v1.ChatService: request and
// response types, the JSON codec they travel in, and the gRPC service
// descriptor with its client.
package chatv1

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of this API ("application/grpc+json").
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

func (jsonCodec) Name() string { return CodecName }

// CallOption makes a call use the JSON codec; the generated client adds it
// to every call.
func CallOption() grpc.CallOption { return grpc.CallContentSubtype(CodecName) }
