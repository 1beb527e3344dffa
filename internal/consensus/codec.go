package consensus

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets AppendEntryService run over real google.golang.org/grpc
// framing (HTTP/2, streaming, deadlines, status codes) without a protoc
// code-generation step: it registers under the codec name "proto", which is
// the name grpc-go's transport uses by default when a call sets no explicit
// content-subtype. This is the documented technique from grpc-go's own
// examples/features/encoding sample for swapping the wire codec; it is what
// lets RequestVoteRequest etc. in rpc.go be plain Go structs instead of
// protobuf-generated message types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "proto"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
