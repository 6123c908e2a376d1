package rpcv1

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// CodecName is the Connect codec name, giving Content-Type application/json.
const CodecName = "json"

// Codec marshals plain structs with encoding/json.
type Codec struct{}

var _ connect.Codec = Codec{}

// Name implements connect.Codec.
func (Codec) Name() string { return CodecName }

// Marshal implements connect.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpcv1: marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal implements connect.Codec. An empty body decodes to the zero
// message.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpcv1: unmarshal %T: %w", v, err)
	}
	return nil
}

// WithJSON selects Codec for a handler or client.
func WithJSON() connect.Option {
	return connect.WithCodec(Codec{})
}
