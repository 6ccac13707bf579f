package handshake

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes handshake messages as JSON objects.
type JSONCodec struct{}

func (JSONCodec) EncodeRequest(r *Request) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) EncodeResponse(r *Response) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) DecodeRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("handshake: decode request: %w", err)
	}
	return &r, nil
}

func (JSONCodec) DecodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("handshake: decode response: %w", err)
	}
	return &r, nil
}
