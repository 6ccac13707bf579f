// Package handshake generates and encodes the advertisements two channel
// endpoints exchange to agree on a protocol variant and processor set.
package handshake

import (
	"fmt"

	"github.com/1ureka/cmdlink/internal/pipeline"
	"github.com/1ureka/cmdlink/internal/protocol"
)

// Request advertises the sender's channel id and candidate processors.
type Request struct {
	ChannelID  protocol.ChannelID     `json:"channel_id"`
	Processors []pipeline.Negotiation `json:"processors"`
}

// Response is the peer's answering advertisement.
type Response struct {
	ChannelID  protocol.ChannelID     `json:"channel_id"`
	Processors []pipeline.Negotiation `json:"processors"`
}

// Generator builds the local handshake request.
type Generator interface {
	Generate(channelID protocol.ChannelID, candidates []pipeline.Processor) (*Request, error)
}

// Codec converts handshake messages to and from payload bytes.
type Codec interface {
	EncodeRequest(*Request) ([]byte, error)
	DecodeRequest([]byte) (*Request, error)
	EncodeResponse(*Response) ([]byte, error)
	DecodeResponse([]byte) (*Response, error)
}

// DefaultGenerator advertises every candidate via pipeline.Advertise.
type DefaultGenerator struct{}

// Generate implements Generator.
func (DefaultGenerator) Generate(channelID protocol.ChannelID, candidates []pipeline.Processor) (*Request, error) {
	adv, err := pipeline.Advertise(candidates)
	if err != nil {
		return nil, err
	}
	return &Request{ChannelID: channelID, Processors: adv}, nil
}

// Answer builds the response that mirrors a local request.
func Answer(req *Request) *Response {
	return &Response{ChannelID: req.ChannelID, Processors: req.Processors}
}

// CodecByName returns the codec registered under name ("proto" or "json").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "proto":
		return ProtoCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("handshake: unknown codec %q", name)
	}
}
