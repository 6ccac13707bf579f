package handshake

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/1ureka/cmdlink/internal/pipeline"
	"github.com/1ureka/cmdlink/internal/protocol"
)

// Field numbers of the protobuf wire layout:
//
//	message Advertisement {
//	  bytes channel_id = 1;
//	  repeated Processor processors = 2;
//	}
//	message Processor {
//	  string id = 1;
//	  bytes parameter = 2;
//	}
const (
	fieldChannelID  protowire.Number = 1
	fieldProcessors protowire.Number = 2
	fieldProcID     protowire.Number = 1
	fieldProcParam  protowire.Number = 2
)

// ProtoCodec encodes handshake messages in protobuf wire format.
type ProtoCodec struct{}

func (ProtoCodec) EncodeRequest(r *Request) ([]byte, error) {
	return marshalAdvertisement(r.ChannelID, r.Processors), nil
}

func (ProtoCodec) EncodeResponse(r *Response) ([]byte, error) {
	return marshalAdvertisement(r.ChannelID, r.Processors), nil
}

func (ProtoCodec) DecodeRequest(data []byte) (*Request, error) {
	id, procs, err := unmarshalAdvertisement(data)
	if err != nil {
		return nil, fmt.Errorf("handshake: decode request: %w", err)
	}
	return &Request{ChannelID: id, Processors: procs}, nil
}

func (ProtoCodec) DecodeResponse(data []byte) (*Response, error) {
	id, procs, err := unmarshalAdvertisement(data)
	if err != nil {
		return nil, fmt.Errorf("handshake: decode response: %w", err)
	}
	return &Response{ChannelID: id, Processors: procs}, nil
}

func marshalAdvertisement(id protocol.ChannelID, procs []pipeline.Negotiation) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldChannelID, protowire.BytesType)
	b = protowire.AppendBytes(b, id[:])
	for _, n := range procs {
		var inner []byte
		inner = protowire.AppendTag(inner, fieldProcID, protowire.BytesType)
		inner = protowire.AppendString(inner, n.ID)
		if len(n.Parameter) > 0 {
			inner = protowire.AppendTag(inner, fieldProcParam, protowire.BytesType)
			inner = protowire.AppendBytes(inner, n.Parameter)
		}
		b = protowire.AppendTag(b, fieldProcessors, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

var errChannelIDSize = errors.New("channel id must be 16 bytes")

func unmarshalAdvertisement(b []byte) (protocol.ChannelID, []pipeline.Negotiation, error) {
	var (
		id    protocol.ChannelID
		procs []pipeline.Negotiation
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return id, nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldChannelID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return id, nil, protowire.ParseError(n)
			}
			if len(v) != len(id) {
				return id, nil, errChannelIDSize
			}
			copy(id[:], v)
			b = b[n:]

		case num == fieldProcessors && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return id, nil, protowire.ParseError(n)
			}
			proc, err := unmarshalProcessor(v)
			if err != nil {
				return id, nil, err
			}
			procs = append(procs, proc)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return id, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return id, procs, nil
}

func unmarshalProcessor(b []byte) (pipeline.Negotiation, error) {
	var out pipeline.Negotiation
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return out, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldProcID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return out, protowire.ParseError(n)
			}
			out.ID = v
			b = b[n:]

		case num == fieldProcParam && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return out, protowire.ParseError(n)
			}
			out.Parameter = append([]byte(nil), v...)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return out, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if out.ID == "" {
		return out, errors.New("processor entry without id")
	}
	return out, nil
}
