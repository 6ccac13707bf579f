package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/multiformats/go-multihash"
)

// DigestCode is the multihash function used for packet digests.
const DigestCode = multihash.SHA2_256

// Digest returns the multihash of payload under DigestCode. On the wire the
// digest covers the payload as framed, which for data packets is the
// output of the outbound pipeline, so a receiver can check it before
// running the inbound pipeline.
func Digest(payload []byte) []byte {
	sum, err := multihash.Sum(payload, DigestCode, -1)
	if err != nil {
		// Sum only fails for unknown codes or invalid lengths.
		panic(fmt.Sprintf("protocol: digest: %v", err))
	}
	return sum
}

// Encode serializes a packet for the medium. The digest is computed here
// over payload, so callers pass the bytes that actually travel.
func Encode(kind Kind, session SessionID, id MessageID, payload []byte) []byte {
	digest := Digest(payload)

	buf := make([]byte, HeaderSize+len(digest)+len(payload))
	off := 0
	off += copy(buf[off:], session[:])
	buf[off] = byte(kind)
	off++
	off += copy(buf[off:], id[:])
	buf[off] = byte(len(digest))
	off++
	off += copy(buf[off:], digest)
	binary.LittleEndian.PutUint32(buf[off:off+payloadLenSize], uint32(len(payload)))
	off += payloadLenSize
	copy(buf[off:], payload)
	return buf
}

// Decode deserializes a byte slice into a Packet. It checks structure only;
// call Verify to check the digest.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, &MalformedPacketError{
			Length: len(data),
			Reason: fmt.Sprintf("need at least %d bytes", HeaderSize),
		}
	}

	pkt := &Packet{}
	off := 0
	off += copy(pkt.SessionID[:], data[off:off+idSize])
	pkt.Kind = Kind(data[off])
	off++
	off += copy(pkt.MessageID[:], data[off:off+idSize])

	hashLen := int(data[off])
	off++
	if len(data) < HeaderSize+hashLen {
		return nil, &MalformedPacketError{
			Length: len(data),
			Reason: fmt.Sprintf("digest length %d overruns buffer", hashLen),
		}
	}
	pkt.Digest = make([]byte, hashLen)
	off += copy(pkt.Digest, data[off:off+hashLen])

	payloadLen := binary.LittleEndian.Uint32(data[off : off+payloadLenSize])
	off += payloadLenSize
	if payloadLen > MaxPayloadSize {
		return nil, &MalformedPacketError{
			Length: len(data),
			Reason: fmt.Sprintf("payload length %d exceeds maximum %d", payloadLen, MaxPayloadSize),
		}
	}
	if rest := len(data) - off; int(payloadLen) != rest {
		return nil, &MalformedPacketError{
			Length: len(data),
			Reason: fmt.Sprintf("payload length %d does not match remaining %d bytes", payloadLen, rest),
		}
	}

	pkt.Payload = make([]byte, payloadLen)
	copy(pkt.Payload, data[off:])
	return pkt, nil
}

// Verify recomputes the digest over the payload with the function named
// by the packet's own multihash and compares it. The payload checked is
// the framed one, before any inbound transform is applied.
func (p *Packet) Verify() error {
	decoded, err := multihash.Decode(p.Digest)
	if err != nil {
		return &IntegrityError{MessageID: p.MessageID, Err: err}
	}
	if decoded.Code != DigestCode {
		return &IntegrityError{
			MessageID: p.MessageID,
			Err:       fmt.Errorf("unsupported digest %s", decoded.Name),
		}
	}

	sum, err := multihash.Sum(p.Payload, decoded.Code, decoded.Length)
	if err != nil {
		return &IntegrityError{MessageID: p.MessageID, Err: err}
	}
	if !bytes.Equal(sum, p.Digest) {
		return &IntegrityError{MessageID: p.MessageID}
	}
	return nil
}
