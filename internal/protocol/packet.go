// Package protocol defines the wire packet format of a command channel:
// session and message identity, an integrity digest, and the payload.
package protocol

import "github.com/google/uuid"

// Identifiers are 16-byte UUIDs on the wire.
type (
	// MessageID is the caller-chosen correlation key of one exchange.
	MessageID = uuid.UUID
	// SessionID scopes every packet to one channel instance.
	SessionID = uuid.UUID
	// ChannelID names the protocol variant both peers must speak.
	ChannelID = uuid.UUID
)

// Kind distinguishes handshake traffic from application data.
type Kind uint8

// Packet kind constants.
const (
	KindData              Kind = 0x00 // application payload, pipeline applies
	KindHandshakeRequest  Kind = 0x01 // advertisement sent by Open
	KindHandshakeResponse Kind = 0x02 // answer to a handshake request
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindHandshakeRequest:
		return "handshake-request"
	case KindHandshakeResponse:
		return "handshake-response"
	default:
		return "unknown"
	}
}

// Field sizes of the fixed header.
const (
	idSize         = 16
	kindSize       = 1
	hashLenSize    = 1
	payloadLenSize = 4

	// HeaderSize is the fixed overhead excluding the digest bytes:
	// SessionID(16) + Kind(1) + MessageID(16) + HashLength(1) + PayloadLength(4).
	HeaderSize = idSize + kindSize + idSize + hashLenSize + payloadLenSize
)

// MaxPayloadSize bounds the declared payload length accepted by Decode.
const MaxPayloadSize = 16 << 20

// Packet is one decoded wire unit.
type Packet struct {
	Kind      Kind
	SessionID SessionID
	MessageID MessageID
	Digest    []byte // multihash over Payload
	Payload   []byte
}
