package processor

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/1ureka/cmdlink/internal/protocol"
)

const CompressID = "compress/zstd"

// Compress shrinks payloads with zstd. It has no negotiation parameter.
// The encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
type Compress struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewCompress() (*Compress, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(protocol.MaxPayloadSize))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	return &Compress{enc: enc, dec: dec}, nil
}

func (c *Compress) ID() string                   { return CompressID }
func (c *Compress) Negotiate() ([]byte, error)   { return nil, nil }
func (c *Compress) FinishNegotiate([]byte) error { return nil }

func (c *Compress) Forward(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *Compress) Backward(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return out, nil
}
