package processor

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/sha3"
)

const (
	ObfuscateID = "obfuscate/shake256"

	seedSize  = 32
	nonceSize = 16
)

// Obfuscate masks payloads with a SHAKE256 keystream. It hides content
// from casual inspection but does not authenticate it. Each side offers a
// random seed; the key is both seeds in sorted order.
type Obfuscate struct {
	seed []byte

	mu  sync.RWMutex
	key []byte
}

func NewObfuscate() (*Obfuscate, error) {
	seed := make([]byte, seedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("obfuscate: seed: %w", err)
	}
	return &Obfuscate{seed: seed}, nil
}

func (o *Obfuscate) ID() string { return ObfuscateID }

func (o *Obfuscate) Negotiate() ([]byte, error) { return bytes.Clone(o.seed), nil }

func (o *Obfuscate) FinishNegotiate(peer []byte) error {
	if len(peer) != seedSize {
		return fmt.Errorf("obfuscate: peer seed is %d bytes, want %d", len(peer), seedSize)
	}
	lo, hi := o.seed, peer
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	key := append(bytes.Clone(lo), hi...)

	o.mu.Lock()
	o.key = key
	o.mu.Unlock()
	return nil
}

func (o *Obfuscate) keystream(nonce []byte, n int) ([]byte, error) {
	o.mu.RLock()
	key := o.key
	o.mu.RUnlock()
	if key == nil {
		return nil, ErrNotNegotiated
	}
	h := sha3.NewShake256()
	h.Write(key)
	h.Write(nonce)
	ks := make([]byte, n)
	h.Read(ks)
	return ks, nil
}

// Forward returns nonce || masked data.
func (o *Obfuscate) Forward(data []byte) ([]byte, error) {
	out := make([]byte, nonceSize+len(data))
	if _, err := io.ReadFull(rand.Reader, out[:nonceSize]); err != nil {
		return nil, fmt.Errorf("obfuscate: nonce: %w", err)
	}
	ks, err := o.keystream(out[:nonceSize], len(data))
	if err != nil {
		return nil, err
	}
	for i, b := range data {
		out[nonceSize+i] = b ^ ks[i]
	}
	return out, nil
}

func (o *Obfuscate) Backward(data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, fmt.Errorf("obfuscate: %d bytes is shorter than the nonce", len(data))
	}
	body := data[nonceSize:]
	ks, err := o.keystream(data[:nonceSize], len(body))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(body))
	for i, b := range body {
		out[i] = b ^ ks[i]
	}
	return out, nil
}
