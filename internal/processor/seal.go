package processor

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cloudflare/circl/dh/x25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const SealID = "seal/x25519-xchacha20poly1305"

var sealInfo = []byte("cmdlink seal v1")

// Seal encrypts and authenticates every payload with XChaCha20-Poly1305
// under a key agreed through an ephemeral X25519 exchange. The negotiation
// parameter is the local public key.
type Seal struct {
	pub  x25519.Key
	priv x25519.Key

	mu   sync.RWMutex
	aead cipher.AEAD
}

// NewSeal generates a fresh ephemeral key pair.
func NewSeal() (*Seal, error) {
	s := &Seal{}
	if _, err := io.ReadFull(rand.Reader, s.priv[:]); err != nil {
		return nil, fmt.Errorf("seal: generate key: %w", err)
	}
	x25519.KeyGen(&s.pub, &s.priv)
	return s, nil
}

func (s *Seal) ID() string { return SealID }

func (s *Seal) Negotiate() ([]byte, error) {
	return bytes.Clone(s.pub[:]), nil
}

func (s *Seal) FinishNegotiate(peer []byte) error {
	if len(peer) != x25519.Size {
		return fmt.Errorf("seal: peer key is %d bytes, want %d", len(peer), x25519.Size)
	}
	var peerPub, shared x25519.Key
	copy(peerPub[:], peer)
	if !x25519.Shared(&shared, &s.priv, &peerPub) {
		return errors.New("seal: peer key is a low-order point")
	}

	// Both sides feed the public keys in the same order.
	lo, hi := s.pub[:], peerPub[:]
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	info := make([]byte, 0, len(sealInfo)+2*x25519.Size)
	info = append(append(append(info, sealInfo...), lo...), hi...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared[:], nil, info), key); err != nil {
		return fmt.Errorf("seal: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	s.mu.Lock()
	s.aead = aead
	s.mu.Unlock()
	return nil
}

func (s *Seal) current() (cipher.AEAD, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aead == nil {
		return nil, ErrNotNegotiated
	}
	return s.aead, nil
}

// Forward returns nonce || ciphertext.
func (s *Seal) Forward(data []byte) ([]byte, error) {
	aead, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}
	return aead.Seal(out, out, data, nil), nil
}

func (s *Seal) Backward(data []byte) ([]byte, error) {
	aead, err := s.current()
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("seal: %d bytes is shorter than nonce and tag", len(data))
	}
	nonce, ct := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return plain, nil
}
