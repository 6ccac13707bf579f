package processor_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/1ureka/cmdlink/internal/pipeline"
	"github.com/1ureka/cmdlink/internal/processor"
)

// negotiatePair exchanges parameters between two instances as the
// handshake would.
func negotiatePair(t *testing.T, a, b pipeline.Processor) {
	t.Helper()
	pa, err := a.Negotiate()
	if err != nil {
		t.Fatalf("a.Negotiate: %v", err)
	}
	pb, err := b.Negotiate()
	if err != nil {
		t.Fatalf("b.Negotiate: %v", err)
	}
	if err := a.FinishNegotiate(pb); err != nil {
		t.Fatalf("a.FinishNegotiate: %v", err)
	}
	if err := b.FinishNegotiate(pa); err != nil {
		t.Fatalf("b.FinishNegotiate: %v", err)
	}
}

func newPair(t *testing.T, name string) (a, b pipeline.Processor) {
	t.Helper()
	pa, err := processor.ByName(name)
	if err != nil {
		t.Fatalf("ByName(%s): %v", name, err)
	}
	pb, _ := processor.ByName(name)
	negotiatePair(t, pa[0], pb[0])
	return pa[0], pb[0]
}

func TestInverseAcrossPeers(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("ping"),
		bytes.Repeat([]byte("command channel "), 512),
	}
	for _, name := range processor.Names() {
		t.Run(name, func(t *testing.T) {
			a, b := newPair(t, name)
			for _, in := range payloads {
				wire, err := a.Forward(in)
				if err != nil {
					t.Fatalf("Forward: %v", err)
				}
				out, err := b.Backward(wire)
				if err != nil {
					t.Fatalf("Backward: %v", err)
				}
				if !bytes.Equal(out, in) {
					t.Fatalf("round trip mismatch for %d byte payload", len(in))
				}

				// And the other direction.
				wire, _ = b.Forward(in)
				if out, err = a.Backward(wire); err != nil || !bytes.Equal(out, in) {
					t.Fatalf("reverse round trip: %v", err)
				}
			}
		})
	}
}

func TestNegotiateIsStable(t *testing.T) {
	for _, name := range processor.Names() {
		procs, _ := processor.ByName(name)
		first, _ := procs[0].Negotiate()
		second, _ := procs[0].Negotiate()
		if !bytes.Equal(first, second) {
			t.Errorf("%s: parameter changed between calls", name)
		}
	}
}

func TestSealRejectsTampering(t *testing.T) {
	a, b := newPair(t, "seal")
	wire, _ := a.Forward([]byte("secret"))
	if bytes.Contains(wire, []byte("secret")) {
		t.Fatal("plaintext visible on the wire")
	}
	wire[len(wire)-1] ^= 0x80
	if _, err := b.Backward(wire); err == nil {
		t.Fatal("tampered ciphertext accepted")
	}
	if _, err := b.Backward(wire[:4]); err == nil {
		t.Fatal("truncated ciphertext accepted")
	}
}

func TestSealDistinctSessions(t *testing.T) {
	a, _ := newPair(t, "seal")
	_, d := newPair(t, "seal")
	wire, _ := a.Forward([]byte("secret"))
	if _, err := d.Backward(wire); err == nil {
		t.Fatal("ciphertext opened under another session's key")
	}
}

func TestNotNegotiated(t *testing.T) {
	for _, name := range []string{"seal", "obfuscate"} {
		procs, _ := processor.ByName(name)
		if _, err := procs[0].Forward([]byte("x")); !errors.Is(err, processor.ErrNotNegotiated) {
			t.Errorf("%s: Forward before negotiation: %v", name, err)
		}
	}
}

func TestBadPeerParameter(t *testing.T) {
	for _, name := range []string{"seal", "obfuscate"} {
		procs, _ := processor.ByName(name)
		if err := procs[0].FinishNegotiate([]byte{1, 2, 3}); err == nil {
			t.Errorf("%s: short peer parameter accepted", name)
		}
	}
	procs, _ := processor.ByName("seal")
	if err := procs[0].FinishNegotiate(make([]byte, 32)); err == nil {
		t.Error("seal: all-zero peer key accepted")
	}
}

func TestCompressShrinks(t *testing.T) {
	a, b := newPair(t, "compress")
	in := bytes.Repeat([]byte("a"), 4096)
	wire, _ := a.Forward(in)
	if len(wire) >= len(in)/10 {
		t.Fatalf("compressed %d bytes to %d", len(in), len(wire))
	}
	if _, err := b.Backward([]byte("not zstd")); err == nil {
		t.Fatal("garbage decompressed")
	}
}

func TestObfuscateMasksAndVaries(t *testing.T) {
	a, _ := newPair(t, "obfuscate")
	in := []byte(strings.Repeat("visible ", 8))
	w1, _ := a.Forward(in)
	w2, _ := a.Forward(in)
	if bytes.Contains(w1, in) {
		t.Fatal("payload visible after masking")
	}
	if bytes.Equal(w1, w2) {
		t.Fatal("two maskings of one payload are identical")
	}
}

func TestByName(t *testing.T) {
	procs, err := processor.ByName("seal", processor.CompressID, " Obfuscate ")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	want := []string{processor.SealID, processor.CompressID, processor.ObfuscateID}
	for i, p := range procs {
		if p.ID() != want[i] {
			t.Errorf("procs[%d] = %s, want %s", i, p.ID(), want[i])
		}
	}
	if _, err := processor.ByName("rot13"); err == nil {
		t.Fatal("unknown processor accepted")
	}
}
