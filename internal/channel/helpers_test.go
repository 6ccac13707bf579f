package channel_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/channel"
	"github.com/1ureka/cmdlink/internal/medium"
	"github.com/1ureka/cmdlink/internal/pipeline"
)

var testChannelID = uuid.MustParse("0b6f3b7e-2f5d-4c8e-9a51-6c2d1f0e8a44")

// xorProcessor XORs every byte with a key derived from both parameters.
type xorProcessor struct {
	local byte
	key   byte
}

func (x *xorProcessor) ID() string                 { return "xor" }
func (x *xorProcessor) Negotiate() ([]byte, error) { return []byte{x.local}, nil }

func (x *xorProcessor) FinishNegotiate(peer []byte) error {
	if len(peer) != 1 {
		return errors.New("xor: bad parameter")
	}
	x.key = x.local ^ peer[0]
	if x.key == 0 {
		x.key = 0xA5
	}
	return nil
}

func (x *xorProcessor) Forward(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ x.key
	}
	return out, nil
}

func (x *xorProcessor) Backward(data []byte) ([]byte, error) { return x.Forward(data) }

// tagProcessor appends a trailer on the way out and requires it on the
// way in.
type tagProcessor struct{}

func (tagProcessor) ID() string                   { return "tag" }
func (tagProcessor) Negotiate() ([]byte, error)   { return nil, nil }
func (tagProcessor) FinishNegotiate([]byte) error { return nil }

func (tagProcessor) Forward(data []byte) ([]byte, error) {
	return append(bytes.Clone(data), "#tag"...), nil
}

func (tagProcessor) Backward(data []byte) ([]byte, error) {
	if !bytes.HasSuffix(data, []byte("#tag")) {
		return nil, errors.New("tag: missing trailer")
	}
	return data[:len(data)-4], nil
}

type pair struct {
	a, b   *channel.Channel
	ma, mb *medium.Loopback
}

// newPair builds two channels over a loopback pair sharing one session.
func newPair(t *testing.T, delay time.Duration, optsA, optsB channel.Options) *pair {
	t.Helper()
	ma, mb := medium.NewLoopback()
	ma.MaxDelay = delay
	mb.MaxDelay = delay

	session := uuid.New()
	if optsA.SessionID == uuid.Nil {
		optsA.SessionID = session
	}
	if optsB.SessionID == uuid.Nil {
		optsB.SessionID = session
	}
	p := &pair{
		a:  channel.New(ma, optsA),
		b:  channel.New(mb, optsB),
		ma: ma,
		mb: mb,
	}
	t.Cleanup(func() {
		p.a.Close()
		p.b.Close()
	})
	return p
}

func defaultOpts(procs ...pipeline.Processor) channel.Options {
	return channel.Options{ChannelID: testChannelID, Processors: procs}
}

// openBoth opens both ends concurrently and fails the test on any error.
func (p *pair) openBoth(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, c := range []*channel.Channel{p.a, p.b} {
		wg.Add(1)
		go func(c *channel.Channel) {
			defer wg.Done()
			errs <- c.Open(ctx, 2*time.Second)
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
}

// echo makes c answer every unclaimed message with "re:" + payload.
func echo(c *channel.Channel) {
	c.OnData(func(ev channel.DataEvent) {
		c.Transmit(ev.MessageID, append([]byte("re:"), ev.Payload...))
	})
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
