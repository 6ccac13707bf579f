package medium

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// collector gathers deliveries for assertions.
type collector struct {
	mu   sync.Mutex
	msgs [][]byte
	got  chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 1024)}
}

func (c *collector) receive(data []byte) {
	c.mu.Lock()
	c.msgs = append(c.msgs, data)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) [][]byte {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d messages", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.msgs...)
}

func openPair(t *testing.T) (*Loopback, *Loopback) {
	t.Helper()
	a, b := NewLoopback()
	ctx := context.Background()
	if err := a.Open(ctx, time.Second); err != nil {
		t.Fatalf("open a: %v", err)
	}
	if err := b.Open(ctx, time.Second); err != nil {
		t.Fatalf("open b: %v", err)
	}
	return a, b
}

func TestLoopbackDeliversInOrderWithoutDelay(t *testing.T) {
	a, b := openPair(t)
	c := newCollector()
	b.OnReceive(c.receive)

	for _, s := range []string{"one", "two", "three"} {
		if err := a.Transmit([]byte(s)); err != nil {
			t.Fatalf("Transmit: %v", err)
		}
	}

	got := c.wait(t, 3)
	for i, want := range []string{"one", "two", "three"} {
		if string(got[i]) != want {
			t.Errorf("msg %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestLoopbackCopiesData(t *testing.T) {
	a, b := openPair(t)
	c := newCollector()
	b.OnReceive(c.receive)

	buf := []byte("abc")
	a.Transmit(buf)
	buf[0] = 'X'

	if got := c.wait(t, 1); string(got[0]) != "abc" {
		t.Fatalf("delivered %q, want abc", got[0])
	}
}

func TestLoopbackWithDelay(t *testing.T) {
	a, b := openPair(t)
	a.MaxDelay = 20 * time.Millisecond
	c := newCollector()
	b.OnReceive(c.receive)

	const n = 50
	for i := 0; i < n; i++ {
		a.Transmit([]byte{byte(i)})
	}

	got := c.wait(t, n)
	seen := make(map[byte]bool)
	for _, m := range got {
		seen[m[0]] = true
	}
	if len(seen) != n {
		t.Fatalf("received %d distinct messages, want %d", len(seen), n)
	}
}

func TestLoopbackTransmitBeforeOpen(t *testing.T) {
	a, _ := NewLoopback()
	if err := a.Transmit([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Transmit before Open = %v, want ErrNotOpen", err)
	}
}

func TestLoopbackClose(t *testing.T) {
	a, b := openPair(t)
	c := newCollector()
	b.OnReceive(c.receive)

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	a.Transmit([]byte("dropped"))
	select {
	case <-c.got:
		t.Fatal("closed end received a message")
	case <-time.After(50 * time.Millisecond):
	}

	if err := b.Transmit([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Transmit on closed end = %v, want ErrClosed", err)
	}
	if err := b.Open(context.Background(), time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Open on closed end = %v, want ErrClosed", err)
	}
	if b.CanReceive() || b.CanTransmit() {
		t.Error("closed end still reports capabilities")
	}
	select {
	case <-b.Done():
	default:
		t.Error("Done not closed after Close")
	}
}

func TestWaitReady(t *testing.T) {
	ready := make(chan struct{})
	done := make(chan struct{})

	if err := waitReady(context.Background(), 10*time.Millisecond, ready, done); !errors.Is(err, ErrOpenTimeout) {
		t.Errorf("timeout case = %v, want ErrOpenTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitReady(ctx, 0, ready, done); !errors.Is(err, context.Canceled) {
		t.Errorf("cancel case = %v, want context.Canceled", err)
	}

	close(done)
	if err := waitReady(context.Background(), 0, ready, done); !errors.Is(err, ErrClosed) {
		t.Errorf("done case = %v, want ErrClosed", err)
	}
}
