// Package medium provides the byte-level transports a command channel runs
// over. A medium moves whole messages: every Transmit on one end arrives as
// exactly one OnReceive delivery on the other end, or not at all.
package medium

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed medium.
	ErrClosed = errors.New("medium: closed")
	// ErrNotOpen is returned by Transmit before Open succeeded.
	ErrNotOpen = errors.New("medium: not open")
	// ErrOpenTimeout is returned when Open does not become ready in time.
	ErrOpenTimeout = errors.New("medium: open timed out")
)

// Medium is a raw message transport.
type Medium interface {
	// CanReceive reports whether deliveries may still arrive.
	CanReceive() bool
	// CanTransmit reports whether Transmit is currently accepted.
	CanTransmit() bool
	// Open blocks until the medium is ready, the timeout elapses or ctx
	// is cancelled.
	Open(ctx context.Context, timeout time.Duration) error
	// Transmit sends one message. It is safe for concurrent use.
	Transmit(data []byte) error
	// OnReceive registers the callback invoked for every delivered message.
	// The callback may run on any goroutine, concurrently with itself.
	OnReceive(fn func([]byte))
	// Done is closed once the medium has shut down.
	Done() <-chan struct{}
	// Close releases the medium. It is safe to call more than once.
	Close() error
}

// waitReady blocks on ready, honouring ctx and an optional timeout.
func waitReady(ctx context.Context, timeout time.Duration, ready, done <-chan struct{}) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ready:
		return nil
	case <-done:
		return ErrClosed
	case <-timer:
		return ErrOpenTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
