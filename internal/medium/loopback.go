package medium

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Loopback is one end of an in-process medium pair. Messages transmitted on
// one end are delivered to the other end's OnReceive handler, optionally
// after a random delay in [0, MaxDelay) which also reorders them.
type Loopback struct {
	MaxDelay time.Duration

	mu      sync.RWMutex
	handler func([]byte)
	peer    *Loopback

	open      atomic.Bool
	readyOnce sync.Once
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoopback creates a linked pair of loopback media.
func NewLoopback() (a, b *Loopback) {
	a = &Loopback{ready: make(chan struct{}), done: make(chan struct{})}
	b = &Loopback{ready: make(chan struct{}), done: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (l *Loopback) CanReceive() bool  { return !l.closed() }
func (l *Loopback) CanTransmit() bool { return l.open.Load() && !l.closed() }

// Open marks this end ready. A loopback end needs no peer to open.
func (l *Loopback) Open(ctx context.Context, timeout time.Duration) error {
	if l.closed() {
		return ErrClosed
	}
	l.readyOnce.Do(func() {
		l.open.Store(true)
		close(l.ready)
	})
	return waitReady(ctx, timeout, l.ready, l.done)
}

// Transmit schedules delivery of data to the peer. If either side closes
// before delivery, the message is silently dropped.
func (l *Loopback) Transmit(data []byte) error {
	if l.closed() {
		return ErrClosed
	}
	if !l.open.Load() {
		return ErrNotOpen
	}

	msg := append([]byte(nil), data...)
	if l.MaxDelay <= 0 {
		l.peer.deliver(msg)
		return nil
	}

	go func() {
		delay := time.Duration(rand.Int63n(int64(l.MaxDelay)))
		select {
		case <-time.After(delay):
		case <-l.done:
			return
		case <-l.peer.done:
			return
		}
		l.peer.deliver(msg)
	}()
	return nil
}

// Inject delivers data to this end's handler as if the peer had sent it.
func (l *Loopback) Inject(data []byte) {
	l.deliver(append([]byte(nil), data...))
}

func (l *Loopback) deliver(msg []byte) {
	if l.closed() {
		return
	}
	l.mu.RLock()
	fn := l.handler
	l.mu.RUnlock()

	if fn != nil {
		fn(msg)
	}
}

// OnReceive registers the delivery callback.
func (l *Loopback) OnReceive(fn func([]byte)) {
	l.mu.Lock()
	l.handler = fn
	l.mu.Unlock()
}

func (l *Loopback) Done() <-chan struct{} { return l.done }

// Close shuts this end down. Messages the peer sends afterwards are dropped.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

func (l *Loopback) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
