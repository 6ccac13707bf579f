package channel

import (
	"sync"

	"github.com/1ureka/cmdlink/internal/protocol"
)

// waiter receives exactly one response payload, or observes a closed
// channel when the table shuts down.
type waiter struct {
	ch chan []byte
}

// pendingTable maps outstanding message ids to their waiters.
// An entry is removed by whichever of resolve, remove or closeAll runs
// first; the others then see nothing to do.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[protocol.MessageID]*waiter
	closed  bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[protocol.MessageID]*waiter)}
}

func (t *pendingTable) register(id protocol.MessageID) (*waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrChannelClosed
	}
	if _, ok := t.waiters[id]; ok {
		return nil, ErrDuplicateRequest
	}
	w := &waiter{ch: make(chan []byte, 1)}
	t.waiters[id] = w
	return w, nil
}

// resolve hands data to the waiter for id. It reports false when nobody
// is waiting.
func (t *pendingTable) resolve(id protocol.MessageID, data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.waiters[id]
	if !ok {
		return false
	}
	delete(t.waiters, id)
	w.ch <- data
	return true
}

// remove drops w if it is still registered under id.
func (t *pendingTable) remove(id protocol.MessageID, w *waiter) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiters[id] != w {
		return false
	}
	delete(t.waiters, id)
	return true
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// closeAll fails every outstanding waiter and rejects new registrations.
func (t *pendingTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, w := range t.waiters {
		close(w.ch)
		delete(t.waiters, id)
	}
}
