package medium

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/cmdlink/internal/util"
)

// WebSocket carries each channel packet as one binary WebSocket message.
type WebSocket struct {
	conn *websocket.Conn

	wmu     sync.Mutex // gorilla allows one concurrent writer
	mu      sync.RWMutex
	handler func([]byte)

	open      atomic.Bool
	readOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocket wraps an established connection. Reading starts on Open.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn, done: make(chan struct{})}
}

func (w *WebSocket) CanReceive() bool  { return !w.closed() }
func (w *WebSocket) CanTransmit() bool { return w.open.Load() && !w.closed() }

// Open starts the read loop. The underlying connection is already
// established, so Open only fails when the medium is closed or ctx is done.
func (w *WebSocket) Open(ctx context.Context, timeout time.Duration) error {
	if w.closed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.readOnce.Do(func() {
		w.open.Store(true)
		go w.readLoop()
	})
	return nil
}

func (w *WebSocket) readLoop() {
	defer w.Close()

	for {
		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			if !w.closed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.LogError("websocket read failed: %v", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			util.LogDebug("ignoring websocket message of type %d", typ)
			continue
		}

		w.mu.RLock()
		fn := w.handler
		w.mu.RUnlock()
		if fn != nil {
			fn(data)
		}
	}
}

// Transmit writes data as a single binary message.
func (w *WebSocket) Transmit(data []byte) error {
	if w.closed() {
		return ErrClosed
	}
	if !w.open.Load() {
		return ErrNotOpen
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *WebSocket) OnReceive(fn func([]byte)) {
	w.mu.Lock()
	w.handler = fn
	w.mu.Unlock()
}

func (w *WebSocket) Done() <-chan struct{} { return w.done }

// Close sends a close frame and tears the connection down.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)

		w.wmu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.wmu.Unlock()

		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			util.LogDebug("websocket close frame: %v", werr)
		}
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocket) closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}
