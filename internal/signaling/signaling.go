package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/cmdlink/internal/medium"
	"github.com/1ureka/cmdlink/internal/protocol"
	"github.com/1ureka/cmdlink/internal/util"
)

// ErrUnexpectedMessage is returned when the peer sends a signaling message
// out of turn.
var ErrUnexpectedMessage = errors.New("signaling: unexpected message")

// Session is what the host announces to a client once it connects.
type Session struct {
	ID     protocol.SessionID
	Medium string // "websocket" or "webrtc"
}

// Serve waits for a client on srv and announces session to it. The returned
// connection either becomes a medium.WebSocket or carries EstablishAsHost.
func Serve(ctx context.Context, srv *Server, session Session) (*websocket.Conn, error) {
	conn, err := srv.WaitForClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("signaling: wait for client: %w", err)
	}
	util.LogInfo("client connected from %s", conn.RemoteAddr())

	err = conn.WriteJSON(message{
		Type:    msgTypeSession,
		Session: session.ID.String(),
		Medium:  session.Medium,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("signaling: announce session: %w", err)
	}
	return conn, nil
}

// Dial connects to the host at url and reads its session announcement.
func Dial(ctx context.Context, url string) (*websocket.Conn, Session, error) {
	conn, err := connect(ctx, url)
	if err != nil {
		return nil, Session{}, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, Session{}, ctx.Err()
		}
		return nil, Session{}, fmt.Errorf("signaling: read session: %w", err)
	}
	if msg.Type != msgTypeSession {
		conn.Close()
		return nil, Session{}, fmt.Errorf("%w: %q before session", ErrUnexpectedMessage, msg.Type)
	}
	id, err := uuid.Parse(msg.Session)
	if err != nil {
		conn.Close()
		return nil, Session{}, fmt.Errorf("signaling: session id: %w", err)
	}
	util.LogInfo("joined session %s over %s", id, url)
	return conn, Session{ID: id, Medium: msg.Medium}, nil
}

// EstablishAsHost creates a DataChannel medium and drives the offer side
// of the SDP/ICE exchange over conn. The medium lives as long as ctx;
// timeout bounds the exchange. conn is closed once the DataChannel opens.
func EstablishAsHost(ctx context.Context, conn *websocket.Conn, timeout time.Duration) (*medium.DataChannel, error) {
	return establish(ctx, conn, timeout, true)
}

// EstablishAsClient is the answering counterpart of EstablishAsHost.
func EstablishAsClient(ctx context.Context, conn *websocket.Conn, timeout time.Duration) (*medium.DataChannel, error) {
	return establish(ctx, conn, timeout, false)
}

func establish(ctx context.Context, conn *websocket.Conn, timeout time.Duration, offerer bool) (*medium.DataChannel, error) {
	defer conn.Close()

	dc, err := medium.NewDataChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("signaling: create DataChannel: %w", err)
	}

	s := &sender{dc: dc, conn: conn}
	r := &receiver{dc: dc, conn: conn, sender: s}
	s.trickle()

	// watch exits when conn is closed by the deferred Close.
	errCh := make(chan error, 1)
	go func() { errCh <- r.watch() }()

	if offerer {
		if err := s.sendOffer(); err != nil {
			dc.Close()
			return nil, fmt.Errorf("signaling: send offer: %w", err)
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-dc.Ready():
		util.LogSuccess("WebRTC DataChannel established, closing signaling")
		return dc, nil
	case err := <-errCh:
		// The peer may close the WS right after its side opened.
		select {
		case <-dc.Ready():
			return dc, nil
		case <-time.After(time.Second):
		}
		dc.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)
	case <-expired:
		dc.Close()
		return nil, fmt.Errorf("signaling: DataChannel not open after %s", timeout)
	case <-ctx.Done():
		dc.Close()
		return nil, ctx.Err()
	}
}
