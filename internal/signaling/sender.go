package signaling

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/cmdlink/internal/medium"
)

// sender serializes outgoing signaling messages to the WebSocket.
type sender struct {
	dc   *medium.DataChannel
	conn *websocket.Conn
	mu   sync.Mutex
}

// send writes a signaling message to the WebSocket, guarded by a mutex.
func (s *sender) send(msg message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// sendOffer creates an SDP offer, sets it as local description, and sends it.
func (s *sender) sendOffer() error {
	offer, err := s.dc.CreateOffer()
	if err != nil {
		return err
	}
	if err := s.dc.SetLocalDescription(offer); err != nil {
		return err
	}
	return s.send(message{Type: msgTypeOffer, SDP: offer.SDP})
}

// sendAnswer creates an SDP answer, sets it as local description, and sends it.
func (s *sender) sendAnswer() error {
	answer, err := s.dc.CreateAnswer()
	if err != nil {
		return err
	}
	if err := s.dc.SetLocalDescription(answer); err != nil {
		return err
	}
	return s.send(message{Type: msgTypeAnswer, SDP: answer.SDP})
}

// trickle forwards local ICE candidates as they are gathered. Errors are
// ignored; a lost candidate only narrows the set ICE can try.
func (s *sender) trickle() {
	s.dc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		_ = s.send(message{Type: msgTypeCandidate, Candidate: string(data)})
	})
}
