package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/cmdlink/internal/medium"
)

// receiver feeds the peer's half of the SDP/ICE exchange into dc. An
// offer is answered through sender.
type receiver struct {
	dc     *medium.DataChannel
	conn   *websocket.Conn
	sender *sender
}

func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("signaling: read: %w", err)
		}
		if err := r.apply(msg); err != nil {
			return err
		}
	}
}

// apply dispatches one message. The session announcement belongs to Dial,
// so seeing it here, or any unknown type, ends the exchange.
func (r *receiver) apply(msg message) error {
	switch msg.Type {
	case msgTypeOffer:
		return r.applyOffer(msg.SDP)
	case msgTypeAnswer:
		return r.remote(webrtc.SDPTypeAnswer, msg.SDP)
	case msgTypeCandidate:
		return r.applyCandidate(msg.Candidate)
	default:
		return fmt.Errorf("%w: %q during SDP exchange", ErrUnexpectedMessage, msg.Type)
	}
}

func (r *receiver) applyOffer(sdp string) error {
	if err := r.remote(webrtc.SDPTypeOffer, sdp); err != nil {
		return err
	}
	if err := r.sender.sendAnswer(); err != nil {
		return fmt.Errorf("signaling: send answer: %w", err)
	}
	return nil
}

func (r *receiver) remote(typ webrtc.SDPType, sdp string) error {
	desc := webrtc.SessionDescription{Type: typ, SDP: sdp}
	if err := r.dc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("signaling: remote %s: %w", typ, err)
	}
	return nil
}

func (r *receiver) applyCandidate(raw string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(raw), &init); err != nil {
		return fmt.Errorf("signaling: parse ICE candidate: %w", err)
	}
	if err := r.dc.AddICECandidate(init); err != nil {
		return fmt.Errorf("signaling: add ICE candidate: %w", err)
	}
	return nil
}
