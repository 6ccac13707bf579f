// Package signaling bootstraps a command-channel session over a
// PIN-guarded WebSocket: the host announces the session, then the
// connection either becomes the medium itself or carries the SDP/ICE
// exchange for a WebRTC DataChannel.
package signaling

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeSession   messageType = "session"
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket.
type message struct {
	Type      messageType `json:"type"`
	Session   string      `json:"session,omitempty"`
	Medium    string      `json:"medium,omitempty"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
