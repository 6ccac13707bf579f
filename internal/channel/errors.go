package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/cmdlink/internal/protocol"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrChannelClosed is returned by every operation after Close.
	ErrChannelClosed = errors.New("channel: closed")
	// ErrAlreadyOpened is returned by a second Open or Accept.
	ErrAlreadyOpened = errors.New("channel: already opened")
	// ErrDuplicateRequest is returned when a waiter for the same message
	// id is already outstanding.
	ErrDuplicateRequest = errors.New("channel: duplicate outstanding message id")
)

// ── Structured error types ───────────────────────────────────────────

// ProtocolMismatchError reports a peer speaking another channel kind, or
// a handshake answer that could not be understood.
type ProtocolMismatchError struct {
	Local  protocol.ChannelID
	Remote protocol.ChannelID
	Err    error // decode failure, nil on a plain id mismatch
}

func (e *ProtocolMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel: handshake response rejected: %v", e.Err)
	}
	return fmt.Sprintf("channel: protocol mismatch: local %s, remote %s", e.Local, e.Remote)
}

func (e *ProtocolMismatchError) Unwrap() error { return e.Err }

// HandshakeTimeoutError reports that the peer did not answer the
// handshake in time.
type HandshakeTimeoutError struct {
	After time.Duration
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("channel: handshake timed out after %s", e.After)
}

// Timeout reports true, matching net.Error's convention.
func (e *HandshakeTimeoutError) Timeout() bool { return true }

// PendingRequestTimeoutError reports that no response with the awaited
// message id arrived in time.
type PendingRequestTimeoutError struct {
	MessageID protocol.MessageID
	After     time.Duration
}

func (e *PendingRequestTimeoutError) Error() string {
	return fmt.Sprintf("channel: no response for %s within %s", e.MessageID, e.After)
}

// Timeout reports true, matching net.Error's convention.
func (e *PendingRequestTimeoutError) Timeout() bool { return true }

// OpenError reports a medium that failed to become ready.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string { return fmt.Sprintf("channel: open medium: %v", e.Err) }

func (e *OpenError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a handshake or pending-request timeout.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
