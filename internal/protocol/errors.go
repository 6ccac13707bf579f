package protocol

import "fmt"

// MalformedPacketError reports a structural decode failure.
type MalformedPacketError struct {
	Length int    // size of the offending buffer
	Reason string // what was inconsistent
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("malformed packet (%d bytes): %s", e.Length, e.Reason)
}

// IntegrityError reports a digest that does not match the payload.
type IntegrityError struct {
	MessageID MessageID
	Err       error // digest parse failure, nil on plain mismatch
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity check failed for %s: %v", e.MessageID, e.Err)
	}
	return fmt.Sprintf("integrity check failed for %s: digest mismatch", e.MessageID)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
