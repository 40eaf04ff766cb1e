package protocol

import "fmt"

// ParseError means the inbound frame was not valid JSON. The sender gets an
// error frame back; the connection stays open.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "invalid message format" }

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError means a kind-specific required field was missing or empty.
// Field names the violation; the frame is neither broadcast nor persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s is required", e.Field)
}
