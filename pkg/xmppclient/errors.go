package xmppclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCollectorCancelled is returned by Collector.NextResult after the
// collector has been cancelled, either explicitly or by a connection
// shutdown.
var ErrCollectorCancelled = errors.New("xmppclient: collector cancelled")

// ConnectionError reports a transport-level failure to establish the
// connection. The connection is left disconnected.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return "xmppclient: unable to connect: " + e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// AuthenticationError reports a credential rejection. The connection
// stays connected; the caller may retry with different credentials.
type AuthenticationError struct {
	// Condition is the SASL failure condition local name, e.g.
	// "not-authorized" (RFC 6120 section 6.5).
	Condition string
	Text      string
}

func (e *AuthenticationError) Error() string {
	s := "xmppclient: authentication failed"
	if e.Condition != "" {
		s += ": " + e.Condition
	}
	if e.Text != "" {
		s += " (" + e.Text + ")"
	}
	return s
}

// IllegalStateError reports an operation that is invalid for the
// connection's current state, e.g. logging in while disconnected. It is
// a programmer error and is never retried internally.
type IllegalStateError struct {
	Op    string
	State State
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("xmppclient: %s is not valid in state %s", e.Op, e.State)
}

// TransportError reports a send-path failure. It does not by itself
// change the connection state; a transport-level disconnection is
// detected asynchronously and surfaced through the state machine.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "xmppclient: transport send failed: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }
