// Package errors defines the typed errors returned by dgram senders,
// receivers and transports.
//
// Every error is returned to the immediate caller as a value. Callers
// inspect them with the standard library:
//
//	var sendErr *errors.SendError
//	if goerrors.As(err, &sendErr) && sendErr.Reason == errors.ReasonMessageTooLarge {
//	    // shrink the payload
//	}
//
// The core never retries and never decides whether a failure is fatal;
// that policy belongs to whoever drives the sender.
package errors

import (
	"fmt"
)

// ConfigurationError reports an invalid destination or a socket option
// that could not be applied while constructing a sender or receiver.
//
// A component that fails construction with a ConfigurationError has
// already released its socket and must not be used.
type ConfigurationError struct {
	Field   string // Option or destination field, e.g. "ttl", "address"
	Value   any    // Offending value, nil when not applicable
	Message string // Human-readable constraint that was violated
	Err     error  // Underlying OS or parse error, may be nil
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (%v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Reason classifies why a transmission failed.
type Reason string

const (
	ReasonUnknown          Reason = "unknown"
	ReasonUnreachable      Reason = "destination unreachable"
	ReasonMessageTooLarge  Reason = "message too large"
	ReasonPermissionDenied Reason = "permission denied"
	ReasonTimeout          Reason = "timeout"
	ReasonCanceled         Reason = "canceled"
)

// SendError reports a failed transmission. The datagram was not handed to
// the OS (or the OS rejected it); nothing is retried.
type SendError struct {
	Operation   string // e.g. "send datagram"
	Destination string // host:port the datagram was addressed to
	Reason      Reason
	Err         error
}

func (e *SendError) Error() string {
	msg := fmt.Sprintf("send error: %s to %s: %s", e.Operation, e.Destination, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// PartialSendError reports that the OS accepted fewer bytes than the
// payload length. The datagram must be treated as not delivered.
type PartialSendError struct {
	Destination string
	Sent        int
	Expected    int
}

func (e *PartialSendError) Error() string {
	return fmt.Sprintf("partial send to %s: %d/%d bytes", e.Destination, e.Sent, e.Expected)
}

// ClosedError reports an operation attempted after the resource was
// released.
type ClosedError struct {
	Operation string
}

func (e *ClosedError) Error() string {
	if e.Operation == "" {
		return "use of closed datagram socket"
	}
	return fmt.Sprintf("%s: use of closed datagram socket", e.Operation)
}

// NetworkError represents socket-level failures outside the send path:
// binding, joining groups, receiving and closing.
type NetworkError struct {
	Operation string // e.g. "join group", "receive datagram"
	Err       error
	Details   string
}

func (e *NetworkError) Error() string {
	msg := "network error: " + e.Operation
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
