package sender

import "github.com/joshuafuller/dgram/internal/errors"

// Error types returned by this package. Inspect them with errors.As.
type (
	ConfigurationError = errors.ConfigurationError
	SendError          = errors.SendError
	PartialSendError   = errors.PartialSendError
	ClosedError        = errors.ClosedError
	NetworkError       = errors.NetworkError
	Reason             = errors.Reason
)

// Reasons carried by SendError.
const (
	ReasonUnknown          = errors.ReasonUnknown
	ReasonUnreachable      = errors.ReasonUnreachable
	ReasonMessageTooLarge  = errors.ReasonMessageTooLarge
	ReasonPermissionDenied = errors.ReasonPermissionDenied
	ReasonTimeout          = errors.ReasonTimeout
	ReasonCanceled         = errors.ReasonCanceled
)
