package transport

import (
	"context"
	goerrors "errors"
	"net"
	"os"

	"github.com/joshuafuller/dgram/internal/errors"
)

// classify maps a write error to a SendError reason.
func classify(err error) errors.Reason {
	if goerrors.Is(err, context.Canceled) {
		return errors.ReasonCanceled
	}
	if goerrors.Is(err, context.DeadlineExceeded) || goerrors.Is(err, os.ErrDeadlineExceeded) {
		return errors.ReasonTimeout
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errors.ReasonTimeout
	}
	return platformReason(err)
}

func reasonForContext(err error) errors.Reason {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return errors.ReasonTimeout
	}
	return errors.ReasonCanceled
}
