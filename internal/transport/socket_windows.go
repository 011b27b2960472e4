//go:build windows

package transport

import (
	goerrors "errors"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/joshuafuller/dgram/internal/errors"
)

// setSocketOptions enables SO_REUSEADDR. Windows has no SO_REUSEPORT;
// SO_REUSEADDR alone allows several receivers to share a multicast port.
func setSocketOptions(fd uintptr) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}

func controlReuse(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = setSocketOptions(fd)
	}); err != nil {
		return err
	}
	return sockErr
}

func platformReason(err error) errors.Reason {
	switch {
	case goerrors.Is(err, windows.WSAEMSGSIZE):
		return errors.ReasonMessageTooLarge
	case goerrors.Is(err, windows.WSAEACCES):
		return errors.ReasonPermissionDenied
	case goerrors.Is(err, windows.WSAENETUNREACH), goerrors.Is(err, windows.WSAEHOSTUNREACH),
		goerrors.Is(err, windows.WSAECONNREFUSED):
		return errors.ReasonUnreachable
	default:
		return errors.ReasonUnknown
	}
}
