//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	goerrors "errors"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/joshuafuller/dgram/internal/errors"
)

// setSocketOptions enables address and port reuse so that several
// receivers on one host can bind the same multicast port.
func setSocketOptions(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
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
	case goerrors.Is(err, unix.EMSGSIZE):
		return errors.ReasonMessageTooLarge
	case goerrors.Is(err, unix.EACCES), goerrors.Is(err, unix.EPERM):
		return errors.ReasonPermissionDenied
	case goerrors.Is(err, unix.ENETUNREACH), goerrors.Is(err, unix.EHOSTUNREACH),
		goerrors.Is(err, unix.ECONNREFUSED), goerrors.Is(err, unix.EADDRNOTAVAIL):
		return errors.ReasonUnreachable
	default:
		return errors.ReasonUnknown
	}
}
