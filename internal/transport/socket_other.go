//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package transport

import (
	"syscall"

	"github.com/joshuafuller/dgram/internal/errors"
)

// No port reuse on this platform: one receiver per multicast port.
func controlReuse(network, address string, c syscall.RawConn) error {
	return nil
}

func platformReason(err error) errors.Reason {
	return errors.ReasonUnknown
}
