//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"fmt"
	"net"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/joshuafuller/dgram/internal/errors"
)

func TestSetSocketOptions_Unix(t *testing.T) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		t.Fatalf("Failed to create socket: %v", err)
	}
	defer func() { _ = unix.Close(fd) }()

	if err := setSocketOptions(uintptr(fd)); err != nil {
		t.Fatalf("setSocketOptions() failed: %v", err)
	}

	for name, opt := range map[string]int{"SO_REUSEADDR": unix.SO_REUSEADDR, "SO_REUSEPORT": unix.SO_REUSEPORT} {
		v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, opt)
		if err != nil {
			t.Errorf("getsockopt(%s) error = %v", name, err)
			continue
		}
		if v == 0 {
			t.Errorf("%s = 0, want enabled", name)
		}
	}
}

func TestPlatformReason(t *testing.T) {
	wrap := func(errno error) error {
		return &net.OpError{Op: "write", Net: "udp", Err: fmt.Errorf("sendto: %w", errno)}
	}

	tests := []struct {
		err  error
		want errors.Reason
	}{
		{err: wrap(unix.EMSGSIZE), want: errors.ReasonMessageTooLarge},
		{err: wrap(unix.EACCES), want: errors.ReasonPermissionDenied},
		{err: wrap(unix.EPERM), want: errors.ReasonPermissionDenied},
		{err: wrap(unix.ENETUNREACH), want: errors.ReasonUnreachable},
		{err: wrap(unix.EHOSTUNREACH), want: errors.ReasonUnreachable},
		{err: wrap(unix.ECONNREFUSED), want: errors.ReasonUnreachable},
		{err: wrap(unix.EBADF), want: errors.ReasonUnknown},
	}

	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
