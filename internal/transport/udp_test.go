package transport

import (
	"bytes"
	"context"
	goerrors "errors"
	"net"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/protocol"
)

var loopbackV4 = net.IPv4(127, 0, 0, 1)

// newLoopbackPair returns a send transport and a receive transport bound to
// an ephemeral loopback port, plus the receiver's address.
func newLoopbackPair(t *testing.T) (*UDPTransport, *UDPTransport, *net.UDPAddr) {
	t.Helper()

	rx, err := NewListenTransport(context.Background(), loopbackV4, 0, nil)
	if err != nil {
		t.Fatalf("NewListenTransport() error = %v", err)
	}
	t.Cleanup(func() { _ = rx.Close() })

	tx, err := NewSendTransport("udp4", nil)
	if err != nil {
		t.Fatalf("NewSendTransport() error = %v", err)
	}
	t.Cleanup(func() { _ = tx.Close() })

	return tx, rx, rx.LocalAddr().(*net.UDPAddr)
}

func TestUDPTransport_SendReceive(t *testing.T) {
	tx, rx, dest := newLoopbackPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := []byte("Hello from sender!")
	n, err := tx.Send(ctx, payload, dest)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n != len(payload) {
		t.Errorf("Send() n = %d, want %d", n, len(payload))
	}

	got, src, _, err := rx.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive() payload = %q, want %q", got, payload)
	}
	if srcUDP, ok := src.(*net.UDPAddr); !ok || srcUDP.Port != tx.LocalAddr().(*net.UDPAddr).Port {
		t.Errorf("Receive() src = %v, want sender port %v", src, tx.LocalAddr())
	}
}

func TestUDPTransport_SendEmptyPayload(t *testing.T) {
	tx, rx, dest := newLoopbackPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := tx.Send(ctx, nil, dest)
	if err != nil {
		t.Fatalf("Send(empty) error = %v", err)
	}
	if n != 0 {
		t.Errorf("Send(empty) n = %d, want 0", n)
	}

	got, _, _, err := rx.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Receive() = %d bytes, want zero-length datagram", len(got))
	}
}

func TestUDPTransport_SendOversize(t *testing.T) {
	tx, _, dest := newLoopbackPair(t)

	payload := make([]byte, protocol.MaxPayloadIPv4+1)
	n, err := tx.Send(context.Background(), payload, dest)
	if err == nil {
		t.Fatal("Send(oversize) error = nil, want SendError")
	}
	if n != 0 {
		t.Errorf("Send(oversize) n = %d, want 0", n)
	}

	var sendErr *errors.SendError
	if !goerrors.As(err, &sendErr) {
		t.Fatalf("error type = %T, want *errors.SendError", err)
	}
	if sendErr.Reason != errors.ReasonMessageTooLarge {
		t.Errorf("Reason = %q, want %q", sendErr.Reason, errors.ReasonMessageTooLarge)
	}
}

func TestUDPTransport_SendMaxPayload(t *testing.T) {
	// Other kernels cap loopback datagrams below the protocol limit (macOS: net.inet.udp.maxdgram).
	if runtime.GOOS != "linux" {
		t.Skip("maximum-size datagrams are only guaranteed on Linux loopback")
	}

	tx, rx, dest := newLoopbackPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := bytes.Repeat([]byte{0xab}, protocol.MaxPayloadIPv4)
	n, err := tx.Send(ctx, payload, dest)
	if err != nil {
		t.Fatalf("Send(max) error = %v", err)
	}
	if n != len(payload) {
		t.Errorf("Send(max) n = %d, want %d", n, len(payload))
	}

	got, _, _, err := rx.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(got) != len(payload) {
		t.Errorf("Receive() = %d bytes, want %d", len(got), len(payload))
	}
}

func TestUDPTransport_SendCanceledContext(t *testing.T) {
	tx, _, dest := newLoopbackPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tx.Send(ctx, []byte("x"), dest)
	var sendErr *errors.SendError
	if !goerrors.As(err, &sendErr) {
		t.Fatalf("Send() error = %v, want *errors.SendError", err)
	}
	if sendErr.Reason != errors.ReasonCanceled {
		t.Errorf("Reason = %q, want %q", sendErr.Reason, errors.ReasonCanceled)
	}
	if !goerrors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false")
	}
}

func TestUDPTransport_Close(t *testing.T) {
	tx, _, dest := newLoopbackPair(t)

	if err := tx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	_, err := tx.Send(context.Background(), []byte("x"), dest)
	var closedErr *errors.ClosedError
	if !goerrors.As(err, &closedErr) {
		t.Errorf("Send() after Close error = %v, want *errors.ClosedError", err)
	}

	if _, err := tx.MulticastTTL(); !goerrors.As(err, &closedErr) {
		t.Errorf("MulticastTTL() after Close error = %v, want *errors.ClosedError", err)
	}
}

func TestUDPTransport_ReceiveTimeout(t *testing.T) {
	_, rx, _ := newLoopbackPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, _, err := rx.Receive(ctx)
	var netErr *errors.NetworkError
	if !goerrors.As(err, &netErr) {
		t.Fatalf("Receive() error = %v, want *errors.NetworkError", err)
	}
}

func TestUDPTransport_ReceiveCancelUnblocks(t *testing.T) {
	_, rx, _ := newLoopbackPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, _, _, err := rx.Receive(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !goerrors.Is(err, context.Canceled) {
			t.Errorf("Receive() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive() did not return after context cancellation")
	}

	// A later receive with a live context must not inherit the forced deadline.
	tx, err := NewSendTransport("udp4", nil)
	if err != nil {
		t.Fatalf("NewSendTransport() error = %v", err)
	}
	defer func() { _ = tx.Close() }()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if _, err := tx.Send(ctx2, []byte("again"), rx.LocalAddr()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got, _, _, err := rx.Receive(ctx2); err != nil || string(got) != "again" {
		t.Errorf("Receive() = %q, %v, want \"again\"", got, err)
	}
}

func TestUDPTransport_ReceiveAfterClose(t *testing.T) {
	_, rx, _ := newLoopbackPair(t)
	_ = rx.Close()

	_, _, _, err := rx.Receive(context.Background())
	var closedErr *errors.ClosedError
	if !goerrors.As(err, &closedErr) {
		t.Errorf("Receive() after Close error = %v, want *errors.ClosedError", err)
	}
}

func TestNewSendTransport_MulticastTTL(t *testing.T) {
	for _, ttl := range []int{0, 1, 2, 32, 64, 128, 255} {
		tx, err := NewSendTransport("udp4", &MulticastOptions{TTL: ttl, Loopback: true})
		if err != nil {
			t.Fatalf("NewSendTransport(ttl=%d) error = %v", ttl, err)
		}

		got, err := tx.MulticastTTL()
		if err != nil {
			t.Errorf("MulticastTTL() error = %v", err)
		} else if got != ttl {
			t.Errorf("MulticastTTL() = %d, want %d", got, ttl)
		}
		_ = tx.Close()
	}
}

func TestNewSendTransport_InvalidTTL(t *testing.T) {
	for _, ttl := range []int{-1, 256, 1000} {
		tx, err := NewSendTransport("udp4", &MulticastOptions{TTL: ttl})
		if err == nil {
			_ = tx.Close()
			t.Errorf("NewSendTransport(ttl=%d) error = nil, want ConfigurationError", ttl)
			continue
		}
		var cfgErr *errors.ConfigurationError
		if !goerrors.As(err, &cfgErr) {
			t.Errorf("NewSendTransport(ttl=%d) error type = %T, want *errors.ConfigurationError", ttl, err)
		}
	}
}

func TestNewSendTransport_UnknownNetwork(t *testing.T) {
	_, err := NewSendTransport("udp5", nil)
	var netErr *errors.NetworkError
	if !goerrors.As(err, &netErr) {
		t.Errorf("NewSendTransport(udp5) error = %v, want *errors.NetworkError", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Reason
	}{
		{name: "deadline", err: os.ErrDeadlineExceeded, want: errors.ReasonTimeout},
		{name: "wrapped deadline", err: &net.OpError{Op: "write", Net: "udp", Err: os.ErrDeadlineExceeded}, want: errors.ReasonTimeout},
		{name: "canceled", err: context.Canceled, want: errors.ReasonCanceled},
		{name: "other", err: goerrors.New("boom"), want: errors.ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestBufferPool(t *testing.T) {
	b := GetBuffer()
	if len(*b) != protocol.ReceiveBufferSize {
		t.Errorf("GetBuffer() len = %d, want %d", len(*b), protocol.ReceiveBufferSize)
	}
	*b = (*b)[:10]
	PutBuffer(b)

	b2 := GetBuffer()
	if len(*b2) != protocol.ReceiveBufferSize {
		t.Errorf("GetBuffer() after Put len = %d, want %d", len(*b2), protocol.ReceiveBufferSize)
	}
	PutBuffer(b2)
	PutBuffer(nil)
}

func TestUDPTransport_ReceiveAfterCancelKeepsDeadline(t *testing.T) {
	tx, rx, dest := newLoopbackPair(t)

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _, _, _ = rx.Receive(ctx)
		}()
		time.Sleep(time.Millisecond)
		cancel()
		<-done

		if _, err := tx.Send(context.Background(), []byte("next"), dest); err != nil {
			t.Fatalf("Send() error = %v", err)
		}

		// No deadline: a stale cancellation callback must not cut this read short.
		got, _, _, err := rx.Receive(context.Background())
		if err != nil {
			t.Fatalf("iteration %d: Receive() error = %v", i, err)
		}
		if string(got) != "next" {
			t.Fatalf("iteration %d: Receive() = %q, want \"next\"", i, got)
		}
	}
}

func newIPv6LoopbackPair(t *testing.T) (*UDPTransport, *UDPTransport, *net.UDPAddr) {
	t.Helper()

	rx, err := NewListenTransport(context.Background(), net.IPv6loopback, 0, nil)
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	t.Cleanup(func() { _ = rx.Close() })

	tx, err := NewSendTransport("udp6", nil)
	if err != nil {
		t.Skipf("IPv6 send socket unavailable: %v", err)
	}
	t.Cleanup(func() { _ = tx.Close() })

	return tx, rx, rx.LocalAddr().(*net.UDPAddr)
}

func TestNewSendTransport_MulticastHopLimit(t *testing.T) {
	for _, hops := range []int{0, 1, 2, 32, 64, 128, 255} {
		tx, err := NewSendTransport("udp6", &MulticastOptions{TTL: hops, Loopback: true})
		if err != nil {
			var netErr *errors.NetworkError
			if goerrors.As(err, &netErr) {
				t.Skipf("IPv6 unavailable: %v", err)
			}
			t.Fatalf("NewSendTransport(udp6, hops=%d) error = %v", hops, err)
		}

		got, err := tx.MulticastTTL()
		if err != nil {
			t.Errorf("MulticastTTL() error = %v", err)
		} else if got != hops {
			t.Errorf("MulticastTTL() = %d, want %d", got, hops)
		}
		_ = tx.Close()
	}
}

func TestUDPTransport_IPv6PayloadLimit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("maximum-size datagrams are only guaranteed on Linux loopback")
	}

	tx, rx, dest := newIPv6LoopbackPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := bytes.Repeat([]byte{0xcd}, protocol.MaxPayloadIPv6)
	n, err := tx.Send(ctx, payload, dest)
	if err != nil {
		t.Fatalf("Send(%d bytes) error = %v", len(payload), err)
	}
	if n != len(payload) {
		t.Errorf("Send() n = %d, want %d", n, len(payload))
	}

	got, _, _, err := rx.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive() = %d bytes, want %d", len(got), len(payload))
	}

	n, err = tx.Send(ctx, append(payload, 0), dest)
	var sendErr *errors.SendError
	if !goerrors.As(err, &sendErr) {
		t.Fatalf("Send(%d bytes) error = %v, want *errors.SendError", len(payload)+1, err)
	}
	if sendErr.Reason != errors.ReasonMessageTooLarge {
		t.Errorf("Reason = %q, want %q", sendErr.Reason, errors.ReasonMessageTooLarge)
	}
	if n != 0 {
		t.Errorf("Send(oversize) n = %d, want 0", n)
	}
}
