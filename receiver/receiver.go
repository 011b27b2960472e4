// Package receiver receives datagrams sent to a unicast address or a
// multicast group. It is the counterpart used to observe what a
// sender.Sender puts on the wire.
package receiver

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/protocol"
	"github.com/joshuafuller/dgram/internal/telemetry"
	"github.com/joshuafuller/dgram/internal/transport"
)

// Error types returned by this package.
type (
	ConfigurationError = errors.ConfigurationError
	NetworkError       = errors.NetworkError
	ClosedError        = errors.ClosedError
)

// Datagram is one received UDP payload.
type Datagram struct {
	Payload        []byte
	Source         net.Addr
	InterfaceIndex int // Zero when the platform does not report it
	ReceivedAt     time.Time
}

// Receiver owns one listening socket.
//
// Receive is meant to be called from a single goroutine; Close may be
// called from any goroutine and unblocks a pending Receive.
type Receiver struct {
	id        uuid.UUID
	ip        net.IP
	port      int
	mode      protocol.Mode
	ifaceName string
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	transport transport.Transport
	closed    atomic.Bool
}

// New binds a receiver.
//
// If address is a multicast group, the receiver binds the wildcard address
// on port and joins the group. Otherwise it binds address:port; an empty
// address binds all IPv4 interfaces. Port 0 picks an ephemeral port (see
// LocalAddr).
func New(ctx context.Context, address string, port int, opts ...Option) (*Receiver, error) {
	if port < 0 || port > protocol.MaxPort {
		return nil, &errors.ConfigurationError{
			Field:   "port",
			Value:   port,
			Message: "must be between 0 and 65535",
		}
	}

	ip, err := resolveIP(address)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		id:     uuid.New(),
		ip:     ip,
		port:   port,
		mode:   protocol.ModeUnicast,
		logger: zap.NewNop(),
	}
	if ip.IsMulticast() {
		r.mode = protocol.ModeMulticast
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.transport == nil {
		var ifi *net.Interface
		if r.ifaceName != "" {
			ifi, err = net.InterfaceByName(r.ifaceName)
			if err != nil {
				return nil, &errors.ConfigurationError{
					Field:   "interface",
					Value:   r.ifaceName,
					Message: "no such network interface",
					Err:     err,
				}
			}
		}

		t, err := transport.NewListenTransport(ctx, ip, port, ifi)
		if err != nil {
			return nil, err
		}
		r.transport = t
	}

	r.logger = r.logger.With(
		zap.String("receiver_id", r.id.String()),
		zap.Stringer("local_addr", r.transport.LocalAddr()),
	)
	r.logger.Info("receiver opened", zap.Stringer("mode", r.mode), zap.Stringer("address", ip))

	return r, nil
}

func resolveIP(address string) (net.IP, error) {
	if address == "" {
		return net.IPv4zero, nil
	}
	if ip := net.ParseIP(address); ip != nil {
		return ip, nil
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(address, "0"))
	if err != nil {
		return nil, &errors.ConfigurationError{
			Field:   "address",
			Value:   address,
			Message: "cannot resolve listen address",
			Err:     err,
		}
	}
	return addr.IP, nil
}

// Receive blocks until a datagram arrives, ctx is done, or the receiver is
// closed.
func (r *Receiver) Receive(ctx context.Context) (*Datagram, error) {
	if r.closed.Load() {
		return nil, &errors.ClosedError{Operation: "receive"}
	}

	packet, src, ifIndex, err := r.transport.Receive(ctx)
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveReceive(r.mode.String(), len(packet))
	r.logger.Debug("datagram received", zap.Int("bytes", len(packet)), zap.Stringer("source", src))

	return &Datagram{
		Payload:        packet,
		Source:         src,
		InterfaceIndex: ifIndex,
		ReceivedAt:     time.Now(),
	}, nil
}

// Close releases the socket. Subsequent calls return nil.
func (r *Receiver) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := r.transport.Close(); err != nil {
		return err
	}
	r.logger.Info("receiver closed")
	return nil
}

// LocalAddr returns the bound address, including the port chosen when New
// was given port 0.
func (r *Receiver) LocalAddr() net.Addr {
	return r.transport.LocalAddr()
}

// Port returns the bound UDP port.
func (r *Receiver) Port() int {
	if addr, ok := r.transport.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return r.port
}

// Group returns the joined multicast group, or nil for unicast receivers.
func (r *Receiver) Group() net.IP {
	if r.mode != protocol.ModeMulticast {
		return nil
	}
	return r.ip
}

// String returns the address the receiver listens on.
func (r *Receiver) String() string {
	return net.JoinHostPort(r.ip.String(), strconv.Itoa(r.Port()))
}
