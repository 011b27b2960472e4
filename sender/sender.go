package sender

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/protocol"
	"github.com/joshuafuller/dgram/internal/telemetry"
	"github.com/joshuafuller/dgram/internal/transport"
)

// Sender transmits datagrams to one Destination over one socket.
//
// A Sender is Open from a successful New until Close, and Closed after.
// Every Send on a Closed sender fails with *ClosedError without touching
// the network.
type Sender struct {
	id   uuid.UUID
	dest Destination
	addr *net.UDPAddr

	ttl          int
	ifaceName    string
	loopback     bool
	writeTimeout time.Duration
	logger       *zap.Logger
	metrics      *telemetry.Metrics
	newTransport func(network string, mc *transport.MulticastOptions) (transport.Transport, error)

	mu        sync.Mutex
	transport transport.Transport
	closed    bool
}

// New opens a socket for dest and applies the options.
//
// For Multicast destinations the TTL, egress interface and loopback
// options are set on the socket before New returns. Any failure closes the
// socket and returns a *ConfigurationError (or *NetworkError if the socket
// itself cannot be created); the returned Sender is then nil.
func New(dest Destination, opts ...Option) (*Sender, error) {
	if !dest.valid() {
		return nil, &errors.ConfigurationError{
			Field:   "destination",
			Message: "destination is not initialized; use NewDestination",
		}
	}

	s := &Sender{
		id:       uuid.New(),
		dest:     dest,
		ttl:      protocol.DefaultTTL,
		loopback: true,
		logger:   zap.NewNop(),
		newTransport: func(network string, mc *transport.MulticastOptions) (transport.Transport, error) {
			return transport.NewSendTransport(network, mc)
		},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	addr, err := dest.resolve()
	if err != nil {
		return nil, err
	}
	s.addr = addr

	var mc *transport.MulticastOptions
	if dest.Mode() == Multicast {
		if err := protocol.ValidateTTL(s.ttl); err != nil {
			return nil, err
		}
		mc = &transport.MulticastOptions{TTL: s.ttl, Loopback: s.loopback}
		if s.ifaceName != "" {
			ifi, err := net.InterfaceByName(s.ifaceName)
			if err != nil {
				return nil, &errors.ConfigurationError{
					Field:   "interface",
					Value:   s.ifaceName,
					Message: "no such network interface",
					Err:     err,
				}
			}
			mc.Interface = ifi
		}
	}

	t, err := s.newTransport(protocol.Network(addr.IP), mc)
	if err != nil {
		return nil, err
	}
	s.transport = t

	s.logger = s.logger.With(
		zap.String("sender_id", s.id.String()),
		zap.Stringer("destination", dest),
	)
	fields := []zap.Field{
		zap.Stringer("mode", dest.Mode()),
		zap.Stringer("local_addr", t.LocalAddr()),
	}
	if mc != nil {
		fields = append(fields, zap.Int("ttl", s.ttl), zap.Bool("loopback", s.loopback))
	}
	s.logger.Info("sender opened", fields...)

	return s, nil
}

// Send transmits payload as exactly one datagram and returns the number of
// bytes placed on the wire.
//
// ctx is checked before the datagram is issued and its deadline (or the
// WithWriteTimeout bound, whichever is sooner) limits how long the write
// may block. Once issued, the datagram cannot be recalled.
func (s *Sender) Send(ctx context.Context, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := s.dest.Mode().String()

	if s.closed {
		err := &errors.ClosedError{Operation: "send"}
		s.metrics.ObserveSend(mode, 0, err, 0)
		return 0, err
	}

	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	start := time.Now()
	n, err := s.transport.Send(ctx, payload, s.addr)
	s.metrics.ObserveSend(mode, n, err, time.Since(start))

	if err != nil {
		s.logger.Debug("send failed", zap.Int("bytes", len(payload)), zap.Int("sent", n), zap.Error(err))
		return n, err
	}

	s.logger.Debug("datagram sent", zap.Int("bytes", n))
	return n, nil
}

// TTL reads the multicast TTL (hop limit for IPv6) back from the socket.
// Unicast senders have none and return a *ConfigurationError.
func (s *Sender) TTL() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, &errors.ClosedError{Operation: "read ttl"}
	}
	if s.dest.Mode() != Multicast {
		return 0, &errors.ConfigurationError{
			Field:   "ttl",
			Message: "unicast senders do not configure a multicast ttl",
		}
	}
	return s.transport.MulticastTTL()
}

// Close releases the socket. It is safe to call more than once; only the
// first call can return an error.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.transport.Close()
	if err != nil {
		s.logger.Warn("sender closed with error", zap.Error(err))
		return err
	}
	s.logger.Info("sender closed")
	return nil
}

// Destination returns the destination given to New.
func (s *Sender) Destination() Destination {
	return s.dest
}

// ID identifies this sender in logs.
func (s *Sender) ID() uuid.UUID {
	return s.id
}

// LocalAddr returns the socket's bound address.
func (s *Sender) LocalAddr() net.Addr {
	return s.transport.LocalAddr()
}
