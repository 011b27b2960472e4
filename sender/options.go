package sender

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/telemetry"
	"github.com/joshuafuller/dgram/internal/transport"
)

// Option is a functional option for configuring a Sender.
//
// All options are applied during New, before the socket is opened. An
// option that rejects its value makes New fail with a *ConfigurationError.
//
// Example:
//
//	s, err := sender.New(dest,
//	    sender.WithTTL(4),
//	    sender.WithInterface("eth0"),
//	)
type Option func(*Sender) error

// WithTTL sets the multicast scope: the number of router hops a datagram
// may cross (0 keeps it on the host, 1 on the local link). For multicast
// destinations the value must be within 0-255 and defaults to 1. Unicast
// senders ignore it entirely.
func WithTTL(ttl int) Option {
	return func(s *Sender) error {
		s.ttl = ttl
		return nil
	}
}

// WithInterface selects the network interface multicast datagrams leave
// through. The name is looked up during New. Ignored for unicast.
func WithInterface(name string) Option {
	return func(s *Sender) error {
		if name == "" {
			return &errors.ConfigurationError{Field: "interface", Message: "interface name is empty"}
		}
		s.ifaceName = name
		return nil
	}
}

// WithLoopback controls whether multicast datagrams are also delivered to
// receivers on the sending host. Enabled by default. Ignored for unicast.
func WithLoopback(on bool) Option {
	return func(s *Sender) error {
		s.loopback = on
		return nil
	}
}

// WithWriteTimeout bounds how long a single Send may block on a full
// socket buffer. Zero (the default) means no timeout beyond the context
// passed to Send.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sender) error {
		if d < 0 {
			return &errors.ConfigurationError{Field: "write_timeout", Value: d, Message: "must not be negative"}
		}
		s.writeTimeout = d
		return nil
	}
}

// WithLogger sets the logger. Sends are logged at debug level, lifecycle
// events at info. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sender) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics records send counters and latencies in reg. Several senders
// may share one registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Sender) error {
		if reg == nil {
			return &errors.ConfigurationError{Field: "metrics", Message: "registerer is nil"}
		}
		s.metrics = telemetry.NewMetrics(reg)
		return nil
	}
}

// withTransport replaces socket creation; used by tests to inject a
// transport.MockTransport.
func withTransport(t transport.Transport) Option {
	return func(s *Sender) error {
		s.newTransport = func(string, *transport.MulticastOptions) (transport.Transport, error) {
			return t, nil
		}
		return nil
	}
}
