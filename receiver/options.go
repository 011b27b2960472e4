package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/telemetry"
	"github.com/joshuafuller/dgram/internal/transport"
)

// Option configures a Receiver during New.
type Option func(*Receiver) error

// WithInterface joins the multicast group on the named interface instead
// of the system default. Ignored for unicast receivers.
func WithInterface(name string) Option {
	return func(r *Receiver) error {
		if name == "" {
			return &errors.ConfigurationError{Field: "interface", Message: "interface name is empty"}
		}
		r.ifaceName = name
		return nil
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Receiver) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// WithMetrics counts received datagrams and bytes in reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Receiver) error {
		if reg == nil {
			return &errors.ConfigurationError{Field: "metrics", Message: "registerer is nil"}
		}
		r.metrics = telemetry.NewMetrics(reg)
		return nil
	}
}

func withTransport(t transport.Transport) Option {
	return func(r *Receiver) error {
		r.transport = t
		return nil
	}
}
