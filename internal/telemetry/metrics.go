// Package telemetry exposes prometheus metrics for datagram senders and
// receivers.
package telemetry

import (
	goerrors "errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshuafuller/dgram/internal/errors"
)

const namespace = "dgram"

// Send results used as the "result" label.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultPartial = "partial"
	ResultClosed  = "closed"
)

// Metrics groups the collectors for one process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	DatagramsSent     *prometheus.CounterVec
	BytesSent         *prometheus.CounterVec
	SendDuration      *prometheus.HistogramVec
	DatagramsReceived *prometheus.CounterVec
	BytesReceived     *prometheus.CounterVec
	buildInfo         *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. Calling it
// again with the same registry returns collectors backed by the ones
// already registered, so several senders can share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DatagramsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_sent_total",
				Help:      "Datagrams handed to the OS, by destination mode and result.",
			},
			[]string{"mode", "result"},
		),
		BytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_sent_total",
				Help:      "Payload bytes placed on the wire.",
			},
			[]string{"mode"},
		),
		SendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Latency of a single send call.",
				// 10us .. ~80ms
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
			},
			[]string{"mode"},
		),
		DatagramsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_received_total",
				Help:      "Datagrams delivered by receivers.",
			},
			[]string{"mode"},
		),
		BytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_received_total",
				Help:      "Payload bytes delivered by receivers.",
			},
			[]string{"mode"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build info (constant 1, labeled by version).",
			},
			[]string{"version"},
		),
	}

	m.DatagramsSent = register(reg, m.DatagramsSent)
	m.BytesSent = register(reg, m.BytesSent)
	m.SendDuration = register(reg, m.SendDuration)
	m.DatagramsReceived = register(reg, m.DatagramsReceived)
	m.BytesReceived = register(reg, m.BytesReceived)
	m.buildInfo = register(reg, m.buildInfo)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if goerrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler serves the metrics gathered by g. Mount it with
// mux.Handle("/metrics", telemetry.Handler(reg)).
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func (m *Metrics) SetBuildInfo(version string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version).Set(1)
}

// ObserveSend records the outcome of one send call.
func (m *Metrics) ObserveSend(mode string, n int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.DatagramsSent.WithLabelValues(mode, SendResult(err)).Inc()
	if n > 0 {
		m.BytesSent.WithLabelValues(mode).Add(float64(n))
	}
	m.SendDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveReceive records one delivered datagram.
func (m *Metrics) ObserveReceive(mode string, n int) {
	if m == nil {
		return
	}
	m.DatagramsReceived.WithLabelValues(mode).Inc()
	m.BytesReceived.WithLabelValues(mode).Add(float64(n))
}

// SendResult maps a send error to its "result" label value.
func SendResult(err error) string {
	if err == nil {
		return ResultOK
	}

	var partialErr *errors.PartialSendError
	if goerrors.As(err, &partialErr) {
		return ResultPartial
	}
	var closedErr *errors.ClosedError
	if goerrors.As(err, &closedErr) {
		return ResultClosed
	}
	return ResultError
}
