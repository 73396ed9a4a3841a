// control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus collectors for the connection core. A nil *Metrics is valid and
// records nothing, so components never branch on whether metrics are enabled.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "hioload"

// Metrics groups the collectors registered by NewMetrics.
type Metrics struct {
	accepted           prometheus.Counter
	rejected           *prometheus.CounterVec
	active             prometheus.Gauge
	closed             *prometheus.CounterVec
	acceptErrors       prometheus.Counter
	protocolViolations prometheus.Counter
	framesIn           prometheus.Counter
	framesOut          prometheus.Counter
	bytesIn            prometheus.Counter
	bytesOut           prometheus.Counter
	poolInUse          *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer; an empty namespace uses DefaultNamespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections admitted after acquiring pooled contexts",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Accepted sockets closed before a connection was created",
		}, []string{"reason"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Live connections",
		}),
		closed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Connection teardowns by cause",
		}, []string{"reason"}),
		acceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Transient accept failures",
		}),
		protocolViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Frames rejected for an oversize declared length",
		}),
		framesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Complete frames decoded",
		}),
		framesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames fully written to sockets",
		}),
		bytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Bytes read from sockets",
		}),
		bytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Bytes written to sockets, headers included",
		}),
		poolInUse: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_contexts_in_use",
			Help:      "Acquired I/O contexts per pool",
		}, []string{"pool"}),
	}
}

// Accepted counts an admitted connection and raises the active gauge.
func (m *Metrics) Accepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.active.Inc()
}

// Rejected counts a socket closed at admission.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// Closed counts a teardown and lowers the active gauge.
func (m *Metrics) Closed(reason string) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(reason).Inc()
	m.active.Dec()
}

func (m *Metrics) AcceptError() {
	if m == nil {
		return
	}
	m.acceptErrors.Inc()
}

func (m *Metrics) ProtocolViolation() {
	if m == nil {
		return
	}
	m.protocolViolations.Inc()
}

// Received records one socket read of n bytes.
func (m *Metrics) Received(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesIn.Add(float64(n))
}

// FrameReceived records one decoded frame.
func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesIn.Inc()
}

// FrameSent records one frame of n wire bytes.
func (m *Metrics) FrameSent(n int) {
	if m == nil {
		return
	}
	m.framesOut.Inc()
	m.bytesOut.Add(float64(n))
}

// PoolInUse publishes the number of acquired contexts of a pool.
func (m *Metrics) PoolInUse(pool string, n int) {
	if m == nil {
		return
	}
	m.poolInUse.WithLabelValues(pool).Set(float64(n))
}
