package server

import (
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	activeSessions    prometheus.Gauge
	sessionTotal      prometheus.Counter
	envelopes         *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
	dispatchLatency   *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &serverMetrics{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gochat_sessions_active",
			Help: "Current number of authenticated sessions in the registry.",
		}),
		sessionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gochat_sessions_total",
			Help: "Total number of successful authentications since start.",
		}),
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_envelopes_total",
			Help: "Decoded inbound envelopes by type.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_envelopes_dropped_total",
			Help: "Inbound envelopes discarded without routing, by reason.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_deliveries_total",
			Help: "Outbound envelopes enqueued to other sessions, by type.",
		}, []string{"kind"}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_persistence_errors_total",
			Help: "Storage operations that failed, by operation.",
		}, []string{"op"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gochat_dispatch_seconds",
			Help:    "Time spent handling one inbound envelope.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.activeSessions,
		m.sessionTotal,
		m.envelopes,
		m.dropped,
		m.deliveries,
		m.persistenceErrors,
		m.dispatchLatency,
	)
	return m
}

func (m *serverMetrics) incSession() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
	m.sessionTotal.Inc()
}

// replaceSession counts an authentication that superseded a live session.
func (m *serverMetrics) replaceSession() {
	if m == nil {
		return
	}
	m.sessionTotal.Inc()
}

func (m *serverMetrics) decSession() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *serverMetrics) recordEnvelope(kind protocol.Kind) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(string(kind)).Inc()
}

func (m *serverMetrics) recordDrop(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *serverMetrics) recordDelivery(kind protocol.Kind) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(string(kind)).Inc()
}

func (m *serverMetrics) recordPersistenceError(op string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(op).Inc()
}

func (m *serverMetrics) observeDispatch(kind protocol.Kind, dur time.Duration) {
	if m == nil || kind == "" {
		return
	}
	m.dispatchLatency.WithLabelValues(string(kind)).Observe(dur.Seconds())
}
