package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// Connection metrics
	ClientConnected()
	ClientDisconnected()
	ClientError(errorType string)

	// Message relay metrics
	MessageRelayed(messageType, outcome string)
	MessageRejected(messageType, errorType string)

	// Call signaling metrics
	CallEvent(eventType string)
	CallFailed(reason string)

	// Liveness metrics
	LivenessStale(count int)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler
}

// PrometheusCollector implements the Collector interface using Prometheus
type PrometheusCollector struct {
	// Connection metrics
	activeConnections prometheus.Gauge
	clientConnections prometheus.Counter
	clientDisconnects prometheus.Counter
	clientErrors      *prometheus.CounterVec

	// Message relay metrics
	messagesRelayed  *prometheus.CounterVec
	messagesRejected *prometheus.CounterVec

	// Call signaling metrics
	callEvents   *prometheus.CounterVec
	callFailures *prometheus.CounterVec

	// Liveness metrics
	staleConnections prometheus.Gauge
}

// NewPrometheusCollector creates a new PrometheusCollector
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		activeConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hub_active_connections",
			Help: "Number of registered client connections",
		}),

		clientConnections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hub_client_connections_total",
			Help: "Total number of client registrations",
		}),

		clientDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hub_client_disconnects_total",
			Help: "Total number of client disconnections",
		}),

		clientErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_client_errors_total",
				Help: "Total number of rejected client events",
			},
			[]string{"error_type"},
		),

		messagesRelayed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_messages_relayed_total",
				Help: "Total number of relayed chat messages",
			},
			[]string{"message_type", "outcome"},
		),

		messagesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_messages_rejected_total",
				Help: "Total number of rejected chat messages",
			},
			[]string{"message_type", "error_type"},
		),

		callEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_call_events_total",
				Help: "Total number of processed call signaling events",
			},
			[]string{"event_type"},
		),

		callFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_call_failures_total",
				Help: "Total number of synthesized call_failed events",
			},
			[]string{"reason"},
		),

		staleConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hub_stale_connections",
			Help: "Connections that missed the last liveness probe",
		}),
	}
}

// ClientConnected records a client registration
func (c *PrometheusCollector) ClientConnected() {
	c.clientConnections.Inc()
	c.activeConnections.Inc()
}

// ClientDisconnected records a client disconnection
func (c *PrometheusCollector) ClientDisconnected() {
	c.clientDisconnects.Inc()
	c.activeConnections.Dec()
}

// ClientError records a rejected client event
func (c *PrometheusCollector) ClientError(errorType string) {
	c.clientErrors.WithLabelValues(errorType).Inc()
}

// MessageRelayed records an accepted chat message and its delivery outcome
func (c *PrometheusCollector) MessageRelayed(messageType, outcome string) {
	c.messagesRelayed.WithLabelValues(messageType, outcome).Inc()
}

// MessageRejected records a rejected chat message
func (c *PrometheusCollector) MessageRejected(messageType, errorType string) {
	c.messagesRejected.WithLabelValues(messageType, errorType).Inc()
}

// CallEvent records a processed call signaling event
func (c *PrometheusCollector) CallEvent(eventType string) {
	c.callEvents.WithLabelValues(eventType).Inc()
}

// CallFailed records a synthesized call_failed event
func (c *PrometheusCollector) CallFailed(reason string) {
	c.callFailures.WithLabelValues(reason).Inc()
}

// LivenessStale records the number of connections that missed a probe
func (c *PrometheusCollector) LivenessStale(count int) {
	c.staleConnections.Set(float64(count))
}

// Handler returns an HTTP handler for metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// NopCollector discards all metrics. Used in tests.
type NopCollector struct{}

func (NopCollector) ClientConnected()               {}
func (NopCollector) ClientDisconnected()            {}
func (NopCollector) ClientError(string)             {}
func (NopCollector) MessageRelayed(string, string)  {}
func (NopCollector) MessageRejected(string, string) {}
func (NopCollector) CallEvent(string)               {}
func (NopCollector) CallFailed(string)              {}
func (NopCollector) LivenessStale(int)              {}
func (NopCollector) Handler() http.Handler          { return promhttp.Handler() }
