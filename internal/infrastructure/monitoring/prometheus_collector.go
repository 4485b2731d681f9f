package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Authorization
	authorizationsTotal   *prometheus.CounterVec
	authorizationDuration *prometheus.HistogramVec

	// Store
	storeOperationDuration *prometheus.HistogramVec
	storeErrorsTotal       *prometheus.CounterVec

	// Chat
	chatConnectionsActive prometheus.Gauge
	chatMessagesTotal     *prometheus.CounterVec
}

// NewPrometheusCollector registers all metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		authorizationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorhub_authorizations_total",
			Help: "Subscription authorization decisions by outcome",
		}, []string{"outcome"}),

		authorizationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatorhub_authorization_duration_seconds",
			Help:    "Latency of subscription authorization decisions",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"outcome"}),

		storeOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatorhub_store_operation_duration_seconds",
			Help:    "Latency of subscription store operations including retries",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),

		storeErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorhub_store_errors_total",
			Help: "Subscription store operations that failed after retries",
		}, []string{"operation"}),

		chatConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "creatorhub_chat_connections_active",
			Help: "Currently connected chat clients",
		}),

		chatMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorhub_chat_messages_total",
			Help: "Chat frames handled by result",
		}, []string{"result"}),
	}
}

func (p *PrometheusCollector) RecordAuthorization(outcome string, duration time.Duration) {
	p.authorizationsTotal.WithLabelValues(outcome).Inc()
	p.authorizationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordStoreOperation(operation string, duration time.Duration, err error) {
	p.storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		p.storeErrorsTotal.WithLabelValues(operation).Inc()
	}
}

func (p *PrometheusCollector) RecordChatConnected() {
	p.chatConnectionsActive.Inc()
}

func (p *PrometheusCollector) RecordChatDisconnected() {
	p.chatConnectionsActive.Dec()
}

// RecordChatMessage counts one client frame by result label.
func (p *PrometheusCollector) RecordChatMessage(result string) {
	p.chatMessagesTotal.WithLabelValues(result).Inc()
}
