package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Realtime metrics
	ConnectionsActive    prometheus.Gauge
	PublishesTotal       *prometheus.CounterVec
	MessagesDropped      prometheus.Counter
	NotificationsCreated prometheus.Counter

	// Database metrics
	DatabaseLatency *prometheus.HistogramVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// Publish result labels
const (
	PublishDelivered = "delivered"
	PublishDropped   = "dropped"
	PublishError     = "error"
)

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections_active",
			Help:      "Current number of open websocket connections",
		}),
		PublishesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "publishes_total",
			Help:      "Broadcast publishes by result",
		}, []string{"result"}),
		MessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped because a subscriber's send buffer was full",
		}),
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Durable notifications persisted",
		}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "operation_duration_seconds",
			Help:      "Time spent on database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
	}
}

// NewTestMetrics registers against a private registry so parallel tests do
// not collide on the default one.
func NewTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{Name: "test_connections_active"}),
		PublishesTotal:    factory.NewCounterVec(prometheus.CounterOpts{Name: "test_publishes_total"}, []string{"result"}),
		MessagesDropped:   factory.NewCounter(prometheus.CounterOpts{Name: "test_messages_dropped_total"}),
		NotificationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "test_notifications_created_total",
		}),
		DatabaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{Name: "test_database_duration_seconds"}, []string{"operation"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{Name: "test_request_duration_seconds"}, []string{"method", "path", "status"}),
		RequestTotal:    factory.NewCounterVec(prometheus.CounterOpts{Name: "test_requests_total"}, []string{"method", "path", "status"}),
	}
}
