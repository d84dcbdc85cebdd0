package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	RequestDuration     prometheus.Histogram
	RequestOutcomes     *prometheus.CounterVec
	DecisionRounds      prometheus.Histogram
	ToolCalls           *prometheus.CounterVec
	StoreQueries        *prometheus.CounterVec
	ActiveConversations prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end conversation request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		RequestOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_outcomes_total",
			Help:      "Conversation requests by terminal outcome.",
		}, []string{"outcome"}),
		DecisionRounds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_rounds",
			Help:      "Decision-function rounds consumed per request.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}),
		ToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		StoreQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_queries_total",
			Help:      "Backend queries by backend and outcome. The empty outcome also covers fail-open unavailability.",
		}, []string{"backend", "outcome"}),
		ActiveConversations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Number of conversations currently held in memory.",
		}),
	}
}

func (m *Metrics) ObserveRequestDuration(d time.Duration) {
	m.RequestDuration.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
