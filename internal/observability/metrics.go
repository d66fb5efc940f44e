// Package observability holds the node's Prometheus collectors and the
// HTTP middleware that feeds them.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daokit",
			Subsystem: "chain",
			Name:      "transactions_total",
			Help:      "Applied transactions by status and error kind.",
		},
		[]string{"status", "kind"},
	)
	applyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daokit",
			Subsystem: "chain",
			Name:      "apply_duration_seconds",
			Help:      "Time to apply and persist one transaction.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	frameSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "daokit",
			Subsystem: "chain",
			Name:      "frames_per_transaction",
			Help:      "Call frames opened per transaction.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
	)
	orchestrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daokit",
			Subsystem: "orchestrator",
			Name:      "invocations_total",
			Help:      "createDAOAndExecute invocations by outcome.",
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daokit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daokit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(transactions, applyDuration, frameSteps, orchestrations, httpRequests, httpDuration)
	})
}

// RecordTransaction counts one applied transaction. kind is empty for
// successful ones.
func RecordTransaction(status, kind string, steps int, duration time.Duration) {
	RegisterMetrics()
	transactions.WithLabelValues(status, kind).Inc()
	applyDuration.WithLabelValues(status).Observe(duration.Seconds())
	frameSteps.Observe(float64(steps))
}

// RecordOrchestration counts one orchestrator invocation; outcome is
// "created" or the error kind.
func RecordOrchestration(outcome string) {
	RegisterMetrics()
	orchestrations.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
