package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marquee",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marquee",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	protocolMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marquee",
			Subsystem: "protocol",
			Name:      "messages_total",
			Help:      "Protocol messages handled, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	protocolMalformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marquee",
			Subsystem: "protocol",
			Name:      "malformed_total",
			Help:      "Messages rejected for malformed tagged-value payloads.",
		},
		[]string{"transport"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marquee",
			Subsystem: "server",
			Name:      "sessions",
			Help:      "Currently registered client sessions.",
		},
	)
	monitorCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marquee",
			Subsystem: "supervise",
			Name:      "monitor_cycles_total",
			Help:      "Completed liveness monitor cycles.",
		},
	)
	checkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marquee",
			Subsystem: "supervise",
			Name:      "check_failures_total",
			Help:      "Liveness check failures by step.",
		},
		[]string{"step"},
	)
	loggerRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marquee",
			Subsystem: "supervise",
			Name:      "logger_restarts_total",
			Help:      "Log writer restarts performed by the liveness monitor.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			protocolMessages,
			protocolMalformed,
			activeSessions,
			monitorCycles,
			checkFailures,
			loggerRestarts,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMessage(msgType, outcome string) {
	RegisterMetrics()
	protocolMessages.WithLabelValues(msgType, outcome).Inc()
}

func RecordMalformed(transport string) {
	RegisterMetrics()
	protocolMalformed.WithLabelValues(transport).Inc()
}

func SetSessions(n int) {
	RegisterMetrics()
	activeSessions.Set(float64(n))
}

func RecordMonitorCycle() {
	RegisterMetrics()
	monitorCycles.Inc()
}

func RecordCheckFailure(step string) {
	RegisterMetrics()
	checkFailures.WithLabelValues(step).Inc()
}

func RecordLoggerRestart() {
	RegisterMetrics()
	loggerRestarts.Inc()
}
