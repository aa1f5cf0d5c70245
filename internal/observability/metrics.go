package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/benk79tb/keripy/kering"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keri",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, status and the error kind they failed with.",
		},
		[]string{"node", "method", "path", "status", "kind"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keri",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	errorOccurrences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keri",
			Name:      "errors_total",
			Help:      "Error occurrences by component, kind and first-level category.",
		},
		[]string{"component", "kind", "category"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, errorOccurrences)
	})
}

// RecordHTTPRequest counts one request. kind is empty for requests that did
// not fail with a taxonomy error.
func RecordHTTPRequest(node, method, path string, status int, kind string, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	if kind == "" {
		kind = "none"
	}
	httpRequests.WithLabelValues(node, method, path, statusLabel, kind).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordError counts err under its kind. Errors from outside the taxonomy
// are counted as kind "unclassified".
func RecordError(component string, err error) {
	if err == nil {
		return
	}
	RegisterMetrics()
	kind, category := "unclassified", "unclassified"
	if k, ok := kering.KindOf(err); ok {
		kind, category = k.String(), k.Category().String()
	}
	errorOccurrences.WithLabelValues(component, kind, category).Inc()
}
