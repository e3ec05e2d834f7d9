package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	guardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_guard_decisions_total",
			Help: "Route guard outcomes per navigation.",
		},
		[]string{"state"},
	)

	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_session_transitions_total",
			Help: "Session state transitions by kind.",
		},
		[]string{"kind"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_backend_requests_total",
			Help: "Outbound backend calls by response status.",
		},
		[]string{"status"},
	)
)

// Init registers metrics in the default registry. Safe to call repeatedly.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			guardDecisions, sessionTransitions, backendRequests,
		)
	})
}

// Handler serves the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGuardDecision counts a route guard outcome.
func ObserveGuardDecision(state string) {
	guardDecisions.WithLabelValues(state).Inc()
}

// ObserveSessionTransition counts login, logout, revoke and expiry transitions.
func ObserveSessionTransition(kind string) {
	sessionTransitions.WithLabelValues(kind).Inc()
}

// ObserveBackendRequest counts an outbound call; status 0 means transport failure.
func ObserveBackendRequest(status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	backendRequests.WithLabelValues(label).Inc()
}

// Instrument records in-flight, totals and latency for next.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses record identifiers so path labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if i == 0 {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the instrumented writer.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
