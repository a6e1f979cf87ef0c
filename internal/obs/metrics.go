package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics.
var (
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
)

// Access-control metrics. AuditWriteFailures doubles as the alarm channel
// required when the audit log cannot record its own outage.
var (
	LoginFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orggate_login_failures_total",
		Help: "Failed login attempts.",
	})
	AccountLockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orggate_account_lockouts_total",
		Help: "Accounts locked after repeated login failures.",
	})
	AuthorizationDenials = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orggate_authorization_denials_total",
		Help: "Authorization decisions that denied access.",
	})
	SessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orggate_sessions_issued_total",
		Help: "Sessions issued after successful authentication.",
	})
	SessionsRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orggate_sessions_revoked_total",
		Help: "Sessions revoked by logout, policy, or expiry sweep.",
	})
	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orggate_audit_write_failures_total",
		Help: "Audit append failures after retries were exhausted.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		LoginFailures, AccountLockouts, AuthorizationDenials,
		SessionsIssued, SessionsRevoked, AuditWriteFailures,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses identifier segments so metric label cardinality
// stays bounded.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if strings.HasPrefix(path, "/v1/audit/") {
		rest := strings.TrimPrefix(path, "/v1/audit/")
		if rest != "" && !strings.Contains(rest, "/") {
			return "/v1/audit/:id"
		}
	}
	return path
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
