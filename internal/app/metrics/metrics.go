package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mealbridge",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mealbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mealbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	donationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mealbridge",
			Subsystem: "donations",
			Name:      "transitions_total",
			Help:      "Total number of donation status transitions.",
		},
		[]string{"to"},
	)

	requestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mealbridge",
			Subsystem: "requests",
			Name:      "transitions_total",
			Help:      "Total number of food request status transitions.",
		},
		[]string{"to"},
	)

	notificationsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mealbridge",
			Subsystem: "notifications",
			Name:      "emitted_total",
			Help:      "Total number of notifications delivered to users.",
		},
		[]string{"type"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		donationTransitions,
		requestTransitions,
		notificationsEmitted,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordDonationTransition records a donation entering the given status.
func RecordDonationTransition(to string) {
	if to == "" {
		to = "unknown"
	}
	donationTransitions.WithLabelValues(to).Inc()
}

// RecordRequestTransition records a food request entering the given status.
func RecordRequestTransition(to string) {
	if to == "" {
		to = "unknown"
	}
	requestTransitions.WithLabelValues(to).Inc()
}

// RecordNotification records a notification emitted to a user.
func RecordNotification(notificationType string) {
	if notificationType == "" {
		notificationType = "unknown"
	}
	notificationsEmitted.WithLabelValues(notificationType).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource IDs so metric cardinality stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/api"
	}
	resource := parts[1]
	switch len(parts) {
	case 2:
		return "/api/" + resource
	case 3:
		switch parts[2] {
		case "my", "claimed", "register", "login", "profile":
			return "/api/" + resource + "/" + parts[2]
		}
		return "/api/" + resource + "/:id"
	default:
		return "/api/" + resource + "/:id/" + parts[3]
	}
}
