package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "track_queue_depth",
			Help: "Current number of tracks in the queue",
		},
	)
	TracksEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "track_queue_enqueued_total",
			Help: "Total number of tracks enqueued",
		},
	)
	TracksDequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "track_queue_dequeued_total",
			Help: "Total number of tracks dequeued",
		},
	)
	TracksDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "track_queue_dropped_total",
			Help: "Total number of tracks evicted by the capacity limit",
		},
	)

	RefillAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_refill_attempts_total",
			Help: "Total number of refill attempts by outcome",
		},
		[]string{"outcome"},
	)
	StrategyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_failures_total",
			Help: "Total number of search strategy failures by strategy and kind",
		},
		[]string{"strategy", "kind"},
	)
	CatalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total number of catalog search requests by status class",
		},
		[]string{"status"},
	)

	SuggestionsDelivered = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "suggestions_delivered",
			Help:    "Distribution of tracks delivered per suggestions request",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50},
		},
	)
	SuggestionsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestions_rate_limited_total",
			Help: "Total number of suggestions requests rejected by the rate limiter",
		},
	)
)

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(TracksEnqueuedTotal)
	prometheus.MustRegister(TracksDequeuedTotal)
	prometheus.MustRegister(TracksDroppedTotal)
	prometheus.MustRegister(RefillAttemptsTotal)
	prometheus.MustRegister(StrategyFailuresTotal)
	prometheus.MustRegister(CatalogRequestsTotal)
	prometheus.MustRegister(SuggestionsDelivered)
	prometheus.MustRegister(SuggestionsRejectedTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, httpStatusLabel(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

func httpStatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
