package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mantrailing_card",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mantrailing_card",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mantrailing_card",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Bookings by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	sessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mantrailing_card",
			Subsystem: "ledger",
			Name:      "session_debits_total",
			Help:      "Debits counted as a completed training session.",
		},
	)

	promotions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mantrailing_card",
			Subsystem: "ledger",
			Name:      "level_promotions_total",
			Help:      "Customers promoted into a training level.",
		},
		[]string{"level"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		transactions,
		sessions,
		promotions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordTransaction counts a booking attempt. outcome is "success",
// "invalid", "insufficient_balance" or "error".
func RecordTransaction(txType, outcome string) {
	if txType == "" {
		txType = "unknown"
	}
	transactions.WithLabelValues(txType, outcome).Inc()
}

// RecordSession counts a session debit and the promotion it caused, if any.
func RecordSession(promotedTo string) {
	sessions.Inc()
	if promotedTo != "" {
		promotions.WithLabelValues(promotedTo).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
