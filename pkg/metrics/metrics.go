package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge
	RateLimited     prometheus.Counter

	SlotQueriesTotal  *prometheus.CounterVec
	SlotQueryDuration prometheus.Histogram

	BookingsTotal       *prometheus.CounterVec
	BookingLockDuration prometheus.Histogram
	StatusChangesTotal  *prometheus.CounterVec
	ReassignmentsTotal  *prometheus.CounterVec
	IdempotentReplays   prometheus.Counter

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter

	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
}

// NewCollector registers every collector with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	ns := strings.ReplaceAll(serviceName, "-", "_")
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),

		SlotQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "slot_queries_total",
			Help:      "Available-slot queries by whether the preferred dentist was honored.",
		}, []string{"honored"}),

		SlotQueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "slot_query_duration_seconds",
			Help:      "Time to resolve the day and compute available starts.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),

		BookingLockDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "booking_critical_section_seconds",
			Help:      "Time spent inside the per-date booking lock, including the wait.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 3.0},
		}),

		StatusChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "status_changes_total",
			Help:      "Appointment status transitions by target status.",
		}, []string{"status"}),

		ReassignmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "reassignments_total",
			Help:      "Dentist reassignment attempts by outcome.",
		}, []string{"outcome"}),

		IdempotentReplays: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduling",
			Name:      "idempotent_replays_total",
			Help:      "Bookings answered from a previously stored Idempotency-Key.",
		}),

		AuditEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Booking events delivered to the broker by type.",
		}, []string{"type"}),

		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Booking events dropped due to a full buffer or broker failure.",
		}),
	}
}

func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
