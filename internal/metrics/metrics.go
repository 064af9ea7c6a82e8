package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gymaccess"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by terminal outcome.",
		},
		[]string{"outcome"},
	)

	referenceCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_collisions_total",
			Help:      "Generated reference ids that were already taken.",
		},
	)

	quotaChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_checks_total",
			Help:      "Quota evaluations by period and result.",
		},
		[]string{"period", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, referenceCollisions, quotaChecks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBooking counts an attempt reaching confirmed, rejected or failed.
func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

func IncReferenceCollision() {
	referenceCollisions.Inc()
}

// IncQuotaCheck records one quota evaluation; result is "available" or "exhausted".
func IncQuotaCheck(period string, available bool) {
	result := "exhausted"
	if available {
		result = "available"
	}
	quotaChecks.WithLabelValues(period, result).Inc()
}
