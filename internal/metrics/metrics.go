package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tischbuch"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_computations_total",
			Help:      "Count of slot computations by source (computed, cache).",
		},
		[]string{"source"},
	)

	slotComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_compute_duration_seconds",
			Help:      "Time to compute the effective slots of a date.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_guard_rejections_total",
			Help:      "Count of reservation drafts rejected by guards.",
		},
		[]string{"reason"},
	)

	waitlistOffers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_offers_total",
			Help:      "Count of waitlist entries moved to OFFERED.",
		},
	)

	waitlistExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_offers_expired_total",
			Help:      "Count of waitlist offers closed by the expiry sweep.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			slotComputations,
			slotComputeDuration,
			guardRejections,
			waitlistOffers,
			waitlistExpired,
		)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncSlotComputation(source string) {
	slotComputations.WithLabelValues(source).Inc()
}

func ObserveSlotCompute(started time.Time) {
	slotComputeDuration.Observe(time.Since(started).Seconds())
}

func IncGuardRejection(reason string) {
	guardRejections.WithLabelValues(reason).Inc()
}

func IncWaitlistOffer() {
	waitlistOffers.Inc()
}

func AddWaitlistExpired(n int64) {
	if n > 0 {
		waitlistExpired.Add(float64(n))
	}
}
