package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Join outcomes recorded by RecordJoin.
const (
	OutcomeJoined        = "joined"
	OutcomeAlreadyJoined = "already_joined"
	OutcomeNoSeatsLeft   = "no_seats_left"
	OutcomeNotFound      = "not_found"
	OutcomeError         = "error"
)

var (
	joinAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_hub",
		Subsystem: "seats",
		Name:      "join_attempts_total",
		Help:      "Join attempts by outcome.",
	}, []string{"outcome"})
	seatsReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_hub",
		Subsystem: "seats",
		Name:      "released_total",
		Help:      "Seats released by users leaving an activity.",
	})
	mediaCleaned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_hub",
		Subsystem: "media",
		Name:      "cleanup_total",
		Help:      "Media cleanup jobs by result.",
	}, []string{"result"})
	httpRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activity_hub",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(joinAttempts, seatsReleased, mediaCleaned, httpRequests)
}

// RecordJoin counts one join attempt.
func RecordJoin(outcome string) {
	joinAttempts.WithLabelValues(outcome).Inc()
}

// RecordSeatReleased counts one seat given back.
func RecordSeatReleased() {
	seatsReleased.Inc()
}

// RecordMediaCleanup counts a finished cleanup job; result is "deleted" or "kept".
func RecordMediaCleanup(result string) {
	mediaCleaned.WithLabelValues(result).Inc()
}

// ObserveRequest records a served HTTP request.
func ObserveRequest(method, route string, status int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}
