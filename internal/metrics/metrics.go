package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ArenaMetrics interface {
	PingRecorded(queue string)
	PingExpired(queue string)
	PingsCleared(count int)
	ExpiryFailed()
	MatchReported()
	TierChanged(direction string)
	StorageError(op string)
}

type prometheusMetrics struct {
	pingsRecorded  prometheus.CounterVec
	pingsExpired   prometheus.CounterVec
	pingsCleared   prometheus.Counter
	expiryFailures prometheus.Counter
	matchesTotal   prometheus.Counter
	tierChanges    prometheus.CounterVec
	storageErrors  prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) ArenaMetrics {
	factory := promauto.With(registry)

	return prometheusMetrics{
		pingsRecorded: *factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_pings_recorded_total",
			Help: "Matchmaking pings recorded per queue",
		}, []string{"queue"}),
		pingsExpired: *factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_pings_expired_total",
			Help: "Pings removed by their scheduled expiry per queue",
		}, []string{"queue"}),
		pingsCleared: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_pings_cleared_total",
			Help: "Pings removed by clear-all",
		}),
		expiryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_ping_expiry_failures_total",
			Help: "Scheduled expiries that failed and were dropped",
		}),
		matchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_matches_reported_total",
			Help: "Ranked match results applied",
		}),
		tierChanges: *factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_tier_changes_total",
			Help: "Rank tier transitions caused by match reports",
		}, []string{"direction"}),
		storageErrors: *factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_storage_errors_total",
			Help: "Storage failures surfaced to callers",
		}, []string{"op"}),
	}
}

func (m prometheusMetrics) PingRecorded(queue string) {
	m.pingsRecorded.With(prometheus.Labels{"queue": queue}).Inc()
}

func (m prometheusMetrics) PingExpired(queue string) {
	m.pingsExpired.With(prometheus.Labels{"queue": queue}).Inc()
}

func (m prometheusMetrics) PingsCleared(count int) {
	m.pingsCleared.Add(float64(count))
}

func (m prometheusMetrics) ExpiryFailed() {
	m.expiryFailures.Inc()
}

func (m prometheusMetrics) MatchReported() {
	m.matchesTotal.Inc()
}

func (m prometheusMetrics) TierChanged(direction string) {
	m.tierChanges.With(prometheus.Labels{"direction": direction}).Inc()
}

func (m prometheusMetrics) StorageError(op string) {
	m.storageErrors.With(prometheus.Labels{"op": op}).Inc()
}
