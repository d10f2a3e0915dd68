package wallpaper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	updatesTotal  *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	evictions     prometheus.Counter
	lastUpdate    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easel_updates_total",
			Help: "Wallpaper update attempts by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easel_fetch_attempts_total",
			Help: "Artwork fetch attempts by result",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easel_store_evictions_total",
			Help: "Artworks evicted from the durable store",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "easel_last_update_timestamp_seconds",
			Help: "Unix time of the last successful wallpaper update",
		}),
	}
	reg.MustRegister(m.updatesTotal, m.fetchAttempts, m.evictions, m.lastUpdate)
	return m
}

func (m *Metrics) update(trigger Trigger, outcome UpdateOutcome) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(trigger.String(), outcome.String()).Inc()
}

func (m *Metrics) updated(unixSeconds int64) {
	if m == nil {
		return
	}
	m.lastUpdate.Set(float64(unixSeconds))
}

func (m *Metrics) fetchAttempt(result string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}
