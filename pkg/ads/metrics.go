package ads

import "github.com/prometheus/client_golang/prometheus"

const (
	kindLabel   = "kind"
	reasonLabel = "reason"

	reasonIneligible = "ineligible"
	reasonNotLoaded  = "not_loaded"
	reasonCooldown   = "cooldown"
	reasonShowFailed = "show_failed"
)

// Metrics counts ad slot activity partitioned by ad kind.
type Metrics struct {
	Loads        *prometheus.CounterVec
	LoadFailures *prometheus.CounterVec
	Retries      *prometheus.CounterVec
	Abandoned    *prometheus.CounterVec
	Shows        *prometheus.CounterVec
	ShowRejected *prometheus.CounterVec
}

// NewMetrics creates the ad metrics and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekit",
			Subsystem: "ads",
			Name:      name,
			Help:      help,
		}, labels)
	}
	m := &Metrics{
		Loads:        counter("loads_total", "Ad loads that completed", kindLabel),
		LoadFailures: counter("load_failures_total", "Ad loads that failed", kindLabel),
		Retries:      counter("retries_total", "Ad load retries scheduled", kindLabel),
		Abandoned:    counter("abandoned_total", "Ad slots that gave up after the retry cap", kindLabel),
		Shows:        counter("shows_total", "Ads handed to the SDK for presentation", kindLabel),
		ShowRejected: counter("show_rejected_total", "Show calls refused by a precondition", kindLabel, reasonLabel),
	}
	if reg != nil {
		reg.MustRegister(m.Loads, m.LoadFailures, m.Retries, m.Abandoned, m.Shows, m.ShowRejected)
	}
	return m
}

func (m *Metrics) loaded(k Kind) { m.Loads.WithLabelValues(string(k)).Inc() }
func (m *Metrics) loadFailed(k Kind) { m.LoadFailures.WithLabelValues(string(k)).Inc() }
func (m *Metrics) retried(k Kind) { m.Retries.WithLabelValues(string(k)).Inc() }
func (m *Metrics) abandoned(k Kind) { m.Abandoned.WithLabelValues(string(k)).Inc() }
func (m *Metrics) shown(k Kind) { m.Shows.WithLabelValues(string(k)).Inc() }
func (m *Metrics) rejected(k Kind, reason string) {
	m.ShowRejected.WithLabelValues(string(k), reason).Inc()
}
