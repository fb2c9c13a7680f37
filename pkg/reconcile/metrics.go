package reconcile

import "github.com/prometheus/client_golang/prometheus"

const (
	writesName = "gatekit_reconcile_writes_total"
	writesHelp = "Counts client-side tier reconciliation writes partitioned by result"
	resultKey  = "result"
)

// Metrics counts reconciliation writes.
type Metrics struct {
	writes *prometheus.CounterVec
}

// NewMetrics creates the reconciler metrics and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: writesName,
		Help: writesHelp,
	}, []string{resultKey})
	if reg != nil {
		reg.MustRegister(writes)
	}
	return &Metrics{writes: writes}
}

// Writes exposes the counter for tests and custom collectors.
func (m *Metrics) Writes() *prometheus.CounterVec {
	return m.writes
}

func (m *Metrics) writeSucceeded() {
	m.writes.With(prometheus.Labels{resultKey: "success"}).Inc()
}

func (m *Metrics) writeFailed() {
	m.writes.With(prometheus.Labels{resultKey: "failure"}).Inc()
}
