package punish

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine activity.
type Metrics struct {
	Issued              *prometheus.CounterVec
	Escalations         *prometheus.CounterVec
	EnforcementFailures *prometheus.CounterVec
	Edits               *prometheus.CounterVec
}

// NewMetrics creates the engine counters and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modbot",
			Name:      "punishments_issued_total",
			Help:      "Punishment records created, by type.",
		}, []string{"type"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modbot",
			Name:      "escalations_total",
			Help:      "Escalation punishments triggered, by rule source.",
		}, []string{"source"}),
		EnforcementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modbot",
			Name:      "enforcement_failures_total",
			Help:      "Platform actions that failed after the record was written, by type.",
		}, []string{"type"}),
		Edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modbot",
			Name:      "punishment_edits_total",
			Help:      "Punishment edits and deletions, by kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.Issued, m.Escalations, m.EnforcementFailures, m.Edits)
	}
	return m
}
