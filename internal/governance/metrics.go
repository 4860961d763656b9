package governance

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeAccepted = "accepted"
	outcomeInvalid  = "invalid"
	outcomeConflict = "conflict"
)

// Metrics counts patch submissions and resolutions by outcome.
type Metrics struct {
	PatchesTotal *prometheus.CounterVec
}

// NewMetrics registers governance metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	patches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_config_patches_total",
		Help: "Config patches by outcome (accepted, invalid, conflict)",
	}, []string{"outcome"})

	reg.MustRegister(patches)

	return &Metrics{PatchesTotal: patches}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.PatchesTotal.WithLabelValues(outcome).Inc()
}
