package judge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSilent   = "silent"
	outcomeDeclared = "declared"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics holds Prometheus metrics for judge runs.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec // runs by outcome
	ProblemStatesTotal *prometheus.CounterVec // declarations by problem type
	RunDuration        prometheus.Histogram   // end-to-end run latency
	EvidenceReadErrors prometheus.Counter     // failed reader calls
	StageDecisions     *prometheus.CounterVec // declaring stage
}

// NewMetrics creates and registers the run metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_runs_total",
		Help: "Total number of judge runs by outcome",
	}, []string{"outcome"})

	problemStates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_problem_states_total",
		Help: "Total number of problem states declared by problem type",
	}, []string{"problem_type"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "judge_run_duration_seconds",
		Help:    "Duration of judge runs",
		Buckets: prometheus.DefBuckets,
	})

	readErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "judge_evidence_read_errors_total",
		Help: "Total number of failed evidence reads",
	})

	stageDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_stage_decisions_total",
		Help: "Total number of declarations by deciding stage",
	}, []string{"stage"})

	reg.MustRegister(runsTotal, problemStates, runDuration, readErrors, stageDecisions)

	return &Metrics{
		RunsTotal:          runsTotal,
		ProblemStatesTotal: problemStates,
		RunDuration:        runDuration,
		EvidenceReadErrors: readErrors,
		StageDecisions:     stageDecisions,
	}
}

func (m *Metrics) observeRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *Metrics) observeDeclaration(stage, problemType string) {
	if m == nil {
		return
	}
	m.StageDecisions.WithLabelValues(stage).Inc()
	m.ProblemStatesTotal.WithLabelValues(problemType).Inc()
}

func (m *Metrics) observeReadError() {
	if m == nil {
		return
	}
	m.EvidenceReadErrors.Inc()
}
