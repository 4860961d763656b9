package stages

import (
	"fmt"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
)

// QCResult is the quality control verdict over a sample set. Its canonical
// form is what the qc_summary ref hashes.
type QCResult struct {
	OK   bool                `json:"ok"`
	Mix  evidence.QCMix      `json:"qcMix"`
	Flag problem.ProblemType `json:"flag,omitempty"`
}

// EvaluateQC compares the bad share, then the suspect share, against their
// thresholds. An empty set passes.
func EvaluateQC(cfg governance.JudgeConfig, samples []evidence.Sample) QCResult {
	if len(samples) == 0 {
		return QCResult{OK: true}
	}
	mix := evidence.MixOf(samples)
	switch {
	case mix.BadPct >= cfg.QC.BadPctThreshold:
		return QCResult{Mix: mix, Flag: problem.TypeQCContamination}
	case mix.SuspectPct >= cfg.QC.SuspectPctThreshold:
		return QCResult{Mix: mix, Flag: problem.TypeSensorHealthDegraded}
	}
	return QCResult{OK: true, Mix: mix}
}

func evaluateQC(in Input) (*Finding, error) {
	res := EvaluateQC(in.Config, in.Samples)
	if res.OK {
		return nil, nil
	}
	qcRef, err := QCSummaryRef(res, in.Window)
	if err != nil {
		return nil, err
	}
	refs := []problem.EvidenceRef{qcRef}
	ledger, err := ledgerRefs(in)
	if err != nil {
		return nil, err
	}
	refs = append(refs, ledger...)

	offending := evidence.QualityBad
	uncertainty := problem.UncertaintyQCBadRatio
	if res.Flag == problem.TypeSensorHealthDegraded {
		offending = evidence.QualitySuspect
		uncertainty = problem.UncertaintyQCSuspectRatio
	}
	var flagged []evidence.Sample
	for _, s := range in.Samples {
		if s.Quality == offending {
			flagged = append(flagged, s)
		}
	}

	return &Finding{
		ProblemType: res.Flag,
		Confidence:  problem.ConfidenceHigh,
		Uncertainty: []problem.UncertaintySource{uncertainty},
		Summary: fmt.Sprintf("Quality control flagged window: %.1f%% bad, %.1f%% suspect of %d samples",
			res.Mix.BadPct*100, res.Mix.SuspectPct*100, len(in.Samples)),
		Metrics:   distinctSorted(flagged, func(s evidence.Sample) string { return s.Metric }),
		Sensors:   distinctSorted(flagged, func(s evidence.Sample) string { return s.SensorID }),
		Refs:      refs,
		Scope:     problem.ScopeSpatialUnit,
		RateClass: problem.RateUnknown,
	}, nil
}
