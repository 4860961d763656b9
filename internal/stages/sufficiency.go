package stages

import (
	"fmt"
	"strings"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
)

// SufficiencyResult counts samples per required base metric.
type SufficiencyResult struct {
	OK             bool
	TotalSamples   int
	MetricCounts   map[string]int
	MissingMetrics []string
}

// CheckSufficiency counts every sample toward the first required metric
// family it belongs to.
func CheckSufficiency(cfg governance.JudgeConfig, samples []evidence.Sample) SufficiencyResult {
	counts := make(map[string]int, len(cfg.RequiredMetrics))
	for _, m := range cfg.RequiredMetrics {
		counts[m] = 0
	}
	for _, s := range samples {
		if base, ok := evidence.MatchRequired(s.Metric, cfg.RequiredMetrics); ok {
			counts[base]++
		}
	}

	var missing []string
	for _, m := range cfg.RequiredMetrics {
		if counts[m] < cfg.Sufficiency.MinSamplesPerRequiredMetric {
			missing = append(missing, m)
		}
	}
	return SufficiencyResult{
		OK:             len(samples) >= cfg.Sufficiency.MinTotalSamples && len(missing) == 0,
		TotalSamples:   len(samples),
		MetricCounts:   counts,
		MissingMetrics: missing,
	}
}

func evaluateSufficiency(in Input) (*Finding, error) {
	res := CheckSufficiency(in.Config, in.Samples)
	if res.OK {
		return nil, nil
	}
	refs, err := windowRefs(in)
	if err != nil {
		return nil, err
	}
	_, sensors := in.Rollups()

	metrics := res.MissingMetrics
	if len(metrics) == 0 {
		metrics = in.Config.RequiredMetrics
	}

	summary := fmt.Sprintf("Insufficient evidence in window: %d samples (min_total_samples=%d)",
		res.TotalSamples, in.Config.Sufficiency.MinTotalSamples)
	if len(res.MissingMetrics) > 0 {
		summary += fmt.Sprintf("; below %d samples: %s",
			in.Config.Sufficiency.MinSamplesPerRequiredMetric, strings.Join(res.MissingMetrics, ", "))
	}

	return &Finding{
		ProblemType: problem.TypeInsufficientEvidence,
		Confidence:  problem.ConfidenceLow,
		Uncertainty: []problem.UncertaintySource{problem.UncertaintySampleCount},
		Summary:     summary,
		Metrics:     sortedCopy(metrics),
		Sensors:     sensors,
		Refs:        refs,
		Scope:       problem.ScopeSpatialUnit,
		RateClass:   problem.RateUnknown,
	}, nil
}
