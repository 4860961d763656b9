package stages

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
)

// coverageExclusionKinds remove buckets from the effective window.
var coverageExclusionKinds = map[string]bool{
	evidence.KindMaintenance:           true,
	evidence.KindDeviceOffline:         true,
	evidence.KindExclusionWindowActive: true,
}

// Coverage is the bucketed sampling density of a window.
type Coverage struct {
	OK bool
	// MaxGapMs is the longest run of empty, non-excluded buckets. It is
	// +Inf for a window without duration.
	MaxGapMs           float64
	CoverageRatio      float64
	ExpectedIntervalMs int64
	EffectiveBuckets   int
	// FullyExcluded is set when exclusion markers cover every bucket; such a
	// window passes.
	FullyExcluded bool
}

// ComputeTimeCoverage buckets the window at the expected interval, removes
// buckets touched by exclusion markers and measures what is left. Bucket
// ranges include both window edges. Excluded buckets break a gap rather
// than extend it.
func ComputeTimeCoverage(cfg governance.JudgeConfig, w problem.Window, samples []evidence.Sample, markers []evidence.Marker) Coverage {
	if w.Duration() <= 0 {
		return Coverage{MaxGapMs: math.Inf(1)}
	}
	interval := cfg.TimeCoverage.IntervalMs()
	bucket := func(ts int64) int64 { return floorTo(ts, interval) }

	excluded := make(map[int64]bool)
	for _, m := range markers {
		if !coverageExclusionKinds[m.Kind] {
			continue
		}
		start, end := m.Range()
		start, end = max(start, w.StartTs), min(end, w.EndTs)
		if end < start {
			continue
		}
		for b := bucket(start); b <= bucket(end); b += interval {
			excluded[b] = true
		}
	}

	filled := make(map[int64]bool)
	for _, s := range samples {
		if !w.Contains(s.Ts) || s.Quality == evidence.QualityBad {
			continue
		}
		if b := bucket(s.Ts); !excluded[b] {
			filled[b] = true
		}
	}

	first, last := bucket(w.StartTs), bucket(w.EndTs)
	effective := 0
	for b := first; b <= last; b += interval {
		if !excluded[b] {
			effective++
		}
	}

	cov := Coverage{ExpectedIntervalMs: interval, EffectiveBuckets: effective}
	if effective == 0 {
		cov.OK = true
		cov.FullyExcluded = true
		cov.CoverageRatio = 1
		return cov
	}
	if len(filled) == 0 {
		cov.MaxGapMs = float64(int64(effective) * interval)
		return cov
	}

	cov.CoverageRatio = clamp01(float64(len(filled)) / float64(effective))

	var longest, run int64
	for b := first; b <= last; b += interval {
		if excluded[b] || filled[b] {
			longest = max(longest, run)
			run = 0
			continue
		}
		run++
	}
	longest = max(longest, run)
	cov.MaxGapMs = float64(longest * interval)

	cov.OK = cov.MaxGapMs <= float64(cfg.TimeCoverage.MaxAllowedGapMs) &&
		cov.CoverageRatio >= cfg.TimeCoverage.MinCoverageRatio
	return cov
}

// tailOnly reports a coverage failure explained by the window edges alone:
// at most one sample, or the first or last sample further from its edge
// than the tolerated uncovered share of the window.
func tailOnly(cfg governance.JudgeConfig, w problem.Window, samples []evidence.Sample) bool {
	if len(samples) <= 1 {
		return true
	}
	ts := make([]int64, 0, len(samples))
	for _, s := range samples {
		ts = append(ts, s.Ts)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	duration := float64(max(1, w.Duration()))
	edge := 1 - cfg.TimeCoverage.MinCoverageRatio
	return float64(ts[0]-w.StartTs)/duration > edge ||
		float64(w.EndTs-ts[len(ts)-1])/duration > edge
}

func evaluateTimeCoverage(in Input) (*Finding, error) {
	cov := ComputeTimeCoverage(in.Config, in.Window, in.Samples, in.Markers)
	if cov.OK {
		return nil, nil
	}

	problemType := problem.TypeTimeCoverageGappy
	if tailOnly(in.Config, in.Window, in.Samples) {
		problemType = problem.TypeWindowNotSupport
	}
	confidence := problem.ConfidenceLow
	if cov.CoverageRatio >= 0.5 {
		confidence = problem.ConfidenceMedium
	}

	refs, err := windowRefs(in)
	if err != nil {
		return nil, err
	}
	gap := formatMs(cov.MaxGapMs)
	window := in.Window
	refs = append(refs, problem.EvidenceRef{
		Kind:      problem.RefStateVector,
		RefID:     "time_gap_" + gap,
		Note:      fmt.Sprintf("max_gap_ms=%s, expected_interval_ms=%d", gap, cov.ExpectedIntervalMs),
		TimeRange: &window,
	})

	metrics, sensors := in.Rollups()
	return &Finding{
		ProblemType: problemType,
		Confidence:  confidence,
		Uncertainty: []problem.UncertaintySource{problem.UncertaintySamplingDensity},
		Summary: fmt.Sprintf("Insufficient sampling density in window: %.1f%% of expected samples (expected_interval_ms=%d)",
			cov.CoverageRatio*100, cov.ExpectedIntervalMs),
		Metrics:   metrics,
		Sensors:   sensors,
		Refs:      refs,
		Scope:     problem.ScopeSpatialUnit,
		Degraded:  true,
		RateClass: problem.RateClassForInterval(cov.ExpectedIntervalMs),
	}, nil
}

func formatMs(v float64) string {
	if math.IsInf(v, 1) {
		return "Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floorTo(ts, step int64) int64 {
	q := ts / step
	if ts%step != 0 && ts < 0 {
		q--
	}
	return q * step
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func sortedCopy(xs []string) []string {
	out := append([]string{}, xs...)
	sort.Strings(out)
	return out
}
