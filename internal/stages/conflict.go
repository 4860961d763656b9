package stages

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/reference"
)

// ConflictHit lists the metrics on which usable sensors disagree.
type ConflictHit struct {
	Metrics []string
	Sensors []string
}

// series is one sensor's samples of one concrete metric.
type series struct {
	ts      []int64
	values  []float64
	anyOK   bool
	samples int
}

func (s *series) span() (int64, int64) {
	lo, hi := s.ts[0], s.ts[0]
	for _, t := range s.ts[1:] {
		lo, hi = min(lo, t), max(hi, t)
	}
	return lo, hi
}

// DetectEvidenceConflict compares sensors reporting the same concrete metric
// of each required family. A sensor takes part when it has enough points, a
// positive time span and a finite median. Conflict needs two such sensors
// whose spans overlap enough of the window and whose medians differ by at
// least the threshold, unless none of them has a single ok sample.
func DetectEvidenceConflict(cfg governance.JudgeConfig, samples []evidence.Sample, w problem.Window) *ConflictHit {
	windowSpan := w.Duration()
	if windowSpan <= 0 || len(samples) == 0 {
		return nil
	}

	metrics := map[string]bool{}
	sensors := map[string]bool{}
	for _, base := range cfg.RequiredMetrics {
		byMetric := map[string]map[string]*series{}
		for _, s := range samples {
			if !evidence.MatchesRequired(s.Metric, base) || s.SensorID == "" {
				continue
			}
			bySensor, ok := byMetric[s.Metric]
			if !ok {
				bySensor = map[string]*series{}
				byMetric[s.Metric] = bySensor
			}
			sr, ok := bySensor[s.SensorID]
			if !ok {
				sr = &series{}
				bySensor[s.SensorID] = sr
			}
			sr.ts = append(sr.ts, s.Ts)
			sr.samples++
			if !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0) {
				sr.values = append(sr.values, s.Value)
			}
			if s.Quality == evidence.QualityOK {
				sr.anyOK = true
			}
		}

		for metric, bySensor := range byMetric {
			usable := usableSensors(cfg.Conflict, bySensor)
			if len(usable) < 2 {
				continue
			}

			var start, end int64
			lo, hi := math.Inf(1), math.Inf(-1)
			anyOK := false
			for i, id := range usable {
				sr := bySensor[id]
				s, e := sr.span()
				if i == 0 {
					start, end = s, e
				} else {
					start, end = max(start, s), min(end, e)
				}
				md, _ := median(sr.values)
				lo, hi = math.Min(lo, md), math.Max(hi, md)
				anyOK = anyOK || sr.anyOK
			}
			overlap := float64(max(0, end-start)) / float64(windowSpan)
			if overlap < cfg.Conflict.MinOverlapRatio {
				continue
			}
			if hi-lo < cfg.Conflict.DeltaNumericThreshold {
				continue
			}
			if !anyOK {
				continue
			}
			metrics[metric] = true
			for _, id := range usable {
				sensors[id] = true
			}
		}
	}

	if len(metrics) == 0 {
		return nil
	}
	return &ConflictHit{Metrics: keys(metrics), Sensors: keys(sensors)}
}

func usableSensors(cfg governance.Conflict, bySensor map[string]*series) []string {
	var out []string
	for id, sr := range bySensor {
		if sr.samples < cfg.MinPointsInOverlap {
			continue
		}
		if s, e := sr.span(); e-s <= 0 {
			continue
		}
		if _, ok := median(sr.values); !ok {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func median(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	a := append([]float64{}, xs...)
	sort.Float64s(a)
	m := len(a) / 2
	if len(a)%2 == 1 {
		return a[m], true
	}
	return (a[m-1] + a[m]) / 2, true
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DetectReferenceConflict returns the distinct sorted metrics of views whose
// conflict hint is clear.
func DetectReferenceConflict(views []reference.View) []string {
	set := map[string]bool{}
	for _, v := range views {
		if v.ComparisonSummary.ConflictHint.Label == reference.ConflictClear {
			set[v.Metric] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return keys(set)
}

func evaluateReferenceConflict(in Input) (*Finding, error) {
	metrics := DetectReferenceConflict(in.ReferenceViews)
	if len(metrics) == 0 {
		return nil, nil
	}
	conflicted := map[string]bool{}
	for _, m := range metrics {
		conflicted[m] = true
	}
	var refs []problem.EvidenceRef
	var ids []string
	for _, v := range in.ReferenceViews {
		if !conflicted[v.Metric] {
			continue
		}
		window := in.Window
		refs = append(refs, problem.EvidenceRef{Kind: problem.RefReferenceView, RefID: v.ReferenceViewID, TimeRange: &window})
		ids = append(ids, v.ReferenceViewID)
	}
	sort.Strings(ids)

	_, sensors := in.Rollups()
	return &Finding{
		ProblemType:      problem.TypeReferenceConflict,
		Confidence:       problem.ConfidenceHigh,
		Uncertainty:      []problem.UncertaintySource{problem.UncertaintyReferenceDisagreement},
		Summary:          "Window diverges from its reference: " + strings.Join(metrics, ", "),
		Metrics:          metrics,
		Sensors:          sensors,
		Refs:             refs,
		Scope:            problem.ScopeReferenceView,
		RateClass:        problem.RateUnknown,
		ReferenceViewIDs: ids,
	}, nil
}

func evaluateEvidenceConflict(in Input) (*Finding, error) {
	hit := DetectEvidenceConflict(in.Config, in.Samples, in.Window)
	if hit == nil {
		return nil, nil
	}
	refs, err := ledgerRefs(in)
	if err != nil {
		return nil, err
	}
	return &Finding{
		ProblemType: problem.TypeEvidenceConflict,
		Confidence:  problem.ConfidenceHigh,
		Uncertainty: []problem.UncertaintySource{problem.UncertaintyMultiSourceInconsistency},
		Summary: fmt.Sprintf("Sensors disagree on %s (%s)",
			strings.Join(hit.Metrics, ", "), strings.Join(hit.Sensors, ", ")),
		Metrics:   hit.Metrics,
		Sensors:   hit.Sensors,
		Refs:      refs,
		Scope:     problem.ScopeSpatialUnit,
		RateClass: problem.RateUnknown,
	}, nil
}
