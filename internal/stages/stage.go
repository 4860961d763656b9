// Package stages holds the rule stages of the judge pipeline. Each stage is
// a pure function of the resolved config and the evidence of one window and
// returns at most one Finding. Stages run in a fixed order and the first
// Finding wins.
package stages

import (
	"fmt"
	"sort"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/reference"
)

// Input is the evidence a stage evaluates.
type Input struct {
	Config  governance.JudgeConfig
	Scale   string
	Window  problem.Window
	Samples []evidence.Sample
	Markers []evidence.Marker
	// FactIDs are the distinct sorted ids of every row read for the window.
	FactIDs []string
	// ReferenceViews is only consulted by the reference stages.
	ReferenceViews []reference.View
}

// Rollups returns the distinct sorted metrics and sensors of the samples.
func (in Input) Rollups() (metrics, sensors []string) {
	return distinctSorted(in.Samples, func(s evidence.Sample) string { return s.Metric }),
		distinctSorted(in.Samples, func(s evidence.Sample) string { return s.SensorID })
}

// Finding is a stage's declaration, before it is stamped into a
// problem.ProblemState.
type Finding struct {
	Stage       string
	ProblemType problem.ProblemType
	Confidence  problem.Confidence
	Uncertainty []problem.UncertaintySource
	Summary     string
	Metrics     []string
	Sensors     []string
	Refs        []problem.EvidenceRef
	Scope       problem.Scope
	Degraded    bool
	RateClass   problem.RateClassHint
	// ReferenceViewIDs narrows the views bound into the determinism bundle;
	// nil binds every produced view.
	ReferenceViewIDs []string
}

// Builder starts a problem.Builder carrying the finding.
func (f *Finding) Builder(subject problem.SubjectRef, scale string, window problem.Window) *problem.Builder {
	rate := f.RateClass
	if rate == "" {
		rate = problem.RateUnknown
	}
	return problem.NewBuilder(subject, scale, window).
		Problem(f.ProblemType, f.Confidence).
		Uncertainty(f.Uncertainty...).
		Summary(f.Summary).
		Metrics(f.Metrics).
		Sensors(f.Sensors).
		Refs(f.Refs).
		Degraded(f.Degraded).
		RateClass(rate).
		Scope(f.Scope)
}

// Stage is one named rule.
type Stage struct {
	Name     string
	Evaluate func(in Input) (*Finding, error)
}

const (
	NameSufficiency       = "sufficiency"
	NameTimeCoverage      = "time_coverage"
	NameQualityControl    = "quality_control"
	NameReferenceConflict = "reference_conflict"
	NameEvidenceConflict  = "evidence_conflict"
	NameScalePolicy       = "scale_policy"
	NameMarkerExclusion   = "marker_exclusion"
)

// EvidenceStages run on the window's own evidence, before any reference
// view is built.
var EvidenceStages = []Stage{
	{Name: NameSufficiency, Evaluate: evaluateSufficiency},
	{Name: NameTimeCoverage, Evaluate: evaluateTimeCoverage},
	{Name: NameQualityControl, Evaluate: evaluateQC},
}

// ReferenceStages run once reference views are available. Reference conflict
// is checked before cross-sensor conflict.
var ReferenceStages = []Stage{
	{Name: NameReferenceConflict, Evaluate: evaluateReferenceConflict},
	{Name: NameEvidenceConflict, Evaluate: evaluateEvidenceConflict},
	{Name: NameScalePolicy, Evaluate: evaluateScalePolicy},
	{Name: NameMarkerExclusion, Evaluate: evaluateMarkers},
}

// Run evaluates stages in order and returns the first finding, or nil when
// every stage passes.
func Run(stages []Stage, in Input) (*Finding, error) {
	for _, s := range stages {
		f, err := s.Evaluate(in)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.Name, err)
		}
		if f != nil {
			f.Stage = s.Name
			return f, nil
		}
	}
	return nil, nil
}

func distinctSorted[T any](items []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0)
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
