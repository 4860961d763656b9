package stages

import (
	"fmt"
	"strings"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
)

// MarkerHit describes the markers active in a window.
type MarkerHit struct {
	Exclusion bool
	FactIDs   []string
	Kinds     []string
}

// CheckMarkers looks for markers whose range touches the window. Any
// configured exclusion kind makes the hit an exclusion.
func CheckMarkers(cfg governance.JudgeConfig, w problem.Window, markers []evidence.Marker) *MarkerHit {
	var active []evidence.Marker
	for _, m := range markers {
		start, end := m.Range()
		if end < start {
			start, end = end, start
		}
		if start <= w.EndTs && end >= w.StartTs {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return nil
	}
	hit := &MarkerHit{
		FactIDs: distinctSorted(active, func(m evidence.Marker) string { return m.FactID }),
		Kinds:   distinctSorted(active, func(m evidence.Marker) string { return m.Kind }),
	}
	for _, m := range active {
		if cfg.Marker.IsExclusion(m.Kind) {
			hit.Exclusion = true
			break
		}
	}
	return hit
}

func evaluateMarkers(in Input) (*Finding, error) {
	hit := CheckMarkers(in.Config, in.Window, in.Markers)
	if hit == nil {
		return nil, nil
	}
	refs, err := ledgerRefs(in)
	if err != nil {
		return nil, err
	}
	metrics, sensors := in.Rollups()

	f := &Finding{
		ProblemType: problem.TypeMarkerPresent,
		Confidence:  problem.ConfidenceMedium,
		Uncertainty: []problem.UncertaintySource{problem.UncertaintyMarkerPresent},
		Summary:     fmt.Sprintf("Markers present in window: %s", strings.Join(hit.Kinds, ", ")),
		Metrics:     metrics,
		Sensors:     sensors,
		Refs:        refs,
		Scope:       problem.ScopeSpatialUnit,
		RateClass:   problem.RateUnknown,
	}
	if hit.Exclusion {
		f.ProblemType = problem.TypeExclusionWindowActive
		f.Uncertainty = []problem.UncertaintySource{problem.UncertaintyExclusionWindow}
		f.Summary = fmt.Sprintf("Exclusion window active: %s", strings.Join(hit.Kinds, ", "))
		f.Degraded = true
	}
	return f, nil
}
