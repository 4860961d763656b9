package governance

import (
	"encoding/json"
	"fmt"
)

// DefaultExpectedIntervalMs applies when time_coverage.expected_interval_ms
// is absent from the document.
const DefaultExpectedIntervalMs int64 = 60_000

// JudgeConfig is the typed view of an SSOT or effective config document.
// Stages read configuration only through this struct.
type JudgeConfig struct {
	SchemaVersion   string       `json:"schema_version"`
	Name            string       `json:"name,omitempty"`
	RequiredMetrics []string     `json:"required_metrics"`
	Sufficiency     Sufficiency  `json:"sufficiency"`
	TimeCoverage    TimeCoverage `json:"time_coverage"`
	QC              QC           `json:"qc"`
	Reference       Reference    `json:"reference"`
	Conflict        Conflict     `json:"conflict"`
	Marker          Marker       `json:"marker"`
	Determinism     Determinism  `json:"determinism"`
}

type Sufficiency struct {
	MinTotalSamples             int `json:"min_total_samples"`
	MinSamplesPerRequiredMetric int `json:"min_samples_per_required_metric"`
}

type TimeCoverage struct {
	MaxAllowedGapMs    int64   `json:"max_allowed_gap_ms"`
	MinCoverageRatio   float64 `json:"min_coverage_ratio"`
	ExpectedIntervalMs *int64  `json:"expected_interval_ms,omitempty"`
}

// IntervalMs returns the bucket width, never below 1ms.
func (t TimeCoverage) IntervalMs() int64 {
	if t.ExpectedIntervalMs == nil {
		return DefaultExpectedIntervalMs
	}
	return max(1, *t.ExpectedIntervalMs)
}

type QC struct {
	BadPctThreshold     float64 `json:"bad_pct_threshold"`
	SuspectPctThreshold float64 `json:"suspect_pct_threshold"`
}

type Reference struct {
	Enable       bool     `json:"enable"`
	KindsEnabled []string `json:"kinds_enabled"`
}

// KindEnabled reports whether kind is listed in kinds_enabled.
func (r Reference) KindEnabled(kind string) bool {
	for _, k := range r.KindsEnabled {
		if k == kind {
			return true
		}
	}
	return false
}

type Conflict struct {
	MinOverlapRatio       float64 `json:"min_overlap_ratio"`
	DeltaNumericThreshold float64 `json:"delta_numeric_threshold"`
	MinPointsInOverlap    int     `json:"min_points_in_overlap"`
}

type Marker struct {
	ExclusionKinds []string `json:"exclusion_kinds"`
}

// IsExclusion reports whether kind is a configured exclusion kind.
func (m Marker) IsExclusion(kind string) bool {
	for _, k := range m.ExclusionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Determinism struct {
	TieBreaker string `json:"tie_breaker"`
}

// DecodeConfig builds the typed view of doc. Sections the struct does not
// know about stay in the document and still count toward its hash.
func DecodeConfig(doc map[string]any) (JudgeConfig, error) {
	var cfg JudgeConfig
	b, err := json.Marshal(doc)
	if err != nil {
		return cfg, configInvalid("encode: %v", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, configInvalid("decode: %v", err)
	}
	return cfg, nil
}

func mustObject(v any, name string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, configInvalid("%s must be object", name)
	}
	return m, nil
}

func isStringList(v any) bool {
	if _, ok := v.([]string); ok {
		return true
	}
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, x := range list {
		if _, ok := x.(string); !ok {
			return false
		}
	}
	return true
}

func describe(v any) string {
	if v == nil {
		return "missing"
	}
	return fmt.Sprintf("%T", v)
}
