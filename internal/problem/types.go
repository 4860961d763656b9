// Package problem holds the closed vocabularies of the judge and the
// ProblemState declaration a run may emit.
package problem

// ProblemType names why the evidence of a window cannot be trusted.
type ProblemType string

const (
	TypeInsufficientEvidence  ProblemType = "INSUFFICIENT_EVIDENCE"
	TypeTimeCoverageGappy     ProblemType = "TIME_COVERAGE_GAPPY"
	TypeWindowNotSupport      ProblemType = "WINDOW_NOT_SUPPORT"
	TypeQCContamination       ProblemType = "QC_CONTAMINATION"
	TypeSensorHealthDegraded  ProblemType = "SENSOR_HEALTH_DEGRADED"
	TypeSensorSuspect         ProblemType = "SENSOR_SUSPECT"
	TypeSensorBad             ProblemType = "SENSOR_BAD"
	TypeReferenceConflict     ProblemType = "REFERENCE_CONFLICT"
	TypeEvidenceConflict      ProblemType = "EVIDENCE_CONFLICT"
	TypeScalePolicyBlocked    ProblemType = "SCALE_POLICY_BLOCKED"
	TypeExclusionWindowActive ProblemType = "EXCLUSION_WINDOW_ACTIVE"
	TypeMarkerPresent         ProblemType = "MARKER_PRESENT"
)

var problemTypes = map[ProblemType]bool{
	TypeInsufficientEvidence:  true,
	TypeTimeCoverageGappy:     true,
	TypeWindowNotSupport:      true,
	TypeQCContamination:       true,
	TypeSensorHealthDegraded:  true,
	TypeSensorSuspect:         true,
	TypeSensorBad:             true,
	TypeReferenceConflict:     true,
	TypeEvidenceConflict:      true,
	TypeScalePolicyBlocked:    true,
	TypeExclusionWindowActive: true,
	TypeMarkerPresent:         true,
}

func (t ProblemType) Valid() bool { return problemTypes[t] }

// IsCoverage reports the window coverage family of problems.
func (t ProblemType) IsCoverage() bool {
	switch t {
	case TypeInsufficientEvidence, TypeTimeCoverageGappy, TypeWindowNotSupport:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceUnknown Confidence = "UNKNOWN"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceUnknown:
		return true
	}
	return false
}

// UncertaintySource names what makes a declaration uncertain.
type UncertaintySource string

const (
	UncertaintySampleCount              UncertaintySource = "SAMPLE_COUNT"
	UncertaintySamplingDensity          UncertaintySource = "SAMPLING_DENSITY"
	UncertaintyQCBadRatio               UncertaintySource = "QC_BAD_RATIO"
	UncertaintyQCSuspectRatio           UncertaintySource = "QC_SUSPECT_RATIO"
	UncertaintyReferenceDisagreement    UncertaintySource = "REFERENCE_DISAGREEMENT"
	UncertaintyMultiSourceInconsistency UncertaintySource = "MULTI_SOURCE_INCONSISTENCY"
	UncertaintyScalePolicyLimitation    UncertaintySource = "SCALE_POLICY_LIMITATION"
	UncertaintyExclusionWindow          UncertaintySource = "EXCLUSION_WINDOW"
	UncertaintyMarkerPresent            UncertaintySource = "MARKER_PRESENT"
)

func (u UncertaintySource) Valid() bool {
	switch u {
	case UncertaintySampleCount, UncertaintySamplingDensity, UncertaintyQCBadRatio,
		UncertaintyQCSuspectRatio, UncertaintyReferenceDisagreement,
		UncertaintyMultiSourceInconsistency, UncertaintyScalePolicyLimitation,
		UncertaintyExclusionWindow, UncertaintyMarkerPresent:
		return true
	}
	return false
}

// Scope is the extent a declaration applies to.
type Scope string

const (
	ScopeSensorPoint   Scope = "sensor_point"
	ScopeSpatialUnit   Scope = "spatial_unit"
	ScopeReferenceView Scope = "reference_view"
	ScopeUnknown       Scope = "unknown"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeSensorPoint, ScopeSpatialUnit, ScopeReferenceView, ScopeUnknown:
		return true
	}
	return false
}

type StateLayerHint string

const (
	LayerAtomic  StateLayerHint = "atomic"
	LayerDerived StateLayerHint = "derived"
	LayerMemory  StateLayerHint = "memory"
	LayerUnknown StateLayerHint = "unknown"
)

func (l StateLayerHint) Valid() bool {
	switch l {
	case LayerAtomic, LayerDerived, LayerMemory, LayerUnknown:
		return true
	}
	return false
}

type RateClassHint string

const (
	RateFast    RateClassHint = "fast"
	RateMid     RateClassHint = "mid"
	RateSlow    RateClassHint = "slow"
	RateUnknown RateClassHint = "unknown"
)

func (r RateClassHint) Valid() bool {
	switch r {
	case RateFast, RateMid, RateSlow, RateUnknown:
		return true
	}
	return false
}

// RateClassForInterval classifies a sampling cadence: up to 5s is fast, up to
// 5min is mid, anything slower is slow.
func RateClassForInterval(intervalMs int64) RateClassHint {
	switch {
	case intervalMs <= 5_000:
		return RateFast
	case intervalMs <= 300_000:
		return RateMid
	default:
		return RateSlow
	}
}

// RefKind is the kind of an evidence reference.
type RefKind string

const (
	RefLedgerSlice   RefKind = "ledger_slice"
	RefStateVector   RefKind = "state_vector"
	RefReferenceView RefKind = "reference_view"
	RefQCSummary     RefKind = "qc_summary"
	RefSeriesQuery   RefKind = "series_query"
)

// Window is a closed time range in epoch milliseconds.
type Window struct {
	StartTs int64 `json:"startTs"`
	EndTs   int64 `json:"endTs"`
}

// Duration is EndTs - StartTs; it may be zero or negative.
func (w Window) Duration() int64 { return w.EndTs - w.StartTs }

// Contains reports whether ts lies in [StartTs, EndTs].
func (w Window) Contains(ts int64) bool { return ts >= w.StartTs && ts <= w.EndTs }

// Preceding returns the window of equal length (at least 1ms) that ends where
// w starts.
func (w Window) Preceding() Window {
	dur := max(1, w.Duration())
	return Window{StartTs: w.StartTs - dur, EndTs: w.StartTs}
}

// SubjectRef identifies what a run is about.
type SubjectRef struct {
	ProjectID     string   `json:"projectId,omitempty"`
	GroupID       string   `json:"groupId,omitempty"`
	SpatialUnitID string   `json:"spatialUnitId,omitempty"`
	SensorIDs     []string `json:"sensorIds,omitempty"`
}

// IsEmpty reports a subject without any identifier.
func (s SubjectRef) IsEmpty() bool {
	return s.ProjectID == "" && s.GroupID == "" && s.SpatialUnitID == "" && len(s.SensorIDs) == 0
}

// EvidenceRef points at evidence backing a declaration.
type EvidenceRef struct {
	Kind      RefKind `json:"kind"`
	RefID     string  `json:"ref_id"`
	Note      string  `json:"note,omitempty"`
	TimeRange *Window `json:"time_range,omitempty"`
}
