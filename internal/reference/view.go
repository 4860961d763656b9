// Package reference builds reference views: comparisons of a window's
// primary evidence against a reference series for the same subject.
package reference

import (
	"fmt"

	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/problem"
)

const (
	ViewType      = "reference_view_v1"
	SchemaVersion = "1.0.0"
)

// Kind is the reference family a view compares against.
type Kind string

const (
	KindWithinUnitHistory       Kind = "WITHIN_UNIT_HISTORY"
	KindWithinUnitControlSensor Kind = "WITHIN_UNIT_CONTROL_SENSOR"
	KindNeighborSameScale       Kind = "NEIGHBOR_SAME_SCALE"
	KindExternalContext         Kind = "EXTERNAL_CONTEXT"
)

type DeltaLabel string

const (
	DeltaAligned   DeltaLabel = "aligned"
	DeltaDiverging DeltaLabel = "diverging"
	DeltaUnknown   DeltaLabel = "unknown"
)

type ConflictLabel string

const (
	ConflictNone     ConflictLabel = "none"
	ConflictPossible ConflictLabel = "possible"
	ConflictClear    ConflictLabel = "clear"
	ConflictUnknown  ConflictLabel = "unknown"
)

type DeltaHint struct {
	Label DeltaLabel `json:"label"`
	// Magnitude is nil when either side has no finite values.
	Magnitude *float64 `json:"magnitude"`
}

type ConflictHint struct {
	Label     ConflictLabel         `json:"label"`
	BasisRefs []problem.EvidenceRef `json:"basis_refs"`
}

type ComparisonSummary struct {
	OverlapRatio         float64        `json:"overlap_ratio"`
	PrimarySampleCount   int            `json:"primary_sample_count"`
	ReferenceSampleCount int            `json:"reference_sample_count"`
	QCMixPrimary         evidence.QCMix `json:"qc_mix_primary"`
	QCMixReference       evidence.QCMix `json:"qc_mix_reference"`
	DeltaHint            DeltaHint      `json:"delta_hint"`
	ConflictHint         ConflictHint   `json:"conflict_hint"`
}

// View is one reference comparison for one metric.
type View struct {
	Type               string              `json:"type"`
	SchemaVersion      string              `json:"schema_version"`
	ReferenceViewID    string              `json:"reference_view_id"`
	CreatedAtTs        int64               `json:"created_at_ts"`
	SubjectRef         problem.SubjectRef  `json:"subjectRef"`
	Scale              string              `json:"scale"`
	Window             problem.Window      `json:"window"`
	Kind               Kind                `json:"kind"`
	Metric             string              `json:"metric"`
	PrimarySeriesRef   problem.EvidenceRef `json:"primary_series_ref"`
	ReferenceSeriesRef problem.EvidenceRef `json:"reference_series_ref"`
	ComparisonSummary  ComparisonSummary   `json:"comparison_summary"`
	Notes              *string             `json:"notes"`
}

// NaturalKey is the identity of a view: the same subject, scale, window,
// kind and metric always yield the same key. Only projectId and groupId of
// the subject enter the key, so subjects anchored by spatial unit or sensors
// alone share the empty-group key.
func NaturalKey(subject problem.SubjectRef, scale string, w problem.Window, kind Kind, metric string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s",
		subject.ProjectID, subject.GroupID, scale, w.StartTs, w.EndTs, kind, metric)
}

// ViewID derives the content-addressed "rv_" id of a natural key.
func ViewID(naturalKey string) string {
	return canon.ShortIDFromString("rv", naturalKey)
}

// IDs returns the ids of views, in view order.
func IDs(views []View) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ReferenceViewID)
	}
	return out
}
