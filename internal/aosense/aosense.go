// Package aosense derives the passive observation request that accompanies
// a problem state. A request asks for more observation; it never directs an
// action.
package aosense

import (
	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/problem"
)

const (
	SenseType     = "ao_sense_v1"
	SchemaVersion = "1.0.0"
)

type Kind string

const (
	KindVerify Kind = "VERIFY"
	KindWatch  Kind = "WATCH"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Focus is the category of evidence the request asks for.
type Focus string

const (
	FocusWindowCoverage     Focus = "WINDOW_COVERAGE"
	FocusSensorQC           Focus = "SENSOR_QC"
	FocusReferenceVsPrimary Focus = "REFERENCE_VS_PRIMARY"
	FocusScalePolicyLimit   Focus = "SCALE_POLICY_LIMIT"
	FocusUnknown            Focus = "UNKNOWN"
)

const (
	noteDefault  = "supporting evidence insufficient / conflict / policy limitation; request additional observation"
	noteDegraded = "sampling density degraded; device active but evidence incomplete"
	noteTooLow   = "sampling density too low; supporting evidence insufficient"
)

// Sense is one observation request.
type Sense struct {
	Type                     string             `json:"type"`
	SchemaVersion            string             `json:"schema_version"`
	AoSenseID                string             `json:"ao_sense_id"`
	CreatedAtTs              int64              `json:"created_at_ts"`
	RunID                    string             `json:"run_id"`
	SubjectRef               problem.SubjectRef `json:"subjectRef"`
	Scale                    string             `json:"scale"`
	Window                   problem.Window     `json:"window"`
	Priority                 Priority           `json:"priority"`
	SenseKind                Kind               `json:"sense_kind"`
	Note                     string             `json:"note"`
	SenseFocus               Focus              `json:"sense_focus"`
	SupportingProblemStateID string             `json:"supporting_problem_state_id"`
}

type rule struct {
	kind     Kind
	priority Priority
	focus    Focus
	note     string
}

// classify maps a problem to its request. Anything without a rule gets a
// conservative verify.
func classify(ps problem.ProblemState) rule {
	switch {
	case ps.ProblemType.IsCoverage():
		if ps.Confidence == problem.ConfidenceMedium {
			return rule{KindWatch, PriorityMedium, FocusWindowCoverage, noteDegraded}
		}
		return rule{KindVerify, PriorityHigh, FocusWindowCoverage, noteTooLow}
	case ps.ProblemType == problem.TypeSensorSuspect, ps.ProblemType == problem.TypeSensorBad:
		return rule{KindVerify, PriorityMedium, FocusSensorQC, noteDefault}
	case ps.ProblemType == problem.TypeReferenceConflict, ps.ProblemType == problem.TypeEvidenceConflict:
		return rule{KindVerify, PriorityMedium, FocusReferenceVsPrimary, noteDefault}
	case ps.ProblemType == problem.TypeScalePolicyBlocked:
		return rule{KindVerify, PriorityLow, FocusScalePolicyLimit, noteDefault}
	}
	return rule{KindVerify, PriorityMedium, FocusUnknown, noteDefault}
}

// ID is "ao_" plus the short hash of run, problem state and kind.
func ID(runID, problemStateID string, kind Kind) (string, error) {
	return canon.ShortID("ao", map[string]any{
		"run_id":           runID,
		"problem_state_id": problemStateID,
		"sense_kind":       string(kind),
	})
}

// Derive returns exactly one request for ps.
func Derive(runID string, ps problem.ProblemState, createdAt int64) ([]Sense, error) {
	r := classify(ps)
	id, err := ID(runID, ps.ProblemStateID, r.kind)
	if err != nil {
		return nil, err
	}
	return []Sense{{
		Type:                     SenseType,
		SchemaVersion:            SchemaVersion,
		AoSenseID:                id,
		CreatedAtTs:              createdAt,
		RunID:                    runID,
		SubjectRef:               ps.SubjectRef,
		Scale:                    ps.Scale,
		Window:                   ps.Window,
		Priority:                 r.priority,
		SenseKind:                r.kind,
		Note:                     r.note,
		SenseFocus:               r.focus,
		SupportingProblemStateID: ps.ProblemStateID,
	}}, nil
}
