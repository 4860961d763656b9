package judge

import (
	"github.com/geox/judge/internal/problem"
)

const (
	LBCandidateType          = "lb_candidate_v1"
	LBCandidateSchemaVersion = "1.0.0"
)

// StatusWord is the maturity label of a learning-backlog candidate.
type StatusWord string

const (
	StatusStable            StatusWord = "STABLE"
	StatusDrifting          StatusWord = "DRIFTING"
	StatusUnstable          StatusWord = "UNSTABLE"
	StatusNeedsVerification StatusWord = "NEEDS_VERIFICATION"
)

// LBCandidate proposes a problem state as a pattern worth verifying later.
type LBCandidate struct {
	Type                   string                `json:"type"`
	SchemaVersion          string                `json:"schema_version"`
	LBCandidateID          string                `json:"lb_candidate_id"`
	CreatedAtTs            int64                 `json:"created_at_ts"`
	RunID                  string                `json:"run_id"`
	ProblemStateID         string                `json:"problem_state_id"`
	SubjectRef             problem.SubjectRef    `json:"subjectRef"`
	Scale                  string                `json:"scale"`
	Window                 problem.Window        `json:"window"`
	StatusWord             StatusWord            `json:"status_word"`
	Title                  string                `json:"title"`
	Hypothesis             *string               `json:"hypothesis"`
	Metric                 *string               `json:"metric"`
	SupportingEvidenceRefs []problem.EvidenceRef `json:"supporting_evidence_refs,omitempty"`
}

// DeriveLBCandidates returns one unverified candidate for ps, titled after
// its first involved metric.
func DeriveLBCandidates(runID string, ps problem.ProblemState, id string, createdAt int64) []LBCandidate {
	title := "Candidate pattern"
	var metric *string
	if len(ps.MetricsInvolved) > 0 {
		m := ps.MetricsInvolved[0]
		metric = &m
		title = "Candidate pattern: " + m
	}
	return []LBCandidate{{
		Type:                   LBCandidateType,
		SchemaVersion:          LBCandidateSchemaVersion,
		LBCandidateID:          id,
		CreatedAtTs:            createdAt,
		RunID:                  runID,
		ProblemStateID:         ps.ProblemStateID,
		SubjectRef:             ps.SubjectRef,
		Scale:                  ps.Scale,
		Window:                 ps.Window,
		StatusWord:             StatusNeedsVerification,
		Title:                  title,
		Metric:                 metric,
		SupportingEvidenceRefs: ps.SupportingEvidenceRefs,
	}}
}
