// Package judge runs the staged evaluation of one evidence window and
// assembles the run output: at most one problem state, its observation
// request, reference views and the determinism hash binding them to their
// inputs.
package judge

import (
	"errors"
	"fmt"

	"github.com/geox/judge/internal/aosense"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/reference"
)

const (
	PipelineVersion = "judge_pipeline_v1"
	DefaultProfile  = "default"
)

var (
	// ErrInvalidInput rejects a run before any evidence is read.
	ErrInvalidInput = errors.New("invalid run input")
	// ErrEvidenceRead wraps every failure of the evidence reader.
	ErrEvidenceRead = errors.New("evidence read failed")
)

// RunOptions are the per-run switches of the run contract.
type RunOptions struct {
	Persist               bool   `json:"persist"`
	IncludeReferenceViews bool   `json:"include_reference_views"`
	IncludeLBCandidates   bool   `json:"include_lb_candidates"`
	ConfigProfile         string `json:"config_profile,omitempty"`
	// ConfigPatch is the decoded JSON of an inline replace-only patch.
	ConfigPatch any `json:"config_patch,omitempty"`
}

// Profile returns ConfigProfile or DefaultProfile.
func (o RunOptions) Profile() string {
	if o.ConfigProfile == "" {
		return DefaultProfile
	}
	return o.ConfigProfile
}

// RunInput is one judge request.
type RunInput struct {
	SubjectRef problem.SubjectRef `json:"subjectRef"`
	Scale      string             `json:"scale"`
	Window     problem.Window     `json:"window"`
	Options    RunOptions         `json:"options"`
}

// Validate checks the request shape. A zero-length window is allowed.
func (in RunInput) Validate() error {
	if in.Scale == "" {
		return fmt.Errorf("%w: scale must be a non-empty string", ErrInvalidInput)
	}
	if in.Window.EndTs < in.Window.StartTs {
		return fmt.Errorf("%w: window.endTs %d is before window.startTs %d",
			ErrInvalidInput, in.Window.EndTs, in.Window.StartTs)
	}
	return nil
}

// RunMeta identifies the pipeline that produced an output.
type RunMeta struct {
	PipelineVersion string `json:"pipeline_version"`
	ConfigProfile   string `json:"config_profile"`
}

// RunOutput is the run contract response. ReferenceViews and LBCandidates
// are present only when requested; when present they may be empty.
type RunOutput struct {
	RunID               string                 `json:"run_id"`
	DeterminismHash     string                 `json:"determinism_hash"`
	EffectiveConfigHash string                 `json:"effective_config_hash"`
	ProblemStates       []problem.ProblemState `json:"problem_states"`
	AoSense             []aosense.Sense        `json:"ao_sense"`
	ReferenceViews      *[]reference.View      `json:"reference_views,omitempty"`
	LBCandidates        *[]LBCandidate         `json:"lb_candidates,omitempty"`
	Silent              bool                   `json:"silent"`
	RunMeta             RunMeta                `json:"run_meta"`
	InputFactIDs        []string               `json:"input_fact_ids"`
}

// ProblemState returns the declaration of the run, if any.
func (o *RunOutput) ProblemState() (problem.ProblemState, bool) {
	if len(o.ProblemStates) == 0 {
		return problem.ProblemState{}, false
	}
	return o.ProblemStates[0], true
}

// Bundle is the canonical set of inputs the determinism hash binds.
type Bundle struct {
	SubjectRef          problem.SubjectRef `json:"subjectRef"`
	Scale               string             `json:"scale"`
	Window              problem.Window     `json:"window"`
	PipelineVersion     string             `json:"pipeline_version"`
	ConfigProfile       string             `json:"config_profile"`
	SSOTHash            string             `json:"ssot_hash"`
	EffectiveConfigHash string             `json:"effective_config_hash"`
	FactIDs             []string           `json:"factIds"`
	ReferenceViewIDs    []string           `json:"reference_view_ids"`
}

// RunResult is the full product of a run, including artefacts the output
// may omit.
type RunResult struct {
	RunID                  string
	CreatedAtTs            int64
	Bundle                 Bundle
	Output                 *RunOutput
	ProducedReferenceViews []reference.View
	ProducedLBCandidates   []LBCandidate
	// Stage names the stage that declared, empty when silent.
	Stage string
}
