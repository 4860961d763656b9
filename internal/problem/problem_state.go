package problem

import (
	"errors"
	"fmt"
)

const (
	StateType     = "problem_state_v1"
	SchemaVersion = "1.0.0"
)

// ErrInvalidProblemState is wrapped by every Builder.Build failure.
var ErrInvalidProblemState = errors.New("invalid problem state")

// ProblemState is the single declaration a run may emit. Values are built
// once through Builder and never mutated afterwards.
type ProblemState struct {
	Type                   string              `json:"type"`
	SchemaVersion          string              `json:"schema_version"`
	ProblemStateID         string              `json:"problem_state_id"`
	CreatedAtTs            int64               `json:"created_at_ts"`
	SubjectRef             SubjectRef          `json:"subjectRef"`
	Scale                  string              `json:"scale"`
	Window                 Window              `json:"window"`
	ProblemType            ProblemType         `json:"problem_type"`
	Confidence             Confidence          `json:"confidence"`
	UncertaintySources     []UncertaintySource `json:"uncertainty_sources"`
	Summary                string              `json:"summary"`
	MetricsInvolved        []string            `json:"metrics_involved"`
	SensorsInvolved        []string            `json:"sensors_involved"`
	SupportingEvidenceRefs []EvidenceRef       `json:"supporting_evidence_refs,omitempty"`
	StateInputsUsed        []any               `json:"state_inputs_used"`
	SystemDegraded         bool                `json:"system_degraded"`
	StateLayerHint         StateLayerHint      `json:"state_layer_hint"`
	RateClassHint          RateClassHint       `json:"rate_class_hint"`
	ProblemScope           Scope               `json:"problem_scope"`
}

// Content returns the state without its surrogate id and creation time,
// which is what two runs over identical inputs must agree on.
func (p ProblemState) Content() ProblemState {
	p.ProblemStateID = ""
	p.CreatedAtTs = 0
	return p
}

// Builder assembles a ProblemState and checks its invariants on Build.
type Builder struct {
	ps ProblemState
}

// NewBuilder starts a declaration about subject at scale over window.
func NewBuilder(subject SubjectRef, scale string, window Window) *Builder {
	return &Builder{ps: ProblemState{
		Type:            StateType,
		SchemaVersion:   SchemaVersion,
		SubjectRef:      subject,
		Scale:           scale,
		Window:          window,
		MetricsInvolved: []string{},
		SensorsInvolved: []string{},
		StateInputsUsed: []any{},
		StateLayerHint:  LayerUnknown,
		RateClassHint:   RateUnknown,
		ProblemScope:    ScopeUnknown,
	}}
}

func (b *Builder) Problem(t ProblemType, c Confidence) *Builder {
	b.ps.ProblemType = t
	b.ps.Confidence = c
	return b
}

func (b *Builder) Uncertainty(sources ...UncertaintySource) *Builder {
	b.ps.UncertaintySources = append([]UncertaintySource{}, sources...)
	return b
}

func (b *Builder) Summary(s string) *Builder {
	b.ps.Summary = s
	return b
}

func (b *Builder) Metrics(metrics []string) *Builder {
	b.ps.MetricsInvolved = append([]string{}, metrics...)
	return b
}

func (b *Builder) Sensors(sensors []string) *Builder {
	b.ps.SensorsInvolved = append([]string{}, sensors...)
	return b
}

func (b *Builder) Refs(refs []EvidenceRef) *Builder {
	if len(refs) == 0 {
		b.ps.SupportingEvidenceRefs = nil
		return b
	}
	b.ps.SupportingEvidenceRefs = append([]EvidenceRef{}, refs...)
	return b
}

func (b *Builder) Degraded(d bool) *Builder {
	b.ps.SystemDegraded = d
	return b
}

func (b *Builder) RateClass(r RateClassHint) *Builder {
	b.ps.RateClassHint = r
	return b
}

func (b *Builder) Scope(s Scope) *Builder {
	b.ps.ProblemScope = s
	return b
}

// Build stamps id and createdAt and validates the result.
func (b *Builder) Build(id string, createdAt int64) (ProblemState, error) {
	ps := b.ps
	ps.ProblemStateID = id
	ps.CreatedAtTs = createdAt

	switch {
	case id == "":
		return ProblemState{}, fmt.Errorf("%w: empty id", ErrInvalidProblemState)
	case ps.SubjectRef.IsEmpty():
		return ProblemState{}, fmt.Errorf("%w: empty subject", ErrInvalidProblemState)
	case ps.Scale == "":
		return ProblemState{}, fmt.Errorf("%w: empty scale", ErrInvalidProblemState)
	case ps.Window.EndTs < ps.Window.StartTs:
		return ProblemState{}, fmt.Errorf("%w: window ends before it starts", ErrInvalidProblemState)
	case !ps.ProblemType.Valid():
		return ProblemState{}, fmt.Errorf("%w: problem type %q", ErrInvalidProblemState, ps.ProblemType)
	case !ps.Confidence.Valid():
		return ProblemState{}, fmt.Errorf("%w: confidence %q", ErrInvalidProblemState, ps.Confidence)
	case len(ps.UncertaintySources) == 0:
		return ProblemState{}, fmt.Errorf("%w: no uncertainty sources", ErrInvalidProblemState)
	case !ps.ProblemScope.Valid():
		return ProblemState{}, fmt.Errorf("%w: scope %q", ErrInvalidProblemState, ps.ProblemScope)
	case !ps.RateClassHint.Valid():
		return ProblemState{}, fmt.Errorf("%w: rate class %q", ErrInvalidProblemState, ps.RateClassHint)
	case !ps.StateLayerHint.Valid():
		return ProblemState{}, fmt.Errorf("%w: state layer %q", ErrInvalidProblemState, ps.StateLayerHint)
	}
	for _, u := range ps.UncertaintySources {
		if !u.Valid() {
			return ProblemState{}, fmt.Errorf("%w: uncertainty source %q", ErrInvalidProblemState, u)
		}
	}
	return ps, nil
}
