package governance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/logging"
)

// Resolved is the configuration a run evaluates against.
type Resolved struct {
	SSOT          *SSOT
	Doc           map[string]any
	Config        JudgeConfig
	EffectiveHash string
	Patched       bool
}

// PatchResult is the success body of a patch submission.
type PatchResult struct {
	OK            bool         `json:"ok"`
	SSOTHash      string       `json:"ssot_hash"`
	EffectiveHash string       `json:"effective_hash"`
	ChangedPaths  []string     `json:"changed_paths"`
	Errors        []PatchError `json:"errors"`
	Committed     bool         `json:"committed,omitempty"`
}

// Governor serves manifests, validates patches and resolves effective
// configs. Every call re-reads the SSOT from its source.
type Governor struct {
	source  Source
	now     func() time.Time
	metrics *Metrics
	logger  *logging.Logger

	// commitMu serializes compare-and-write on Store sources.
	commitMu sync.Mutex
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock overrides the manifest timestamp clock.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithMetrics records patch outcomes.
func WithMetrics(m *Metrics) Option {
	return func(g *Governor) { g.metrics = m }
}

// NewGovernor creates a governor reading from source.
func NewGovernor(source Source, opts ...Option) *Governor {
	g := &Governor{
		source: source,
		now:    time.Now,
		logger: logging.GetLogger("judge.governance"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Current loads the SSOT.
func (g *Governor) Current(ctx context.Context) (*SSOT, error) {
	return g.source.Load(ctx)
}

// Manifest loads the SSOT and derives its manifest.
func (g *Governor) Manifest(ctx context.Context) (*Manifest, error) {
	ssot, err := g.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return BuildManifest(ssot, g.now()), nil
}

// Resolve returns the effective config for a run. rawPatch is the decoded
// JSON of an inline patch, or nil. A stale base hash is a 409 rejection and
// is checked before any op.
func (g *Governor) Resolve(ctx context.Context, rawPatch any) (*Resolved, error) {
	ssot, err := g.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rawPatch == nil {
		return &Resolved{SSOT: ssot, Doc: ssot.Doc, Config: ssot.Config, EffectiveHash: ssot.Hash}, nil
	}

	if got := PatchBaseHash(rawPatch); got != ssot.Hash {
		return nil, g.reject(rejectHashMismatch("patch.base.ssot_hash", got, ssot.Hash))
	}
	resolved, rej := g.applyValidated(ssot, rawPatch)
	if rej != nil {
		return nil, g.reject(rej)
	}
	return resolved, nil
}

// SubmitPatch runs the full patch request protocol on body
// ({base, patch, dryRun}). A dryRun of false commits the effective document
// when the source is a Store; otherwise the call only previews.
func (g *Governor) SubmitPatch(ctx context.Context, body any) (*PatchResult, error) {
	if errs := ValidateEnvelope(body); len(errs) > 0 {
		return nil, g.reject(rejectValidation("", errs))
	}
	envelope := body.(map[string]any)
	requestBase := envelope["base"].(map[string]any)["ssot_hash"].(string)
	rawPatch := envelope["patch"]
	dryRun, explicit := envelope["dryRun"].(bool)
	commit := explicit && !dryRun

	if commit {
		if _, ok := g.source.(Store); ok {
			g.commitMu.Lock()
			defer g.commitMu.Unlock()
		} else {
			commit = false
		}
	}

	ssot, err := g.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if requestBase != ssot.Hash {
		return nil, g.reject(rejectHashMismatch("base.ssot_hash", requestBase, ssot.Hash))
	}
	if got := PatchBaseHash(rawPatch); got != ssot.Hash {
		return nil, g.reject(rejectHashMismatch("patch.base.ssot_hash", got, ssot.Hash))
	}

	resolved, rej := g.applyValidated(ssot, rawPatch)
	if rej != nil {
		return nil, g.reject(rej)
	}
	patch, err := DecodePatch(rawPatch)
	if err != nil {
		return nil, err
	}

	result := &PatchResult{
		OK:            true,
		SSOTHash:      ssot.Hash,
		EffectiveHash: resolved.EffectiveHash,
		ChangedPaths:  patch.ChangedPaths(),
		Errors:        []PatchError{},
	}

	if commit {
		if err := g.source.(Store).Save(ctx, resolved.Doc); err != nil {
			return nil, fmt.Errorf("failed to commit judge config patch: %w", err)
		}
		result.Committed = true
		g.logger.InfoWithFields("judge config patch committed",
			logging.Field("base_hash", ssot.Hash),
			logging.Field("effective_hash", resolved.EffectiveHash),
			logging.Field("changed_paths", result.ChangedPaths),
		)
	}
	g.metrics.observe(outcomeAccepted)
	return result, nil
}

// applyValidated validates rawPatch against the manifest of ssot, applies it
// and re-checks the anchors of the result.
func (g *Governor) applyValidated(ssot *SSOT, rawPatch any) (*Resolved, *PatchRejectedError) {
	manifest := BuildManifest(ssot, g.now())
	if errs := ValidatePatch(rawPatch, manifest); len(errs) > 0 {
		return nil, rejectValidation(ssot.Hash, errs)
	}

	patch, err := DecodePatch(rawPatch)
	if err != nil {
		return nil, rejectValidation(ssot.Hash, []PatchError{schemaError("patch", err.Error())})
	}
	doc, err := ApplyPatch(ssot.Doc, patch)
	if err != nil {
		return nil, rejectValidation(ssot.Hash, []PatchError{schemaError("", err.Error())})
	}
	if err := ValidateEffectiveConfig(doc); err != nil {
		return nil, rejectValidation(ssot.Hash, []PatchError{schemaError("", reason(err))})
	}
	cfg, err := DecodeConfig(doc)
	if err != nil {
		return nil, rejectValidation(ssot.Hash, []PatchError{schemaError("", reason(err))})
	}
	hash, err := Hash(doc)
	if err != nil {
		return nil, rejectValidation(ssot.Hash, []PatchError{schemaError("", reason(err))})
	}
	return &Resolved{SSOT: ssot, Doc: doc, Config: cfg, EffectiveHash: hash, Patched: true}, nil
}

func (g *Governor) reject(rej *PatchRejectedError) error {
	if rej.IsConflict() {
		g.metrics.observe(outcomeConflict)
	} else {
		g.metrics.observe(outcomeInvalid)
	}
	g.logger.DebugWithFields("judge config patch rejected",
		logging.Field("status", rej.Status),
		logging.Field("errors", len(rej.Errors)),
	)
	return rej
}

func reason(err error) string {
	if ci, ok := err.(*ConfigInvalidError); ok {
		return ci.Reason
	}
	return err.Error()
}

func cloneDoc(doc map[string]any) map[string]any {
	out, err := canon.CloneObject(doc)
	if err != nil {
		return map[string]any{}
	}
	return out
}
