package judge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/geox/judge/internal/aosense"
	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/logging"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/reference"
	"github.com/geox/judge/internal/stages"
)

// Recorder keeps runs that asked to be persisted.
type Recorder interface {
	Record(ctx context.Context, result *RunResult)
}

// Pipeline evaluates one window per Run. It holds no per-run state and is
// safe for concurrent use.
type Pipeline struct {
	governor *governance.Governor
	reader   evidence.Reader
	clock    Clock
	ids      IDGenerator
	tracer   trace.Tracer
	metrics  *Metrics
	recorder Recorder
	logger   *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the source of created_at timestamps.
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithIDGenerator sets the source of run and surrogate ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Pipeline) { p.ids = g }
}

// WithTracer sets the tracer for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMetrics records run outcomes.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRecorder receives runs submitted with options.persist.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// NewPipeline creates a pipeline resolving configs through gov and reading
// evidence from reader.
func NewPipeline(gov *governance.Governor, reader evidence.Reader, opts ...Option) *Pipeline {
	p := &Pipeline{
		governor: gov,
		reader:   reader,
		clock:    SystemClock,
		ids:      UUIDGenerator{},
		tracer:   noop.NewTracerProvider().Tracer("judge"),
		logger:   logging.GetLogger("judge.pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run evaluates in. Business outcomes (insufficient evidence, gaps,
// conflicts) are a successful result carrying a problem state; errors are
// reserved for invalid input, config faults, patch rejections and reader
// failures.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	start := time.Now()
	if err := in.Validate(); err != nil {
		p.metrics.observeRun(outcomeRejected, time.Since(start).Seconds())
		return nil, err
	}

	runID := p.ids.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	ctx, span := p.tracer.Start(ctx, "judge.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("scale", in.Scale),
			attribute.Int64("window.start_ts", in.Window.StartTs),
			attribute.Int64("window.end_ts", in.Window.EndTs),
			attribute.Bool("patched", in.Options.ConfigPatch != nil),
		),
	)
	defer span.End()
	logger := p.logger.WithContext(ctx)

	result, err := p.run(ctx, runID, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome := outcomeFailed
		var rejected *governance.PatchRejectedError
		if errors.As(err, &rejected) {
			outcome = outcomeRejected
		}
		p.metrics.observeRun(outcome, time.Since(start).Seconds())
		logger.WarnWithFields("judge run failed",
			logging.Field("outcome", outcome),
			logging.Field("error", err.Error()),
		)
		return nil, err
	}

	outcome := outcomeSilent
	if ps, ok := result.Output.ProblemState(); ok {
		outcome = outcomeDeclared
		p.metrics.observeDeclaration(result.Stage, string(ps.ProblemType))
		span.SetAttributes(attribute.String("problem_type", string(ps.ProblemType)))
	}
	p.metrics.observeRun(outcome, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Bool("silent", result.Output.Silent),
		attribute.String("determinism_hash", result.Output.DeterminismHash),
	)
	logger.InfoWithFields("judge run finished",
		logging.Field("silent", result.Output.Silent),
		logging.Field("stage", result.Stage),
		logging.Field("facts", len(result.Bundle.FactIDs)),
		logging.Field("reference_views", len(result.ProducedReferenceViews)),
		logging.Field("determinism_hash", result.Output.DeterminismHash),
	)

	if in.Options.Persist && p.recorder != nil {
		p.recorder.Record(ctx, result)
	}
	return result, nil
}

// evidenceReads holds the rows of the evaluated window and, when history
// views are enabled, of the window preceding it.
type evidenceReads struct {
	current    []evidence.Row
	history    []evidence.Row
	historyErr error
}

func (p *Pipeline) run(ctx context.Context, runID string, in RunInput) (*RunResult, error) {
	resolved, err := p.governor.Resolve(ctx, in.Options.ConfigPatch)
	if err != nil {
		return nil, err
	}
	cfg := resolved.Config
	historyEnabled := reference.HistoryEnabled(cfg)

	reads, err := p.readEvidence(ctx, in, cfg, historyEnabled)
	if err != nil {
		return nil, err
	}

	now := p.clock.NowMs()
	norm := evidence.Normalize(reads.current)
	factIDs := norm.FactIDs
	if factIDs == nil {
		factIDs = []string{}
	}
	stageIn := stages.Input{
		Config:  cfg,
		Scale:   in.Scale,
		Window:  in.Window,
		Samples: norm.Samples,
		Markers: norm.Markers,
		FactIDs: factIDs,
	}

	a := assembly{
		runID:    runID,
		now:      now,
		in:       in,
		resolved: resolved,
		factIDs:  factIDs,
		views:    []reference.View{},
	}

	finding, err := stages.Run(stages.EvidenceStages, stageIn)
	if err != nil {
		return nil, err
	}
	if finding != nil {
		a.boundViewIDs = []string{}
		return p.assemble(a, finding)
	}

	if historyEnabled {
		if reads.historyErr != nil {
			return nil, reads.historyErr
		}
		a.views = reference.BuildHistoryViews(reference.HistoryInput{
			Config:    cfg,
			Subject:   in.SubjectRef,
			Scale:     in.Scale,
			Window:    in.Window,
			Primary:   norm.Samples,
			History:   evidence.Normalize(reads.history).Samples,
			CreatedAt: now,
		})
	}
	stageIn.ReferenceViews = a.views

	finding, err = stages.Run(stages.ReferenceStages, stageIn)
	if err != nil {
		return nil, err
	}
	a.boundViewIDs = sortedIDs(reference.IDs(a.views))
	if finding != nil && finding.ReferenceViewIDs != nil {
		a.boundViewIDs = sortedIDs(finding.ReferenceViewIDs)
	}
	return p.assemble(a, finding)
}

// readEvidence issues the current read and, when history views are enabled,
// the history read concurrently. A history failure is held back: it only
// fails the run once the views are actually needed.
func (p *Pipeline) readEvidence(ctx context.Context, in RunInput, cfg governance.JudgeConfig, withHistory bool) (*evidenceReads, error) {
	ctx, span := p.tracer.Start(ctx, "judge.readEvidence",
		trace.WithAttributes(attribute.Bool("history", withHistory)))
	defer span.End()

	anchor := evidence.Anchor{
		SpatialUnitID: in.SubjectRef.SpatialUnitID,
		GroupID:       in.SubjectRef.GroupID,
		SensorIDs:     in.SubjectRef.SensorIDs,
	}
	reads := &evidenceReads{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := p.reader.QueryWindow(gctx, evidence.Query{
			StartTsMs: in.Window.StartTs,
			EndTsMs:   in.Window.EndTs,
			Anchor:    anchor,
			Metrics:   cfg.RequiredMetrics,
		})
		if err != nil {
			p.metrics.observeReadError()
			return fmt.Errorf("%w: window %d-%d: %w", ErrEvidenceRead, in.Window.StartTs, in.Window.EndTs, err)
		}
		reads.current = rows
		return nil
	})
	if withHistory {
		hw := in.Window.Preceding()
		g.Go(func() error {
			rows, err := p.reader.QueryWindow(gctx, evidence.Query{
				StartTsMs: hw.StartTs,
				EndTsMs:   hw.EndTs,
				Anchor:    anchor,
				Metrics:   cfg.RequiredMetrics,
			})
			if err != nil {
				p.metrics.observeReadError()
				reads.historyErr = fmt.Errorf("%w: history window %d-%d: %w", ErrEvidenceRead, hw.StartTs, hw.EndTs, err)
				return nil
			}
			reads.history = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("rows.current", len(reads.current)),
		attribute.Int("rows.history", len(reads.history)),
	)
	return reads, nil
}

// assembly carries what every terminal branch of a run needs to produce its
// output.
type assembly struct {
	runID        string
	now          int64
	in           RunInput
	resolved     *governance.Resolved
	factIDs      []string
	views        []reference.View
	boundViewIDs []string
}

func (p *Pipeline) assemble(a assembly, finding *stages.Finding) (*RunResult, error) {
	in := a.in
	profile := in.Options.Profile()

	bundle := Bundle{
		SubjectRef:          in.SubjectRef,
		Scale:               in.Scale,
		Window:              in.Window,
		PipelineVersion:     PipelineVersion,
		ConfigProfile:       profile,
		SSOTHash:            a.resolved.SSOT.Hash,
		EffectiveConfigHash: a.resolved.EffectiveHash,
		FactIDs:             a.factIDs,
		ReferenceViewIDs:    a.boundViewIDs,
	}
	hash, err := canon.Hash(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to hash run bundle: %w", err)
	}

	out := &RunOutput{
		RunID:               a.runID,
		DeterminismHash:     hash,
		EffectiveConfigHash: a.resolved.EffectiveHash,
		ProblemStates:       []problem.ProblemState{},
		AoSense:             []aosense.Sense{},
		Silent:              finding == nil,
		RunMeta:             RunMeta{PipelineVersion: PipelineVersion, ConfigProfile: profile},
		InputFactIDs:        a.factIDs,
	}
	result := &RunResult{
		RunID:                  a.runID,
		CreatedAtTs:            a.now,
		Bundle:                 bundle,
		Output:                 out,
		ProducedReferenceViews: a.views,
		ProducedLBCandidates:   []LBCandidate{},
	}

	if finding != nil {
		ps, err := finding.Builder(in.SubjectRef, in.Scale, in.Window).Build(p.ids.NewID("ps"), a.now)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", finding.Stage, err)
		}
		senses, err := aosense.Derive(a.runID, ps, a.now)
		if err != nil {
			return nil, fmt.Errorf("failed to derive observation request: %w", err)
		}
		out.ProblemStates = []problem.ProblemState{ps}
		out.AoSense = senses
		result.Stage = finding.Stage
		if in.Options.IncludeLBCandidates {
			result.ProducedLBCandidates = DeriveLBCandidates(a.runID, ps, p.ids.NewID("lb"), a.now)
		}
	}

	if in.Options.IncludeReferenceViews {
		views := a.views
		out.ReferenceViews = &views
	}
	if in.Options.IncludeLBCandidates {
		lbs := result.ProducedLBCandidates
		out.LBCandidates = &lbs
	}
	return result, nil
}

func sortedIDs(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}
