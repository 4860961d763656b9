package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/logging"
	"github.com/geox/judge/internal/problemindex"
	"github.com/geox/judge/internal/runcache"
)

// maxBodyBytes bounds request bodies of the judge endpoints
const maxBodyBytes = 1 << 20

// JudgeHandler serves the run, config and listing endpoints
type JudgeHandler struct {
	pipeline       *judge.Pipeline
	governor       *governance.Governor
	runs           *runcache.Cache
	logger         *logging.Logger
	tracer         trace.Tracer
	indexConstants problemindex.Constants
	now            func() time.Time
}

// HandlerOption configures a JudgeHandler.
type HandlerOption func(*JudgeHandler)

// WithIndexConstants sets the lifecycle constants of the problem state index.
func WithIndexConstants(c problemindex.Constants) HandlerOption {
	return func(h *JudgeHandler) {
		h.indexConstants = c
	}
}

// NewJudgeHandler creates a judge handler. runs may be nil, in which case
// the list endpoints return empty lists. Each list is keyed by its name.
func NewJudgeHandler(pipeline *judge.Pipeline, governor *governance.Governor, runs *runcache.Cache, logger *logging.Logger, tracer trace.Tracer, opts ...HandlerOption) *JudgeHandler {
	h := &JudgeHandler{
		pipeline:       pipeline,
		governor:       governor,
		runs:           runs,
		logger:         logger,
		tracer:         tracer,
		indexConstants: problemindex.DefaultConstants(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleRun handles POST /api/judge/run
func (h *JudgeHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "judge.HandleRun",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/judge/run"),
		),
	)
	defer span.End()

	body, err := decodeBody(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request")
		WriteAPIError(w, NewInvalidRequestError("%s", err.Error()))
		return
	}
	in, err := ParseRunRequest(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request")
		h.logger.Debug("Invalid run request: %v", err)
		WriteAPIError(w, NewInvalidRequestError("%s", err.Error()))
		return
	}

	result, err := h.pipeline.Run(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Run failed")
		var rejected *governance.PatchRejectedError
		if errors.As(err, &rejected) {
			writePatchRejection(w, rejected)
			return
		}
		apiErr := FromRunError(err)
		if apiErr.StatusCode >= http.StatusInternalServerError {
			h.logger.Error("Judge run failed: %v", err)
		}
		WriteAPIError(w, apiErr)
		return
	}

	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Bool("silent", result.Output.Silent),
	)
	span.SetStatus(codes.Ok, "Run completed")
	writeOK(w, result.Output)
}

// HandleConfig handles GET /api/judge/config
func (h *JudgeHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "judge.HandleConfig",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", "/api/judge/config")),
	)
	defer span.End()

	manifest, err := h.governor.Manifest(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Manifest failed")
		h.logger.Error("Failed to build judge config manifest: %v", err)
		WriteAPIError(w, FromRunError(err))
		return
	}
	span.SetAttributes(attribute.String("ssot_hash", manifest.SSOT.SSOTHash))
	writeOK(w, manifest)
}

// HandleConfigPatch handles POST /api/judge/config/patch
func (h *JudgeHandler) HandleConfigPatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "judge.HandleConfigPatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", "/api/judge/config/patch")),
	)
	defer span.End()

	body, err := decodeBody(r)
	if err != nil {
		span.RecordError(err)
		writePatchRejection(w, &governance.PatchRejectedError{
			Status: http.StatusBadRequest,
			Errors: []governance.PatchError{{
				Code:    governance.CodeInvalidPatchSchema,
				Path:    "",
				Message: err.Error(),
			}},
		})
		return
	}

	result, err := h.governor.SubmitPatch(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Patch refused")
		var rejected *governance.PatchRejectedError
		if errors.As(err, &rejected) {
			writePatchRejection(w, rejected)
			return
		}
		h.logger.Error("Judge config patch failed: %v", err)
		WriteAPIError(w, FromRunError(err))
		return
	}
	span.SetAttributes(
		attribute.String("effective_hash", result.EffectiveHash),
		attribute.Bool("committed", result.Committed),
	)
	writeOK(w, result)
}

// HandleProblemStates handles GET /api/judge/problem_states
func (h *JudgeHandler) HandleProblemStates(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r.URL.Query())
	if h.runs == nil {
		writeOK(w, map[string]any{"problem_states": []any{}})
		return
	}
	writeOK(w, map[string]any{"problem_states": h.runs.ProblemStates(limit)})
}

// HandleProblemStateIndex handles GET /api/judge/problem_states/index
func (h *JudgeHandler) HandleProblemStateIndex(w http.ResponseWriter, r *http.Request) {
	q, err := ParseIndexQuery(r.URL.Query(), h.now())
	if err != nil {
		WriteAPIError(w, NewInvalidRequestError("%s", err.Error()))
		return
	}
	rows := []problemindex.Row{}
	if h.runs != nil {
		rows, err = h.runs.ProblemStateIndex(q.AsOfTs, h.indexConstants, q.FrozenIDs)
		if err != nil {
			h.logger.Error("Failed to compute problem state index: %v", err)
			WriteAPIError(w, NewInternalServerError("failed to compute problem state index"))
			return
		}
	}
	writeOK(w, map[string]any{
		"as_of_ts":            q.AsOfTs,
		"constants":           h.indexConstants,
		"problem_state_index": rows,
	})
}

// HandleReferenceViews handles GET /api/judge/reference_views
func (h *JudgeHandler) HandleReferenceViews(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r.URL.Query())
	if h.runs == nil {
		writeOK(w, map[string]any{"reference_views": []any{}})
		return
	}
	writeOK(w, map[string]any{"reference_views": h.runs.ReferenceViews(limit)})
}

// HandleAoSense handles GET /api/judge/ao_sense
func (h *JudgeHandler) HandleAoSense(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r.URL.Query())
	if h.runs == nil {
		writeOK(w, map[string]any{"ao_sense": []any{}})
		return
	}
	writeOK(w, map[string]any{"ao_sense": h.runs.AoSense(limit)})
}

// decodeBody reads a JSON body into plain values. An empty body decodes to
// nil.
func decodeBody(r *http.Request) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("request body is not valid JSON: %w", err)
	}
	return body, nil
}
