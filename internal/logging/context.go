package logging

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// ContextWithRunID tags ctx with the judge run id.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithTrace tags ctx with trace and span ids. Empty values are skipped.
func ContextWithTrace(ctx context.Context, traceID, spanID string) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// RunIDFromContext returns the run id stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	var fields map[string]interface{}
	for _, key := range []contextKey{runIDKey, traceIDKey, spanIDKey} {
		v := ctx.Value(key)
		if v == nil {
			continue
		}
		if fields == nil {
			fields = make(map[string]interface{}, 3)
		}
		fields[string(key)] = v
	}
	return fields
}
