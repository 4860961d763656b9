package api

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/runcache"
)

// ParseRunRequest validates a decoded run request body and builds the
// pipeline input. Options that are absent or of the wrong type fall back to
// their defaults; subjectRef, scale and window are strict.
func ParseRunRequest(body any) (judge.RunInput, error) {
	var in judge.RunInput
	obj, ok := body.(map[string]any)
	if !ok {
		if body != nil {
			return in, NewValidationError("request body must be an object")
		}
		obj = map[string]any{}
	}

	scale, ok := obj["scale"].(string)
	if !ok || scale == "" {
		return in, NewValidationError("scale must be a non-empty string")
	}
	in.Scale = scale

	window, _ := obj["window"].(map[string]any)
	start, err := requireInt(window["startTs"], "window.startTs")
	if err != nil {
		return in, err
	}
	end, err := requireInt(window["endTs"], "window.endTs")
	if err != nil {
		return in, err
	}
	in.Window = problem.Window{StartTs: start, EndTs: end}

	if raw, present := obj["subjectRef"]; present && raw != nil {
		subject, err := decodeSubject(raw)
		if err != nil {
			return in, err
		}
		in.SubjectRef = subject
	}

	options, _ := obj["options"].(map[string]any)
	in.Options = judge.RunOptions{
		Persist:               boolOption(options, "persist"),
		IncludeReferenceViews: boolOption(options, "include_reference_views"),
		IncludeLBCandidates:   boolOption(options, "include_lb_candidates"),
		ConfigProfile:         judge.DefaultProfile,
		ConfigPatch:           options["config_patch"],
	}
	if profile, ok := options["config_profile"].(string); ok {
		in.Options.ConfigProfile = profile
	}
	return in, nil
}

// requireInt accepts a JSON number or a numeric string holding an integer.
func requireInt(v any, field string) (int64, error) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, NewValidationError("%s must be an integer", field)
		}
		n = f
	default:
		return 0, NewValidationError("%s must be an integer", field)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return 0, NewValidationError("%s must be an integer", field)
	}
	if math.Abs(n) > 1<<53 {
		return 0, NewValidationError("%s is out of range", field)
	}
	return int64(n), nil
}

func boolOption(options map[string]any, key string) bool {
	b, ok := options[key].(bool)
	return ok && b
}

func decodeSubject(raw any) (problem.SubjectRef, error) {
	var subject problem.SubjectRef
	if _, ok := raw.(map[string]any); !ok {
		return subject, NewValidationError("subjectRef must be an object")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return subject, NewValidationError("subjectRef: %v", err)
	}
	if err := json.Unmarshal(b, &subject); err != nil {
		return subject, NewValidationError("subjectRef: %v", err)
	}
	return subject, nil
}

// ParseLimit reads the limit query parameter. Missing or malformed values
// get runcache.DefaultLimit; the rest is clamped to 1..runcache.MaxLimit.
func ParseLimit(query url.Values) int {
	raw := query.Get("limit")
	if raw == "" {
		return runcache.DefaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return runcache.DefaultLimit
	}
	return max(1, min(n, runcache.MaxLimit))
}

// IndexQuery is the parsed query of the problem state index endpoint.
type IndexQuery struct {
	AsOfTs    int64
	FrozenIDs []string
}

// ParseIndexQuery reads as_of_ts, which defaults to now and accepts the same
// forms as run window bounds, and frozen_ids, given comma separated or
// repeated.
func ParseIndexQuery(query url.Values, now time.Time) (IndexQuery, error) {
	q := IndexQuery{AsOfTs: now.UnixMilli(), FrozenIDs: []string{}}
	if raw := query.Get("as_of_ts"); raw != "" {
		ts, err := ParseTimestampMs(raw, "as_of_ts", now)
		if err != nil {
			return q, err
		}
		q.AsOfTs = ts
	}
	for _, v := range query["frozen_ids"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.FrozenIDs = append(q.FrozenIDs, id)
			}
		}
	}
	return q, nil
}
