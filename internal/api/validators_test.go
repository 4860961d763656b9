package api

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/runcache"
)

func TestParseTimestampMs(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name      string
		input     string
		wantError bool
		want      int64
		validate  func(*testing.T, int64)
	}{
		{name: "empty string", input: "", wantError: true},
		{name: "epoch millis", input: "1609459200000", want: 1609459200000},
		{name: "zero", input: "0", want: 0},
		{name: "negative", input: "-1", wantError: true},
		{name: "now", input: "now", want: 1_700_000_000_000},
		{name: "now minus hours", input: "now-2h", want: 1_700_000_000_000 - 2*3_600_000},
		{name: "now minus days", input: "now-1d", want: 1_700_000_000_000 - 86_400_000},
		{name: "now minus mixed", input: "NOW - 1d12h", want: 1_700_000_000_000 - 36*3_600_000},
		{name: "bad duration", input: "now-soon", wantError: true},
		{name: "yesterday", input: "yesterday", validate: func(t *testing.T, ts int64) {
			assert.Less(t, ts, now.UnixMilli())
			assert.Greater(t, ts, now.Add(-72*time.Hour).UnixMilli())
		}},
		{name: "invalid format", input: "not-a-date-or-number", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestampMs(tt.input, "start", now)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRunRequest(t *testing.T) {
	body := map[string]any{
		"subjectRef": map[string]any{"projectId": "p1", "sensorIds": []any{"s1", "s2"}},
		"scale":      "sensor",
		"window":     map[string]any{"startTs": float64(0), "endTs": float64(60_000)},
		"options": map[string]any{
			"persist":                 true,
			"include_reference_views": "yes",
			"config_profile":          "field_trial",
			"config_patch":            map[string]any{"patch_version": "1.0.0"},
		},
	}

	in, err := ParseRunRequest(body)
	require.NoError(t, err)

	assert.Equal(t, problem.SubjectRef{ProjectID: "p1", SensorIDs: []string{"s1", "s2"}}, in.SubjectRef)
	assert.Equal(t, "sensor", in.Scale)
	assert.Equal(t, problem.Window{StartTs: 0, EndTs: 60_000}, in.Window)
	assert.True(t, in.Options.Persist)
	assert.False(t, in.Options.IncludeReferenceViews)
	assert.False(t, in.Options.IncludeLBCandidates)
	assert.Equal(t, "field_trial", in.Options.ConfigProfile)
	assert.Equal(t, map[string]any{"patch_version": "1.0.0"}, in.Options.ConfigPatch)
}

func TestParseRunRequestDefaults(t *testing.T) {
	in, err := ParseRunRequest(map[string]any{
		"scale":  "group",
		"window": map[string]any{"startTs": float64(5), "endTs": float64(5)},
	})
	require.NoError(t, err)

	assert.True(t, in.SubjectRef.IsEmpty())
	assert.Equal(t, judge.RunOptions{ConfigProfile: judge.DefaultProfile}, in.Options)
}

func TestParseRunRequestNumericStringWindow(t *testing.T) {
	in, err := ParseRunRequest(map[string]any{
		"scale":  "group",
		"window": map[string]any{"startTs": "1700000000000", "endTs": " 1700000600000 "},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), in.Window.StartTs)
	assert.Equal(t, int64(1_700_000_600_000), in.Window.EndTs)
}

func TestParseRunRequestErrors(t *testing.T) {
	window := map[string]any{"startTs": float64(0), "endTs": float64(1)}
	tests := []struct {
		name string
		body any
	}{
		{name: "not an object", body: "run"},
		{name: "empty scale", body: map[string]any{"scale": "", "window": window}},
		{name: "numeric scale", body: map[string]any{"scale": 3.0, "window": window}},
		{name: "missing window", body: map[string]any{"scale": "group"}},
		{name: "fractional start", body: map[string]any{"scale": "group", "window": map[string]any{"startTs": 0.5, "endTs": float64(1)}}},
		{name: "huge end", body: map[string]any{"scale": "group", "window": map[string]any{"startTs": float64(0), "endTs": 1e300}}},
		{name: "word start", body: map[string]any{"scale": "group", "window": map[string]any{"startTs": "soon", "endTs": float64(1)}}},
		{name: "empty string end", body: map[string]any{"scale": "group", "window": map[string]any{"startTs": float64(0), "endTs": ""}}},
		{name: "fractional string end", body: map[string]any{"scale": "group", "window": map[string]any{"startTs": float64(0), "endTs": "1.5"}}},
		{name: "bool start", body: map[string]any{"scale": "group", "window": map[string]any{"startTs": true, "endTs": float64(1)}}},
		{name: "subject not object", body: map[string]any{"scale": "group", "window": window, "subjectRef": "g1"}},
		{name: "subject wrong field type", body: map[string]any{"scale": "group", "window": window, "subjectRef": map[string]any{"sensorIds": "s1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRunRequest(tt.body)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "", want: runcache.DefaultLimit},
		{raw: "abc", want: runcache.DefaultLimit},
		{raw: "0", want: 1},
		{raw: "-4", want: 1},
		{raw: "25", want: 25},
		{raw: "9000", want: runcache.MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q := url.Values{}
			if tt.raw != "" {
				q.Set("limit", tt.raw)
			}
			assert.Equal(t, tt.want, ParseLimit(q))
		})
	}
}

func TestParseIndexQuery(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name    string
		query   url.Values
		want    IndexQuery
		wantErr bool
	}{
		{
			name:  "defaults to now",
			query: url.Values{},
			want:  IndexQuery{AsOfTs: 1_700_000_000_000, FrozenIDs: []string{}},
		},
		{
			name:  "epoch millis",
			query: url.Values{"as_of_ts": {"42"}},
			want:  IndexQuery{AsOfTs: 42, FrozenIDs: []string{}},
		},
		{
			name:  "relative",
			query: url.Values{"as_of_ts": {"now-1h"}},
			want:  IndexQuery{AsOfTs: 1_700_000_000_000 - 3_600_000, FrozenIDs: []string{}},
		},
		{
			name:  "frozen ids split and repeated",
			query: url.Values{"frozen_ids": {"ps_a, ps_b,", "ps_c"}},
			want:  IndexQuery{AsOfTs: 1_700_000_000_000, FrozenIDs: []string{"ps_a", "ps_b", "ps_c"}},
		},
		{
			name:    "negative as_of_ts",
			query:   url.Values{"as_of_ts": {"-1"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndexQuery(tt.query, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
