package governance

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSOT(t *testing.T) {
	ssot := testSSOT(t)

	assert.True(t, strings.HasPrefix(ssot.Hash, "sha256:"))
	assert.Equal(t, []string{"soil_moisture_vwc", "soil_temp_c"}, ssot.Config.RequiredMetrics)
	assert.Equal(t, int64(60000), ssot.Config.TimeCoverage.IntervalMs())
	assert.True(t, ssot.Config.Reference.KindEnabled("WITHIN_UNIT_HISTORY"))
	assert.True(t, ssot.Config.Marker.IsExclusion("MAINTENANCE"))
}

func TestSSOTHashIgnoresKeyOrderAndWhitespace(t *testing.T) {
	a, err := ParseSSOT([]byte(testSSOTJSON), "a")
	require.NoError(t, err)

	reordered := `{"determinism":{"tie_breaker":"fact_id_asc"},"extra":{"kept":true},"marker":{"exclusion_kinds":["MAINTENANCE"]},
	"conflict":{"min_points_in_overlap":5,"delta_numeric_threshold":5,"min_overlap_ratio":0.5},
	"reference":{"kinds_enabled":["WITHIN_UNIT_HISTORY","NEIGHBOR_SAME_SCALE"],"enable":true},
	"qc":{"suspect_pct_threshold":0.3,"bad_pct_threshold":0.2},
	"time_coverage":{"expected_interval_ms":60000,"min_coverage_ratio":0.8,"max_allowed_gap_ms":900000},
	"sufficiency":{"min_samples_per_required_metric":10,"min_total_samples":30},
	"evidence":{},"required_metrics":["soil_moisture_vwc","soil_temp_c"],"name":"test","schema_version":"1.0.0"}`
	b, err := ParseSSOT([]byte(reordered), "b")
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
}

func TestValidateEffectiveConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc map[string]any)
		wantErr string
	}{
		{name: "valid", mutate: func(map[string]any) {}},
		{name: "missing schema_version", mutate: func(d map[string]any) { delete(d, "schema_version") }, wantErr: "schema_version must be string"},
		{name: "schema major 2", mutate: func(d map[string]any) { d["schema_version"] = "2.0.0" }, wantErr: "unsupported major 2"},
		{name: "schema not a version", mutate: func(d map[string]any) { d["schema_version"] = "v-one" }, wantErr: "is not a version"},
		{name: "name not string", mutate: func(d map[string]any) { d["name"] = 3.0 }, wantErr: "name must be string"},
		{name: "required_metrics not list", mutate: func(d map[string]any) { d["required_metrics"] = "x" }, wantErr: "required_metrics must be string[]"},
		{name: "required_metrics mixed", mutate: func(d map[string]any) { d["required_metrics"] = []any{"a", 1.0} }, wantErr: "required_metrics must be string[]"},
		{name: "evidence missing", mutate: func(d map[string]any) { delete(d, "evidence") }, wantErr: "evidence must be object"},
		{name: "exclusion kinds missing", mutate: func(d map[string]any) { d["marker"] = map[string]any{} }, wantErr: "marker.exclusion_kinds must be string[]"},
		{name: "tie breaker missing", mutate: func(d map[string]any) { d["determinism"] = map[string]any{} }, wantErr: "determinism.tie_breaker must be string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := cloneDoc(testSSOT(t).Doc)
			tt.mutate(doc)
			err := ValidateEffectiveConfig(doc)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseSSOTRejectsNonObject(t *testing.T) {
	_, err := ParseSSOT([]byte(`[1,2]`), "x")
	require.ErrorIs(t, err, ErrConfigInvalid)

	_, err = ParseSSOT([]byte(`{`), "x")
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadSSOTMissingFile(t *testing.T) {
	_, err := LoadSSOT("/nonexistent/default.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read judge SSOT")
}
