package governance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSSOTJSON = `{
  "schema_version": "1.0.0",
  "name": "test",
  "required_metrics": ["soil_moisture_vwc", "soil_temp_c"],
  "evidence": {},
  "sufficiency": {"min_total_samples": 30, "min_samples_per_required_metric": 10},
  "time_coverage": {"max_allowed_gap_ms": 900000, "min_coverage_ratio": 0.8, "expected_interval_ms": 60000},
  "qc": {"bad_pct_threshold": 0.2, "suspect_pct_threshold": 0.3},
  "reference": {"enable": true, "kinds_enabled": ["WITHIN_UNIT_HISTORY", "NEIGHBOR_SAME_SCALE"]},
  "conflict": {"min_overlap_ratio": 0.5, "delta_numeric_threshold": 5, "min_points_in_overlap": 5},
  "marker": {"exclusion_kinds": ["MAINTENANCE"]},
  "determinism": {"tie_breaker": "fact_id_asc"},
  "extra": {"kept": true}
}`

func testSSOT(t *testing.T) *SSOT {
	t.Helper()
	ssot, err := ParseSSOT([]byte(testSSOTJSON), "test.json")
	require.NoError(t, err)
	return ssot
}

func writeSSOTFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "default.json")
	require.NoError(t, os.WriteFile(path, []byte(testSSOTJSON), 0o600))
	return path
}

func replacePatch(hash string, ops ...map[string]any) map[string]any {
	list := make([]any, 0, len(ops))
	for _, op := range ops {
		list = append(list, op)
	}
	return map[string]any{
		"patch_version": "1.0.0",
		"base":          map[string]any{"ssot_hash": hash},
		"ops":           list,
	}
}

func op(path string, value any) map[string]any {
	return map[string]any{"op": "replace", "path": path, "value": value}
}
