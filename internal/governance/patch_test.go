package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []PatchError) []PatchErrorCode {
	out := make([]PatchErrorCode, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidatePatch(t *testing.T) {
	ssot := testSSOT(t)
	m := BuildManifest(ssot, time.Now())

	tests := []struct {
		name      string
		patch     any
		wantCodes []PatchErrorCode
		wantPaths []string
	}{
		{
			name:  "valid",
			patch: replacePatch(ssot.Hash, op("qc.bad_pct_threshold", 0.3), op("reference.enable", false)),
		},
		{
			name:      "not an object",
			patch:     "nope",
			wantCodes: []PatchErrorCode{CodeInvalidPatchSchema},
			wantPaths: []string{"patch"},
		},
		{
			name:      "path not allowed",
			patch:     replacePatch(ssot.Hash, op("required_metrics", []any{"x"})),
			wantCodes: []PatchErrorCode{CodePathNotAllowed},
			wantPaths: []string{"patch.ops[0].path"},
		},
		{
			name:      "int type mismatch",
			patch:     replacePatch(ssot.Hash, op("sufficiency.min_total_samples", 1.5)),
			wantCodes: []PatchErrorCode{CodeValueTypeMismatch},
			wantPaths: []string{"patch.ops[0].value"},
		},
		{
			name:      "number out of range",
			patch:     replacePatch(ssot.Hash, op("qc.bad_pct_threshold", 1.5)),
			wantCodes: []PatchErrorCode{CodeValueOutOfRange},
			wantPaths: []string{"patch.ops[0].value"},
		},
		{
			name:      "bool mismatch",
			patch:     replacePatch(ssot.Hash, op("reference.enable", "yes")),
			wantCodes: []PatchErrorCode{CodeValueTypeMismatch},
		},
		{
			name:      "enum not subset",
			patch:     replacePatch(ssot.Hash, op("reference.kinds_enabled", []any{"WITHIN_UNIT_HISTORY", "EXTERNAL_CONTEXT"})),
			wantCodes: []PatchErrorCode{CodeEnumNotSubset},
		},
		{
			name:      "enum list wrong element type",
			patch:     replacePatch(ssot.Hash, op("reference.kinds_enabled", []any{1.0})),
			wantCodes: []PatchErrorCode{CodeValueTypeMismatch},
		},
		{
			name: "accumulates across ops and envelope",
			patch: map[string]any{
				"patch_version": "2.0.0",
				"base":          map[string]any{"ssot_hash": ssot.Hash, "x": 1.0},
				"ops": []any{
					map[string]any{"op": "add", "path": "qc.bad_pct_threshold", "value": 0.1, "from": "y"},
					op("nope", 1.0),
					op("conflict.min_points_in_overlap", 0.0),
				},
				"extra": true,
			},
			wantCodes: []PatchErrorCode{
				CodeUnknownKeys, CodeInvalidPatchSchema, CodeUnknownKeys,
				CodeUnknownKeys, CodeInvalidPatchSchema,
				CodePathNotAllowed,
				CodeValueOutOfRange,
			},
			wantPaths: []string{
				"patch", "patch.patch_version", "patch.base",
				"patch.ops[0]", "patch.ops[0].op",
				"patch.ops[1].path",
				"patch.ops[2].value",
			},
		},
		{
			name: "ops not array stops",
			patch: map[string]any{
				"patch_version": "1.0.0",
				"base":          map[string]any{"ssot_hash": ssot.Hash},
				"ops":           "x",
			},
			wantCodes: []PatchErrorCode{CodeInvalidPatchSchema},
			wantPaths: []string{"patch.ops"},
		},
		{
			name:      "empty path",
			patch:     replacePatch(ssot.Hash, op("  ", 1.0)),
			wantCodes: []PatchErrorCode{CodeInvalidPatchSchema},
			wantPaths: []string{"patch.ops[0].path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidatePatch(tt.patch, m)
			if len(tt.wantCodes) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantCodes, codes(errs))
			if tt.wantPaths != nil {
				paths := make([]string, 0, len(errs))
				for _, e := range errs {
					paths = append(paths, e.Path)
				}
				assert.Equal(t, tt.wantPaths, paths)
			}
		})
	}
}

func TestValidatePatchRangeMeta(t *testing.T) {
	ssot := testSSOT(t)
	m := BuildManifest(ssot, time.Now())

	errs := ValidatePatch(replacePatch(ssot.Hash, op("sufficiency.min_total_samples", 0.0)), m)
	require.Len(t, errs, 1)
	assert.Equal(t, "value below min", errs[0].Message)
	assert.Equal(t, map[string]any{"min": 1.0, "max": 1000.0}, errs[0].Meta)
}

func TestValidatePatchIsRepeatable(t *testing.T) {
	ssot := testSSOT(t)
	m := BuildManifest(ssot, time.Now())
	patch := map[string]any{
		"patch_version": "1.0.0",
		"base":          map[string]any{"ssot_hash": ssot.Hash},
		"ops":           []any{op("a", 1.0), op("qc.bad_pct_threshold", -1.0)},
		"z":             1, "y": 2,
	}

	assert.Equal(t, ValidatePatch(patch, m), ValidatePatch(patch, m))
}

func TestValidateEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantCodes []PatchErrorCode
	}{
		{name: "valid", body: map[string]any{"base": map[string]any{"ssot_hash": "h"}, "patch": map[string]any{}, "dryRun": true}},
		{name: "not object", body: []any{}, wantCodes: []PatchErrorCode{CodeInvalidPatchSchema}},
		{
			name:      "all wrong",
			body:      map[string]any{"base": map[string]any{"other": 1}, "dryRun": "yes", "x": 1},
			wantCodes: []PatchErrorCode{CodeUnknownKeys, CodeUnknownKeys, CodeInvalidPatchSchema, CodeInvalidPatchSchema, CodeInvalidPatchSchema},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateEnvelope(tt.body)
			if tt.wantCodes == nil {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantCodes, codes(errs))
		})
	}
}

func TestApplyPatchIsPure(t *testing.T) {
	ssot := testSSOT(t)
	before := cloneDoc(ssot.Doc)
	beforeHash := ssot.Hash

	p, err := DecodePatch(replacePatch(ssot.Hash,
		op("qc.bad_pct_threshold", 0.5),
		op("reference.kinds_enabled", []any{"WITHIN_UNIT_HISTORY"}),
	))
	require.NoError(t, err)

	out, err := ApplyPatch(ssot.Doc, p)
	require.NoError(t, err)

	assert.Equal(t, before, ssot.Doc)
	h, err := Hash(ssot.Doc)
	require.NoError(t, err)
	assert.Equal(t, beforeHash, h)

	assert.Equal(t, 0.5, out["qc"].(map[string]any)["bad_pct_threshold"])
	assert.Equal(t, []any{"WITHIN_UNIT_HISTORY"}, out["reference"].(map[string]any)["kinds_enabled"])
	assert.Equal(t, map[string]any{"kept": true}, out["extra"])
}

func TestApplyPatchCreatesIntermediateObjects(t *testing.T) {
	doc := map[string]any{"a": "scalar"}
	out, err := ApplyPatch(doc, &Patch{Ops: []PatchOp{{Op: "replace", Path: "a.b.c", Value: 1}}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}}, out)
	assert.Equal(t, "scalar", doc["a"])
}

func TestChangedPathsSorted(t *testing.T) {
	p := &Patch{Ops: []PatchOp{{Path: "qc.bad_pct_threshold"}, {Path: " conflict.min_overlap_ratio "}}}
	assert.Equal(t, []string{"conflict.min_overlap_ratio", "qc.bad_pct_threshold"}, p.ChangedPaths())
}
