package stages

import (
	"testing"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAll(t *testing.T, in Input) *Finding {
	t.Helper()
	f, err := Run(EvidenceStages, in)
	require.NoError(t, err)
	if f != nil {
		return f
	}
	f, err = Run(ReferenceStages, in)
	require.NoError(t, err)
	return f
}

func TestCleanEvidenceIsSilent(t *testing.T) {
	assert.Nil(t, runAll(t, input(cleanSamples())))
}

func TestStagePriority(t *testing.T) {
	in := input(sampleRun("s1", "soil_temp_c", evidence.QualityBad, 1, 0, 1, 2))
	in.Config.Sufficiency.MinTotalSamples = 100

	f := runAll(t, in)
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeInsufficientEvidence, f.ProblemType)
	assert.Equal(t, NameSufficiency, f.Stage)
}

func TestInsufficientEvidence(t *testing.T) {
	samples := append(
		sampleRun("s1", "soil_moisture_vwc", evidence.QualityOK, 0.3, minutes(0, 4)...),
		sampleRun("s1", "soil_temp_c", evidence.QualityOK, 18, minutes(0, 4)...)...,
	)
	in := input(samples)
	in.Config.Sufficiency.MinTotalSamples = 100

	f := runAll(t, in)
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeInsufficientEvidence, f.ProblemType)
	assert.Equal(t, problem.ConfidenceLow, f.Confidence)
	assert.Equal(t, []problem.UncertaintySource{problem.UncertaintySampleCount}, f.Uncertainty)
	// Only the total fails, so every required metric is involved.
	assert.Equal(t, []string{"soil_moisture_vwc", "soil_temp_c"}, f.Metrics)
	require.Len(t, f.Refs, 2)
	assert.Equal(t, problem.RefQCSummary, f.Refs[0].Kind)
	assert.Equal(t, problem.RefLedgerSlice, f.Refs[1].Kind)
	assert.Contains(t, f.Summary, "10 samples")
}

func TestCheckSufficiencyUsesFamilies(t *testing.T) {
	samples := append(sampleRun("s1", "soil_temp_c_30cm", evidence.QualityOK, 1, 0, 1, 2), sampleRun("s1", "air_temp_c", evidence.QualityOK, 1, 0)...)
	res := CheckSufficiency(testConfig(), samples)

	assert.False(t, res.OK)
	assert.Equal(t, 4, res.TotalSamples)
	assert.Equal(t, 3, res.MetricCounts["soil_temp_c"])
	assert.Equal(t, []string{"soil_moisture_vwc"}, res.MissingMetrics)
}

func TestQCContamination(t *testing.T) {
	// 25% bad across 24 samples.
	samples := cleanSamples()
	samples = append(samples, sampleRun("s2", "soil_temp_c", evidence.QualityOK, 18, 0, 1)...)
	for i := 0; i < 6; i++ {
		samples[i].Quality = evidence.QualityBad
	}

	f := runAll(t, input(samples))
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeQCContamination, f.ProblemType)
	assert.Equal(t, problem.ConfidenceHigh, f.Confidence)
	assert.Equal(t, []problem.UncertaintySource{problem.UncertaintyQCBadRatio}, f.Uncertainty)
	assert.Equal(t, []string{"soil_moisture_vwc_20cm"}, f.Metrics)
	assert.Equal(t, []string{"s1"}, f.Sensors)
}

func TestQCSuspect(t *testing.T) {
	samples := cleanSamples()
	for i := range samples {
		if i%2 == 0 {
			samples[i].Quality = evidence.QualitySuspect
		}
	}
	res := EvaluateQC(testConfig(), samples)
	assert.False(t, res.OK)
	assert.Equal(t, problem.TypeSensorHealthDegraded, res.Flag)

	assert.True(t, EvaluateQC(testConfig(), nil).OK)
}

func TestQCSummaryRefIsContentAddressed(t *testing.T) {
	a, err := QCSummaryRef(EvaluateQC(testConfig(), cleanSamples()), testWindow)
	require.NoError(t, err)
	b, err := QCSummaryRef(EvaluateQC(testConfig(), cleanSamples()), testWindow)
	require.NoError(t, err)
	assert.Equal(t, a.RefID, b.RefID)
	assert.Len(t, a.RefID, len("qc_")+24)

	ledger, err := LedgerSliceRef(nil, testWindow)
	require.NoError(t, err)
	assert.Nil(t, ledger)
}

func TestReferenceConflictWins(t *testing.T) {
	in := input(cleanSamples())
	diverging := reference.View{ReferenceViewID: "rv_b", Scale: "group", Metric: "soil_temp_c"}
	diverging.ComparisonSummary.ConflictHint.Label = reference.ConflictClear
	aligned := reference.View{ReferenceViewID: "rv_a", Scale: "group", Metric: "soil_moisture_vwc"}
	aligned.ComparisonSummary.ConflictHint.Label = reference.ConflictNone
	in.ReferenceViews = []reference.View{aligned, diverging}
	// Also a cross-sensor conflict, which must lose.
	in.Samples = append(in.Samples, sampleRun("s2", "soil_temp_c_10cm", evidence.QualityOK, 40, minutes(0, 10)...)...)

	f := runAll(t, in)
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeReferenceConflict, f.ProblemType)
	assert.Equal(t, problem.ScopeReferenceView, f.Scope)
	assert.Equal(t, []string{"soil_temp_c"}, f.Metrics)
	assert.Equal(t, []string{"rv_b"}, f.ReferenceViewIDs)
	require.Len(t, f.Refs, 1)
	assert.Equal(t, problem.RefReferenceView, f.Refs[0].Kind)
}

func TestScalePolicy(t *testing.T) {
	in := input(cleanSamples())
	v := reference.View{ReferenceViewID: "rv_a", Scale: "field", Metric: "soil_temp_c"}
	v.ComparisonSummary.ConflictHint.Label = reference.ConflictNone
	in.ReferenceViews = []reference.View{v}

	f := runAll(t, in)
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeScalePolicyBlocked, f.ProblemType)
	assert.Equal(t, problem.ScopeUnknown, f.Scope)
	assert.Equal(t, "reference view", f.Refs[0].Note)
	assert.Nil(t, f.ReferenceViewIDs)
}

func TestMarkers(t *testing.T) {
	note := evidence.Marker{FactID: "m1", Ts: 2 * minute, Kind: "IRRIGATION", SensorID: "s1"}
	f := runAll(t, input(cleanSamples(), note))
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeMarkerPresent, f.ProblemType)
	assert.False(t, f.Degraded)
	assert.Equal(t, problem.ConfidenceMedium, f.Confidence)

	maint := evidence.Marker{FactID: "m2", Ts: 10 * minute, Kind: "MAINTENANCE", SensorID: "s1"}
	f = runAll(t, input(cleanSamples(), note, maint))
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeExclusionWindowActive, f.ProblemType)
	assert.True(t, f.Degraded)
	assert.Equal(t, []problem.UncertaintySource{problem.UncertaintyExclusionWindow}, f.Uncertainty)

	outside := evidence.Marker{FactID: "m3", Ts: 20 * minute, Kind: "MAINTENANCE", SensorID: "s1"}
	assert.Nil(t, CheckMarkers(testConfig(), testWindow, []evidence.Marker{outside}))

	spanning := evidence.Marker{FactID: "m4", Ts: -5 * minute, EndTs: int64Ptr(minute), Kind: "IRRIGATION", SensorID: "s1"}
	hit := CheckMarkers(testConfig(), testWindow, []evidence.Marker{spanning})
	require.NotNil(t, hit)
	assert.Equal(t, []string{"m4"}, hit.FactIDs)
}

func TestRunWrapsStageErrors(t *testing.T) {
	boom := Stage{Name: "boom", Evaluate: func(Input) (*Finding, error) { return nil, assert.AnError }}
	_, err := Run([]Stage{boom}, Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "stage boom")
}
