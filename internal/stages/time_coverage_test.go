package stages

import (
	"math"
	"testing"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/problem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gappySamples leave minutes 3..7 of testWindow empty.
func gappySamples() []evidence.Sample {
	m := append(minutes(0, 2), minutes(8, 10)...)
	return append(
		sampleRun("s1", "soil_moisture_vwc", evidence.QualityOK, 0.3, m...),
		sampleRun("s1", "soil_temp_c", evidence.QualityOK, 18, m...)...,
	)
}

func TestComputeTimeCoverageFull(t *testing.T) {
	cov := ComputeTimeCoverage(testConfig(), testWindow, cleanSamples(), nil)
	assert.True(t, cov.OK)
	assert.Equal(t, 1.0, cov.CoverageRatio)
	assert.Equal(t, 0.0, cov.MaxGapMs)
	assert.Equal(t, 11, cov.EffectiveBuckets)
}

func TestComputeTimeCoverageGap(t *testing.T) {
	cov := ComputeTimeCoverage(testConfig(), testWindow, gappySamples(), nil)
	assert.False(t, cov.OK)
	assert.Equal(t, float64(5*minute), cov.MaxGapMs)
	assert.InDelta(t, 6.0/11.0, cov.CoverageRatio, 1e-9)
}

func TestMaintenanceHealsGap(t *testing.T) {
	maint := evidence.Marker{FactID: "m", Ts: 3 * minute, EndTs: int64Ptr(7 * minute), Kind: evidence.KindMaintenance, SensorID: "s1"}

	cov := ComputeTimeCoverage(testConfig(), testWindow, gappySamples(), []evidence.Marker{maint})

	assert.True(t, cov.OK)
	assert.Equal(t, 0.0, cov.MaxGapMs)
	assert.Equal(t, 6, cov.EffectiveBuckets)
	assert.Equal(t, 1.0, cov.CoverageRatio)
}

func TestExclusionBreaksGapRun(t *testing.T) {
	// Empty minutes 3..7, minute 5 excluded: two runs of two.
	offline := evidence.Marker{FactID: "m", Ts: 5 * minute, Kind: evidence.KindDeviceOffline, SensorID: "s1"}
	cov := ComputeTimeCoverage(testConfig(), testWindow, gappySamples(), []evidence.Marker{offline})
	assert.Equal(t, float64(2*minute), cov.MaxGapMs)
}

func TestBadSamplesDoNotCover(t *testing.T) {
	samples := sampleRun("s1", "soil_temp_c", evidence.QualityBad, 1, minutes(0, 10)...)
	cov := ComputeTimeCoverage(testConfig(), testWindow, samples, nil)
	assert.False(t, cov.OK)
	assert.Equal(t, 0.0, cov.CoverageRatio)
	assert.Equal(t, float64(11*minute), cov.MaxGapMs)
}

func TestFullyExcludedWindowPasses(t *testing.T) {
	maint := evidence.Marker{FactID: "m", Ts: -minute, EndTs: int64Ptr(20 * minute), Kind: evidence.KindMaintenance, SensorID: "s1"}
	cov := ComputeTimeCoverage(testConfig(), testWindow, nil, []evidence.Marker{maint})
	assert.True(t, cov.OK)
	assert.True(t, cov.FullyExcluded)
	assert.Equal(t, 0, cov.EffectiveBuckets)
}

func TestZeroDurationWindowFails(t *testing.T) {
	cov := ComputeTimeCoverage(testConfig(), problem.Window{StartTs: 5, EndTs: 5}, cleanSamples(), nil)
	assert.False(t, cov.OK)
	assert.True(t, math.IsInf(cov.MaxGapMs, 1))
	assert.Equal(t, 0.0, cov.CoverageRatio)
}

func TestTimeCoverageClassification(t *testing.T) {
	f := runAll(t, input(gappySamples()))
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeTimeCoverageGappy, f.ProblemType)
	assert.Equal(t, problem.ConfidenceMedium, f.Confidence)
	assert.True(t, f.Degraded)
	assert.Equal(t, problem.RateMid, f.RateClass)
	assert.Equal(t, "Insufficient sampling density in window: 54.5% of expected samples (expected_interval_ms=60000)", f.Summary)
	require.Len(t, f.Refs, 3)
	assert.Equal(t, "time_gap_300000", f.Refs[2].RefID)
	assert.Equal(t, "max_gap_ms=300000, expected_interval_ms=60000", f.Refs[2].Note)

	head := minutes(0, 4)
	tail := append(
		sampleRun("s1", "soil_moisture_vwc", evidence.QualityOK, 0.3, head...),
		sampleRun("s1", "soil_temp_c", evidence.QualityOK, 18, head...)...,
	)
	f = runAll(t, input(tail))
	require.NotNil(t, f)
	assert.Equal(t, problem.TypeWindowNotSupport, f.ProblemType)
	assert.Equal(t, problem.ConfidenceLow, f.Confidence)
}
