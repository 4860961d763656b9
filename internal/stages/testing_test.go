package stages

import (
	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
)

const minute int64 = 60_000

var testWindow = problem.Window{StartTs: 0, EndTs: 10 * minute}

func testConfig() governance.JudgeConfig {
	interval := minute
	return governance.JudgeConfig{
		SchemaVersion:   "1.0.0",
		RequiredMetrics: []string{"soil_moisture_vwc", "soil_temp_c"},
		Sufficiency:     governance.Sufficiency{MinTotalSamples: 4, MinSamplesPerRequiredMetric: 2},
		TimeCoverage: governance.TimeCoverage{
			MaxAllowedGapMs:    3 * minute,
			MinCoverageRatio:   0.8,
			ExpectedIntervalMs: &interval,
		},
		QC:        governance.QC{BadPctThreshold: 0.2, SuspectPctThreshold: 0.3},
		Reference: governance.Reference{Enable: true, KindsEnabled: []string{"WITHIN_UNIT_HISTORY"}},
		Conflict:  governance.Conflict{MinOverlapRatio: 0.5, DeltaNumericThreshold: 5, MinPointsInOverlap: 3},
		Marker:    governance.Marker{ExclusionKinds: []string{"MAINTENANCE", "DEVICE_OFFLINE"}},
	}
}

// sampleRun returns one sample per listed minute.
func sampleRun(sensor, metric string, q evidence.Quality, value float64, minutes ...int64) []evidence.Sample {
	out := make([]evidence.Sample, 0, len(minutes))
	for _, m := range minutes {
		out = append(out, evidence.Sample{
			FactID:   sensor + "-" + metric + "-" + string(rune('a'+m)),
			Ts:       m * minute,
			SensorID: sensor,
			Metric:   metric,
			Value:    value,
			Quality:  q,
		})
	}
	return out
}

func minutes(from, to int64) []int64 {
	var out []int64
	for m := from; m <= to; m++ {
		out = append(out, m)
	}
	return out
}

// cleanSamples fully covers testWindow with ok samples of both metrics.
func cleanSamples() []evidence.Sample {
	all := minutes(0, 10)
	return append(
		sampleRun("s1", "soil_moisture_vwc_20cm", evidence.QualityOK, 0.3, all...),
		sampleRun("s1", "soil_temp_c_10cm", evidence.QualityOK, 18, all...)...,
	)
}

func factIDs(samples []evidence.Sample) []string {
	out := make([]string, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.FactID)
	}
	return out
}

func input(samples []evidence.Sample, markers ...evidence.Marker) Input {
	return Input{
		Config:  testConfig(),
		Scale:   "group",
		Window:  testWindow,
		Samples: samples,
		Markers: markers,
		FactIDs: factIDs(samples),
	}
}

func int64Ptr(v int64) *int64 { return &v }
