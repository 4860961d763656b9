package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 int64 = 1_700_000_040_000 // minute aligned

func sampleRow(id, sensor, metric string, ts int64, value any, quality string) Row {
	payload := map[string]any{"sensorId": sensor, "metric": metric, "value": value, "ts_ms": float64(ts)}
	if quality != "" {
		payload["quality"] = quality
	}
	return Row{
		FactID:     id,
		OccurredAt: time.UnixMilli(ts),
		Type:       RowRawSample,
		GroupID:    "g1",
		SensorID:   sensor,
		Record:     map[string]any{"payload": payload},
	}
}

func markerRow(id, sensor, kind string, ts int64, extra map[string]any) Row {
	payload := map[string]any{"sensorId": sensor, "kind": kind, "ts_ms": float64(ts)}
	for k, v := range extra {
		payload[k] = v
	}
	return Row{
		FactID:     id,
		OccurredAt: time.UnixMilli(ts),
		Type:       RowMarker,
		GroupID:    "g1",
		SensorID:   sensor,
		Record:     map[string]any{"payload": payload},
	}
}

func TestNormalizeSplitsSamplesAndMarkers(t *testing.T) {
	rows := []Row{
		sampleRow("f3", "s1", "soil_temp_c_10cm", t0, 12.5, "ok"),
		markerRow("f1", "s1", "MAINTENANCE", t0+12_345, map[string]any{"source": "ops", "end_ts_ms": float64(t0 + 600_000)}),
		sampleRow("f2", "s1", "soil_temp_c_10cm", t0+60_000, "13.5", "weird"),
		sampleRow("f3", "s1", "soil_temp_c_10cm", t0, 12.5, "ok"),
	}

	got := Normalize(rows)

	assert.Equal(t, []string{"f1", "f2", "f3"}, got.FactIDs)
	require.Len(t, got.Markers, 1)
	m := got.Markers[0]
	assert.Equal(t, t0, m.Ts)
	assert.Equal(t, "MAINTENANCE", m.Kind)
	require.NotNil(t, m.Source)
	assert.Equal(t, "ops", *m.Source)
	require.NotNil(t, m.EndTs)
	start, end := m.Range()
	assert.Equal(t, t0, start)
	assert.Equal(t, t0+600_000, end)

	require.Len(t, got.Samples, 3)
	assert.Equal(t, 13.5, got.Samples[1].Value)
	assert.Equal(t, QualityUnknown, got.Samples[1].Quality)
}

func TestNormalizeDropsIncompleteRows(t *testing.T) {
	noMetric := sampleRow("a", "s1", "", t0, 1.0, "ok")
	noValue := sampleRow("b", "s1", "soil_temp_c", t0, "n/a", "ok")
	noSensor := sampleRow("c", "", "soil_temp_c", t0, 1.0, "ok")
	noKind := markerRow("d", "s1", "", t0, nil)

	got := Normalize([]Row{noMetric, noValue, noSensor, noKind})

	assert.Empty(t, got.Samples)
	assert.Empty(t, got.Markers)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got.FactIDs)
}

func TestMissingOriginRule(t *testing.T) {
	tests := []struct {
		name       string
		sample     Row
		markerMeta string
		wantKept   bool
	}{
		{name: "bad sample same metric dropped", sample: sampleRow("s", "s1", "soil_temp_c_30cm", t0+5_000, 0.0, "bad"), markerMeta: "soil_temp_c_30cm"},
		{name: "bad sample base family dropped", sample: sampleRow("s", "s1", "soil_temp_c_30cm", t0+59_000, 0.0, "bad"), markerMeta: "soil_temp_c"},
		{name: "ok sample kept", sample: sampleRow("s", "s1", "soil_temp_c_30cm", t0+5_000, 0.0, "ok"), markerMeta: "soil_temp_c", wantKept: true},
		{name: "other minute kept", sample: sampleRow("s", "s1", "soil_temp_c_30cm", t0+60_000, 0.0, "bad"), markerMeta: "soil_temp_c", wantKept: true},
		{name: "other sensor kept", sample: sampleRow("s", "s2", "soil_temp_c_30cm", t0, 0.0, "bad"), markerMeta: "soil_temp_c", wantKept: true},
		{name: "other family kept", sample: sampleRow("s", "s1", "air_temp_c", t0, 0.0, "bad"), markerMeta: "soil_temp_c", wantKept: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker := markerRow("m", "s1", KindMissingValue, t0+30_000, map[string]any{"metric": tt.markerMeta})
			got := Normalize([]Row{tt.sample, marker})

			assert.Equal(t, tt.wantKept, len(got.Samples) == 1)
			assert.Equal(t, []string{"m", "s"}, got.FactIDs)
		})
	}
}

func TestDecoderChainPrecedence(t *testing.T) {
	occurred := time.UnixMilli(t0)
	tests := []struct {
		name    string
		payload map[string]any
		row     Row
		want    int64
		wantOK  bool
	}{
		{name: "ts_ms wins", payload: map[string]any{"ts_ms": 1.0, "tsMs": 2.0, "ts": 3.0}, row: Row{OccurredAt: occurred}, want: 1, wantOK: true},
		{name: "tsMs next", payload: map[string]any{"tsMs": 2.9, "ts": 3.0}, want: 2, wantOK: true},
		{name: "ts string", payload: map[string]any{"ts": " 42 "}, want: 42, wantOK: true},
		{name: "occurred_at fallback", payload: map[string]any{"ts": "x"}, row: Row{OccurredAt: occurred}, want: t0, wantOK: true},
		{name: "nothing", payload: map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := V1.DecodeTimestamp(tt.row, tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSensorDecoders(t *testing.T) {
	s, ok := V1.DecodeSensor(Row{SensorID: "row"}, map[string]any{"sensorId": "payload"})
	assert.True(t, ok)
	assert.Equal(t, "payload", s)

	s, ok = V1.DecodeSensor(Row{SensorID: "row"}, map[string]any{"sensorId": 7})
	assert.True(t, ok)
	assert.Equal(t, "row", s)

	_, ok = RowSensorID().Decode(Row{}, nil)
	assert.False(t, ok)
}

func TestMetricFamily(t *testing.T) {
	assert.Equal(t, "soil_temp_c", BaseMetric("soil_temp_c_30cm"))
	assert.Equal(t, "soil_moisture_vwc", BaseMetric("soil_moisture_vwc"))
	assert.Equal(t, "air_temp_c", BaseMetric("air_temp_c"))
	assert.Equal(t, []string{"soil_temp_c_30cm", "soil_temp_c"}, MetricVariants("soil_temp_c_30cm"))
	assert.Equal(t, []string{"air_temp_c"}, MetricVariants("air_temp_c"))

	base, ok := MatchRequired("soil_temp_c_10cm", []string{"soil_moisture_vwc", "soil_temp_c"})
	assert.True(t, ok)
	assert.Equal(t, "soil_temp_c", base)
	// Prefix matching is deliberately loose.
	assert.True(t, MatchesRequired("air_temp_c_max", "air_temp_c"))
	assert.False(t, MatchesRequired("air_temp", "air_temp_c"))
}

func TestMinuteAlignNegative(t *testing.T) {
	assert.Equal(t, int64(-60_000), MinuteAlign(-1))
	assert.Equal(t, int64(0), MinuteAlign(59_999))
}
