package evidence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	rows := []Row{
		sampleRow("b", "s1", "soil_temp_c_10cm", t0, 1.0, "ok"),
		sampleRow("a", "s1", "soil_temp_c_10cm", t0, 1.0, "ok"),
		sampleRow("c", "s1", "air_temp_c", t0, 1.0, "ok"),
		markerRow("d", "s1", "MAINTENANCE", t0+60_000, nil),
		sampleRow("e", "s1", "soil_temp_c", t0+120_001, 1.0, "ok"),
		{FactID: "f", OccurredAt: time.UnixMilli(t0), Type: "other_v1", GroupID: "g1"},
	}
	other := sampleRow("g", "s9", "soil_temp_c", t0, 1.0, "ok")
	other.GroupID = "g2"
	rows = append(rows, other)

	got, err := Select(rows, Query{
		StartTsMs: t0,
		EndTsMs:   t0 + 120_000,
		Anchor:    Anchor{GroupID: "g1"},
		Metrics:   []string{"soil_temp_c"},
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.FactID)
	}
	assert.Equal(t, []string{"a", "b", "d"}, ids)
}

func TestSelectAnchorPrecedence(t *testing.T) {
	r := sampleRow("a", "s1", "soil_temp_c", t0, 1.0, "ok")
	r.SpatialUnitID = "su1"
	rows := []Row{r}
	q := Query{StartTsMs: t0, EndTsMs: t0, Metrics: []string{"soil_temp_c"}}

	q.Anchor = Anchor{SpatialUnitID: "su2", GroupID: "g1"}
	got, err := Select(rows, q)
	require.NoError(t, err)
	assert.Empty(t, got, "spatial unit takes precedence over group")

	q.Anchor = Anchor{SensorIDs: []string{"s1"}}
	got, err = Select(rows, q)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = Select(rows, Query{})
	assert.ErrorIs(t, err, ErrMissingAnchor)
}

func TestMemoryReaderPropagatesError(t *testing.T) {
	boom := errors.New("ledger down")
	m := NewMemoryReader()
	m.Err = boom

	_, err := m.QueryWindow(context.Background(), Query{Anchor: Anchor{GroupID: "g"}})
	assert.ErrorIs(t, err, boom)
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	content := `facts:
  - fact_id: f1
    occurred_at: 2023-11-14T22:14:00Z
    type: raw_sample_v1
    group_id: g1
    sensor_id: s1
    record_json:
      payload:
        metric: soil_moisture_vwc_20cm
        value: 0.31
        quality: ok
  - fact_id: f2
    occurred_at: 2023-11-14T22:15:00Z
    type: marker_v1
    group_id: g1
    sensor_id: s1
    record_json:
      payload:
        kind: MAINTENANCE
        end_ts_ms: 1700000400000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	reader := NewFileReader(path)
	rows, err := reader.QueryWindow(context.Background(), Query{
		StartTsMs: 1_699_999_000_000,
		EndTsMs:   1_700_001_000_000,
		Anchor:    Anchor{GroupID: "g1"},
		Metrics:   []string{"soil_moisture_vwc"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	norm := Normalize(rows)
	require.Len(t, norm.Samples, 1)
	assert.Equal(t, 0.31, norm.Samples[0].Value)
	assert.Equal(t, int64(1_700_000_040_000), norm.Samples[0].Ts)
	require.Len(t, norm.Markers, 1)
	assert.Equal(t, int64(1_700_000_400_000), *norm.Markers[0].EndTs)
}

func TestFileReaderRejectsMissingFactID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("facts:\n  - type: marker_v1\n"), 0o600))

	_, err := NewFileReader(path).QueryWindow(context.Background(), Query{Anchor: Anchor{GroupID: "g"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fact_id")
}
