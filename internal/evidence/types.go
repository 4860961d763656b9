// Package evidence turns ledger fact rows into typed samples and markers and
// defines the reader contract the pipeline consumes.
package evidence

import (
	"time"
)

// RowType is the ledger record type of a fact row.
type RowType string

const (
	RowRawSample RowType = "raw_sample_v1"
	RowMarker    RowType = "marker_v1"
)

// Quality is the closed set of sample quality labels.
type Quality string

const (
	QualityUnknown Quality = "unknown"
	QualityOK      Quality = "ok"
	QualitySuspect Quality = "suspect"
	QualityBad     Quality = "bad"
)

// ParseQuality maps a payload label to a Quality; anything unrecognised is
// QualityUnknown.
func ParseQuality(v any) Quality {
	s, _ := v.(string)
	switch Quality(s) {
	case QualityOK, QualitySuspect, QualityBad:
		return Quality(s)
	default:
		return QualityUnknown
	}
}

// Marker kinds with fixed meaning to the judge.
const (
	KindMissingValue          = "MISSING_VALUE"
	KindMaintenance           = "MAINTENANCE"
	KindDeviceOffline         = "DEVICE_OFFLINE"
	KindExclusionWindowActive = "EXCLUSION_WINDOW_ACTIVE"
)

// Row is one fact as returned by a Reader.
type Row struct {
	FactID        string         `json:"fact_id" yaml:"fact_id"`
	OccurredAt    time.Time      `json:"occurred_at" yaml:"occurred_at"`
	Type          RowType        `json:"type" yaml:"type"`
	SpatialUnitID string         `json:"spatial_unit_id,omitempty" yaml:"spatial_unit_id,omitempty"`
	GroupID       string         `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	SensorID      string         `json:"sensor_id,omitempty" yaml:"sensor_id,omitempty"`
	Record        map[string]any `json:"record_json" yaml:"record_json"`
}

// Payload returns record_json.payload, or an empty map.
func (r Row) Payload() map[string]any {
	if p, ok := r.Record["payload"].(map[string]any); ok {
		return p
	}
	return map[string]any{}
}

// Sample is a normalized raw measurement. Missing-origin placeholders never
// become Samples.
type Sample struct {
	FactID   string  `json:"fact_id"`
	Ts       int64   `json:"ts"`
	SensorID string  `json:"sensorId"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	Quality  Quality `json:"quality"`
}

// Marker is a normalized annotation. Ts is minute aligned.
type Marker struct {
	FactID   string  `json:"fact_id"`
	Ts       int64   `json:"ts"`
	Kind     string  `json:"kind"`
	SensorID string  `json:"sensorId"`
	Metric   *string `json:"metric"`
	StartTs  *int64  `json:"startTsMs,omitempty"`
	EndTs    *int64  `json:"endTsMs,omitempty"`
	Source   *string `json:"source,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// Range returns the span the marker covers: [StartTs or Ts, EndTs or start].
func (m Marker) Range() (start, end int64) {
	start = m.Ts
	if m.StartTs != nil {
		start = *m.StartTs
	}
	end = start
	if m.EndTs != nil {
		end = *m.EndTs
	}
	return start, end
}

// Normalized is the result of splitting rows.
type Normalized struct {
	Samples []Sample
	Markers []Marker
	// FactIDs holds every input row's id, distinct and sorted, including
	// rows that were dropped.
	FactIDs []string
}
