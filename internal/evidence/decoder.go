package evidence

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TimestampDecoder extracts a millisecond timestamp from a row. ok=false
// hands over to the next decoder in the chain.
type TimestampDecoder struct {
	Name   string
	Decode func(r Row, payload map[string]any) (int64, bool)
}

// SensorDecoder extracts a sensor id from a row.
type SensorDecoder struct {
	Name   string
	Decode func(r Row, payload map[string]any) (string, bool)
}

// DecoderChain is an ordered, versioned set of field decoders. The first
// decoder that succeeds wins.
type DecoderChain struct {
	Version   string
	Timestamp []TimestampDecoder
	Sensor    []SensorDecoder
}

// PayloadMillis reads a numeric (or numeric string) payload field,
// truncated to whole milliseconds.
func PayloadMillis(field string) TimestampDecoder {
	return TimestampDecoder{
		Name: "payload." + field,
		Decode: func(_ Row, payload map[string]any) (int64, bool) {
			n, ok := number(payload[field])
			if !ok {
				return 0, false
			}
			return int64(math.Trunc(n)), true
		},
	}
}

// OccurredAt reads the ledger occurred_at column.
func OccurredAt() TimestampDecoder {
	return TimestampDecoder{
		Name: "occurred_at",
		Decode: func(r Row, _ map[string]any) (int64, bool) {
			if r.OccurredAt.IsZero() {
				return 0, false
			}
			return r.OccurredAt.UnixMilli(), true
		},
	}
}

// PayloadSensorID reads payload.sensorId.
func PayloadSensorID() SensorDecoder {
	return SensorDecoder{
		Name: "payload.sensorId",
		Decode: func(_ Row, payload map[string]any) (string, bool) {
			s, ok := payload["sensorId"].(string)
			return s, ok
		},
	}
}

// RowSensorID reads the ledger sensor_id column.
func RowSensorID() SensorDecoder {
	return SensorDecoder{
		Name: "sensor_id",
		Decode: func(r Row, _ map[string]any) (string, bool) {
			return r.SensorID, r.SensorID != ""
		},
	}
}

// V1 is the decoder chain for raw_sample_v1 and marker_v1 rows: explicit
// payload milliseconds win over ledger metadata.
var V1 = DecoderChain{
	Version: "v1",
	Timestamp: []TimestampDecoder{
		PayloadMillis("ts_ms"),
		PayloadMillis("tsMs"),
		PayloadMillis("ts"),
		OccurredAt(),
	},
	Sensor: []SensorDecoder{
		PayloadSensorID(),
		RowSensorID(),
	},
}

// DecodeTimestamp runs the timestamp decoders in order.
func (c DecoderChain) DecodeTimestamp(r Row, payload map[string]any) (int64, bool) {
	for _, d := range c.Timestamp {
		if ts, ok := d.Decode(r, payload); ok {
			return ts, true
		}
	}
	return 0, false
}

// DecodeSensor runs the sensor decoders in order.
func (c DecoderChain) DecodeSensor(r Row, payload map[string]any) (string, bool) {
	for _, d := range c.Sensor {
		if s, ok := d.Decode(r, payload); ok {
			return s, true
		}
	}
	return "", false
}

// number accepts JSON/YAML numbers and numeric strings; non-finite values
// are rejected.
func number(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func optionalString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func optionalMillis(v any) *int64 {
	n, ok := number(v)
	if !ok {
		return nil
	}
	ms := int64(math.Trunc(n))
	return &ms
}
