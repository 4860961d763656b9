package evidence

import (
	"fmt"
	"sort"
)

const minuteMs int64 = 60_000

// MinuteAlign floors ts to the start of its minute.
func MinuteAlign(ts int64) int64 {
	return floorTo(ts, minuteMs)
}

func floorTo(ts, step int64) int64 {
	q := ts / step
	if ts%step != 0 && ts < 0 {
		q--
	}
	return q * step
}

// Normalizer splits rows with a given decoder chain.
type Normalizer struct {
	Chain DecoderChain
}

// Normalize splits rows with the V1 decoder chain.
func Normalize(rows []Row) Normalized {
	return Normalizer{Chain: V1}.Normalize(rows)
}

func missingKey(sensorID, metric string, minute int64) string {
	return fmt.Sprintf("%s|%s|%d", sensorID, metric, minute)
}

// Normalize splits rows into samples and markers.
//
// Markers are decoded first so that a bad-quality sample sharing sensor,
// minute and metric family with a MISSING_VALUE marker can be recognised as
// a carried-forward placeholder and dropped: it is absent evidence, not bad
// evidence.
func (n Normalizer) Normalize(rows []Row) Normalized {
	var out Normalized
	missing := make(map[string]struct{})
	seen := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		if _, dup := seen[r.FactID]; !dup {
			seen[r.FactID] = struct{}{}
			out.FactIDs = append(out.FactIDs, r.FactID)
		}
		if r.Type != RowMarker {
			continue
		}
		m, ok := n.marker(r)
		if !ok {
			continue
		}
		out.Markers = append(out.Markers, m)
		if m.Kind == KindMissingValue && m.Metric != nil {
			for _, v := range MetricVariants(*m.Metric) {
				missing[missingKey(m.SensorID, v, m.Ts)] = struct{}{}
			}
		}
	}

	for _, r := range rows {
		if r.Type != RowRawSample {
			continue
		}
		s, ok := n.sample(r)
		if !ok {
			continue
		}
		if s.Quality == QualityBad && isMissingOrigin(missing, s) {
			continue
		}
		out.Samples = append(out.Samples, s)
	}

	sort.Strings(out.FactIDs)
	return out
}

func isMissingOrigin(missing map[string]struct{}, s Sample) bool {
	minute := MinuteAlign(s.Ts)
	for _, v := range MetricVariants(s.Metric) {
		if _, ok := missing[missingKey(s.SensorID, v, minute)]; ok {
			return true
		}
	}
	return false
}

func (n Normalizer) marker(r Row) (Marker, bool) {
	payload := r.Payload()
	ts, ok := n.Chain.DecodeTimestamp(r, payload)
	if !ok {
		return Marker{}, false
	}
	kind, _ := payload["kind"].(string)
	sensorID, _ := n.Chain.DecodeSensor(r, payload)
	if kind == "" || sensorID == "" {
		return Marker{}, false
	}
	return Marker{
		FactID:   r.FactID,
		Ts:       MinuteAlign(ts),
		Kind:     kind,
		SensorID: sensorID,
		Metric:   optionalString(payload["metric"]),
		StartTs:  optionalMillis(payload["start_ts_ms"]),
		EndTs:    optionalMillis(payload["end_ts_ms"]),
		Source:   optionalString(payload["source"]),
		Note:     optionalString(payload["note"]),
	}, true
}

func (n Normalizer) sample(r Row) (Sample, bool) {
	payload := r.Payload()
	ts, ok := n.Chain.DecodeTimestamp(r, payload)
	if !ok {
		return Sample{}, false
	}
	value, ok := number(payload["value"])
	if !ok {
		return Sample{}, false
	}
	sensorID, _ := n.Chain.DecodeSensor(r, payload)
	metric, _ := payload["metric"].(string)
	if sensorID == "" || metric == "" {
		return Sample{}, false
	}
	return Sample{
		FactID:   r.FactID,
		Ts:       ts,
		SensorID: sensorID,
		Metric:   metric,
		Value:    value,
		Quality:  ParseQuality(payload["quality"]),
	}, true
}
