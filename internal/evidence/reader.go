package evidence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrMissingAnchor is returned for queries without spatial unit, group or
// sensor ids.
var ErrMissingAnchor = errors.New("missing anchor")

// Anchor scopes a query. The first non-empty of SpatialUnitID, GroupID,
// SensorIDs applies.
type Anchor struct {
	SpatialUnitID string   `json:"spatialUnitId,omitempty"`
	GroupID       string   `json:"groupId,omitempty"`
	SensorIDs     []string `json:"sensorIds,omitempty"`
}

// Query selects the fact rows of one window.
type Query struct {
	StartTsMs int64
	EndTsMs   int64
	Anchor    Anchor
	// Metrics are base metric names; sample rows match by family. Marker
	// rows are never metric-filtered.
	Metrics []string
}

// Validate checks the anchor.
func (q Query) Validate() error {
	a := q.Anchor
	if a.SpatialUnitID == "" && a.GroupID == "" && len(a.SensorIDs) == 0 {
		return ErrMissingAnchor
	}
	return nil
}

// Reader is the evidence collaborator. Rows come back ordered by
// occurred_at ascending.
type Reader interface {
	QueryWindow(ctx context.Context, q Query) ([]Row, error)
}

// Select applies the query contract to an in-memory row set: inclusive
// window on occurred_at, sample and marker rows only, anchor precedence,
// family metric filter on samples, ascending order with fact id as tie
// breaker.
func Select(rows []Row, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var sensors map[string]bool
	if q.Anchor.SpatialUnitID == "" && q.Anchor.GroupID == "" {
		sensors = make(map[string]bool, len(q.Anchor.SensorIDs))
		for _, s := range q.Anchor.SensorIDs {
			sensors[s] = true
		}
	}

	out := make([]Row, 0)
	for _, r := range rows {
		if r.Type != RowRawSample && r.Type != RowMarker {
			continue
		}
		ts := r.OccurredAt.UnixMilli()
		if ts < q.StartTsMs || ts > q.EndTsMs {
			continue
		}
		switch {
		case q.Anchor.SpatialUnitID != "":
			if r.SpatialUnitID != q.Anchor.SpatialUnitID {
				continue
			}
		case q.Anchor.GroupID != "":
			if r.GroupID != q.Anchor.GroupID {
				continue
			}
		default:
			if !sensors[r.SensorID] {
				continue
			}
		}
		if r.Type == RowRawSample {
			metric, _ := r.Payload()["metric"].(string)
			if _, ok := MatchRequired(metric, q.Metrics); !ok {
				continue
			}
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].FactID < out[j].FactID
	})
	return out, nil
}

// MemoryReader serves rows held in memory.
type MemoryReader struct {
	mu   sync.RWMutex
	rows []Row
	// Err, when set, is returned by every query.
	Err error
}

// NewMemoryReader returns a reader over rows.
func NewMemoryReader(rows ...Row) *MemoryReader {
	return &MemoryReader{rows: append([]Row{}, rows...)}
}

// Append adds rows.
func (m *MemoryReader) Append(rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
}

// QueryWindow implements Reader.
func (m *MemoryReader) QueryWindow(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, err := Select(m.rows, q)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	return rows, nil
}
