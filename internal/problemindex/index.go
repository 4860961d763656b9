// Package problemindex derives the governance lifecycle of problem states:
// which declarations are still active, which were superseded by a later
// declaration over the same evidence, which expired and which are frozen.
//
// The index is computed, never stored. Problem states themselves are not
// modified.
package problemindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/problem"
)

// State is the lifecycle state of one problem state.
type State string

const (
	StateActive     State = "ACTIVE"
	StateSuperseded State = "SUPERSEDED"
	StateExpired    State = "EXPIRED"
	StateFrozen     State = "FROZEN"
)

// ErrInvalidConstants is returned when Constants fail Validate.
var ErrInvalidConstants = errors.New("invalid lifecycle constants")

// Constants parameterise supersession and expiry.
type Constants struct {
	// MergeOverlapRatio is the minimum overlap, relative to the shorter
	// window, at which a newer state supersedes an older one.
	MergeOverlapRatio float64 `json:"merge_overlap_ratio"`
	// ExpireAfterMs is how long after its window ends a state stays active.
	ExpireAfterMs int64 `json:"expire_after_ms"`
}

// DefaultConstants returns the constants used when none are configured.
func DefaultConstants() Constants {
	return Constants{MergeOverlapRatio: 0.5, ExpireAfterMs: 24 * 60 * 60 * 1000}
}

// Validate checks that the ratio lies in [0, 1] and the expiry is not
// negative.
func (c Constants) Validate() error {
	if math.IsNaN(c.MergeOverlapRatio) || c.MergeOverlapRatio < 0 || c.MergeOverlapRatio > 1 {
		return fmt.Errorf("%w: merge_overlap_ratio %v outside [0, 1]", ErrInvalidConstants, c.MergeOverlapRatio)
	}
	if c.ExpireAfterMs < 0 {
		return fmt.Errorf("%w: expire_after_ms %d is negative", ErrInvalidConstants, c.ExpireAfterMs)
	}
	return nil
}

// Entry is the part of a problem state the index looks at.
type Entry struct {
	ProblemStateID string
	CreatedAtTs    int64
	SubjectRef     problem.SubjectRef
	Scale          string
	Window         problem.Window
	ProblemType    problem.ProblemType
	// InputDigest fingerprints the evidence set of the run; empty when
	// unknown.
	InputDigest string
}

// EntryOf projects ps and the digest of its run inputs.
func EntryOf(ps problem.ProblemState, inputDigest string) Entry {
	return Entry{
		ProblemStateID: ps.ProblemStateID,
		CreatedAtTs:    ps.CreatedAtTs,
		SubjectRef:     ps.SubjectRef,
		Scale:          ps.Scale,
		Window:         ps.Window,
		ProblemType:    ps.ProblemType,
		InputDigest:    inputDigest,
	}
}

// Row is one index line. SupersededBy is set only for SUPERSEDED rows.
type Row struct {
	ProblemStateID string  `json:"problem_state_id"`
	LifecycleState State   `json:"lifecycle_state"`
	SupersededBy   *string `json:"superseded_by"`
}

// Query is the input of Compute.
type Query struct {
	Entries   []Entry
	AsOfTs    int64
	Constants Constants
	FrozenIDs []string
}

// Compute builds the index rows of q.Entries, ordered by problem state id.
//
// Entries are grouped by subject, scale, problem type and input digest.
// Within a group, ordered by creation time then id, an older entry is
// superseded by the first newer entry whose window contains its window or
// overlaps it by at least MergeOverlapRatio. Frozen entries neither
// supersede nor get superseded. Precedence is FROZEN, SUPERSEDED, EXPIRED,
// ACTIVE; expiry is strict: AsOfTs > window end + ExpireAfterMs.
func Compute(q Query) ([]Row, error) {
	if err := q.Constants.Validate(); err != nil {
		return nil, err
	}
	frozen := make(map[string]bool, len(q.FrozenIDs))
	for _, id := range q.FrozenIDs {
		frozen[id] = true
	}

	groups := make(map[string][]Entry)
	var order []string
	for _, e := range q.Entries {
		key, err := groupKey(e)
		if err != nil {
			return nil, err
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	rows := make([]Row, 0, len(q.Entries))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].CreatedAtTs != group[j].CreatedAtTs {
				return group[i].CreatedAtTs < group[j].CreatedAtTs
			}
			return group[i].ProblemStateID < group[j].ProblemStateID
		})

		supersededBy := supersessions(group, frozen, q.Constants.MergeOverlapRatio)
		for _, e := range group {
			row := Row{ProblemStateID: e.ProblemStateID}
			switch newer, ok := supersededBy[e.ProblemStateID]; {
			case frozen[e.ProblemStateID]:
				row.LifecycleState = StateFrozen
			case ok:
				row.LifecycleState = StateSuperseded
				row.SupersededBy = &newer
			case q.AsOfTs > e.Window.EndTs+q.Constants.ExpireAfterMs:
				row.LifecycleState = StateExpired
			default:
				row.LifecycleState = StateActive
			}
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ProblemStateID < rows[j].ProblemStateID
	})
	return rows, nil
}

// supersessions maps each superseded id to its superseder. group must be
// sorted oldest first.
func supersessions(group []Entry, frozen map[string]bool, ratio float64) map[string]string {
	out := make(map[string]string)
	for i, older := range group {
		if frozen[older.ProblemStateID] {
			continue
		}
		for _, newer := range group[i+1:] {
			if frozen[newer.ProblemStateID] {
				continue
			}
			if contains(newer.Window, older.Window) || overlapRatio(older.Window, newer.Window) >= ratio {
				out[older.ProblemStateID] = newer.ProblemStateID
				break
			}
		}
	}
	return out
}

func groupKey(e Entry) (string, error) {
	subject, err := canon.String(e.SubjectRef)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize subject of %s: %w", e.ProblemStateID, err)
	}
	return strings.Join([]string{subject, e.Scale, string(e.ProblemType), e.InputDigest}, "|"), nil
}

// contains is inclusive on both ends.
func contains(outer, inner problem.Window) bool {
	return outer.StartTs <= inner.StartTs && outer.EndTs >= inner.EndTs
}

// overlapRatio is the intersection over the shorter duration; zero-length
// windows overlap nothing.
func overlapRatio(a, b problem.Window) float64 {
	aLen := max(0, a.Duration())
	bLen := max(0, b.Duration())
	if aLen == 0 || bLen == 0 {
		return 0
	}
	inter := max(0, min(a.EndTs, b.EndTs)-max(a.StartTs, b.StartTs))
	return float64(inter) / float64(min(aLen, bLen))
}
