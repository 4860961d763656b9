// Package runcache keeps the artefacts of recently persisted runs in memory
// for the list endpoints. Nothing survives a restart.
package runcache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/geox/judge/internal/aosense"
	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/logging"
	"github.com/geox/judge/internal/problem"
	"github.com/geox/judge/internal/problemindex"
	"github.com/geox/judge/internal/reference"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ClampLimit maps a requested list size into [1, MaxLimit]; zero or
// negative requests get DefaultLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return max(1, min(limit, MaxLimit))
}

// Stats reports cache occupancy.
type Stats struct {
	Runs           uint64 `json:"runs"`
	ProblemStates  int    `json:"problem_states"`
	ReferenceViews int    `json:"reference_views"`
	AoSense        int    `json:"ao_sense"`
	LBCandidates   int    `json:"lb_candidates"`
}

// recordedState pairs a problem state with the digest of its run's fact ids.
type recordedState struct {
	state       problem.ProblemState
	inputDigest string
}

// Cache holds the newest records of each kind, evicting the least recently
// recorded once a kind reaches its capacity.
type Cache struct {
	problemStates  *lru.Cache[string, recordedState]
	referenceViews *lru.Cache[string, reference.View]
	aoSense        *lru.Cache[string, aosense.Sense]
	lbCandidates   *lru.Cache[string, judge.LBCandidate]
	logger         *logging.Logger

	runs uint64
}

// New creates a cache holding up to size records of each kind.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("run cache size must be positive, got %d", size)
	}
	ps, err := lru.New[string, recordedState](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create problem state cache: %w", err)
	}
	rv, err := lru.New[string, reference.View](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference view cache: %w", err)
	}
	ao, err := lru.New[string, aosense.Sense](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ao sense cache: %w", err)
	}
	lb, err := lru.New[string, judge.LBCandidate](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lb candidate cache: %w", err)
	}
	return &Cache{
		problemStates:  ps,
		referenceViews: rv,
		aoSense:        ao,
		lbCandidates:   lb,
		logger:         logging.GetLogger("judge.runcache"),
	}, nil
}

// Record implements judge.Recorder. Reference views are keyed by their
// content-addressed id, so re-running a window replaces its views.
func (c *Cache) Record(ctx context.Context, r *judge.RunResult) {
	if r == nil || r.Output == nil {
		return
	}
	if len(r.Output.ProblemStates) > 0 {
		digest, err := canon.PrefixedHash(r.Bundle.FactIDs)
		if err != nil {
			c.logger.WithContext(ctx).Warn("Failed to digest fact ids of run %s: %v", r.RunID, err)
		}
		for _, ps := range r.Output.ProblemStates {
			c.problemStates.Add(ps.ProblemStateID, recordedState{state: ps, inputDigest: digest})
		}
	}
	for _, s := range r.Output.AoSense {
		c.aoSense.Add(s.AoSenseID, s)
	}
	for _, v := range r.ProducedReferenceViews {
		c.referenceViews.Add(v.ReferenceViewID, v)
	}
	for _, lb := range r.ProducedLBCandidates {
		c.lbCandidates.Add(lb.LBCandidateID, lb)
	}
	atomic.AddUint64(&c.runs, 1)

	c.logger.WithContext(ctx).DebugWithFields("run recorded",
		logging.Field("problem_states", len(r.Output.ProblemStates)),
		logging.Field("reference_views", len(r.ProducedReferenceViews)),
	)
}

// ProblemStates lists recorded problem states, newest first.
func (c *Cache) ProblemStates(limit int) []problem.ProblemState {
	recorded := newestFirst(c.problemStates, limit)
	out := make([]problem.ProblemState, 0, len(recorded))
	for _, r := range recorded {
		out = append(out, r.state)
	}
	return out
}

// ProblemStateIndex computes the lifecycle index over the recorded problem
// states as of asOfTs.
func (c *Cache) ProblemStateIndex(asOfTs int64, constants problemindex.Constants, frozenIDs []string) ([]problemindex.Row, error) {
	keys := c.problemStates.Keys()
	entries := make([]problemindex.Entry, 0, len(keys))
	for _, k := range keys {
		if r, ok := c.problemStates.Peek(k); ok {
			entries = append(entries, problemindex.EntryOf(r.state, r.inputDigest))
		}
	}
	return problemindex.Compute(problemindex.Query{
		Entries:   entries,
		AsOfTs:    asOfTs,
		Constants: constants,
		FrozenIDs: frozenIDs,
	})
}

// ReferenceViews lists recorded reference views, newest first.
func (c *Cache) ReferenceViews(limit int) []reference.View {
	return newestFirst(c.referenceViews, limit)
}

// AoSense lists recorded observation requests, newest first.
func (c *Cache) AoSense(limit int) []aosense.Sense {
	return newestFirst(c.aoSense, limit)
}

// LBCandidates lists recorded learning-backlog candidates, newest first.
func (c *Cache) LBCandidates(limit int) []judge.LBCandidate {
	return newestFirst(c.lbCandidates, limit)
}

// Stats returns current occupancy.
func (c *Cache) Stats() Stats {
	return Stats{
		Runs:           atomic.LoadUint64(&c.runs),
		ProblemStates:  c.problemStates.Len(),
		ReferenceViews: c.referenceViews.Len(),
		AoSense:        c.aoSense.Len(),
		LBCandidates:   c.lbCandidates.Len(),
	}
}

// newestFirst walks keys from most to least recently added. Peek keeps
// listing from reordering the cache.
func newestFirst[T any](cache *lru.Cache[string, T], limit int) []T {
	limit = ClampLimit(limit)
	keys := cache.Keys()
	out := make([]T, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if v, ok := cache.Peek(keys[i]); ok {
			out = append(out, v)
		}
	}
	return out
}
