package reference

import (
	"fmt"
	"math"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/problem"
)

// HistoryInput is everything a within-unit history comparison needs. History
// holds the samples of Window.Preceding().
type HistoryInput struct {
	Config    governance.JudgeConfig
	Subject   problem.SubjectRef
	Scale     string
	Window    problem.Window
	Primary   []evidence.Sample
	History   []evidence.Sample
	CreatedAt int64
}

// HistoryEnabled reports whether cfg asks for within-unit history views.
func HistoryEnabled(cfg governance.JudgeConfig) bool {
	return cfg.Reference.Enable && cfg.Reference.KindEnabled(string(KindWithinUnitHistory))
}

// BuildHistoryViews returns one view per required metric, in configuration
// order, or nil when history views are disabled.
func BuildHistoryViews(in HistoryInput) []View {
	if !HistoryEnabled(in.Config) {
		return nil
	}
	views := make([]View, 0, len(in.Config.RequiredMetrics))
	for _, metric := range in.Config.RequiredMetrics {
		views = append(views, BuildHistoryView(in, metric))
	}
	return views
}

// BuildHistoryView compares the mean of metric's family in the primary window
// against the preceding window.
func BuildHistoryView(in HistoryInput, metric string) View {
	w := in.Window
	primary := family(in.Primary, metric)
	history := family(in.History, metric)

	var magnitude *float64
	pm, pok := mean(primary)
	hm, hok := mean(history)
	if pok && hok {
		m := math.Abs(pm - hm)
		magnitude = &m
	}

	delta, conflict := DeltaUnknown, ConflictUnknown
	if magnitude != nil {
		if *magnitude >= in.Config.Conflict.DeltaNumericThreshold {
			delta, conflict = DeltaDiverging, ConflictClear
		} else {
			delta, conflict = DeltaAligned, ConflictNone
		}
	}

	overlap := 0.0
	if w.Duration() > 0 {
		overlap = 1
	}

	timeRange := w
	return View{
		Type:            ViewType,
		SchemaVersion:   SchemaVersion,
		ReferenceViewID: ViewID(NaturalKey(in.Subject, in.Scale, w, KindWithinUnitHistory, metric)),
		CreatedAtTs:     in.CreatedAt,
		SubjectRef:      in.Subject,
		Scale:           in.Scale,
		Window:          w,
		Kind:            KindWithinUnitHistory,
		Metric:          metric,
		PrimarySeriesRef: problem.EvidenceRef{
			Kind:      problem.RefLedgerSlice,
			RefID:     fmt.Sprintf("ledger:window:%d-%d", w.StartTs, w.EndTs),
			TimeRange: &timeRange,
		},
		ReferenceSeriesRef: problem.EvidenceRef{
			Kind:  problem.RefSeriesQuery,
			RefID: fmt.Sprintf("series:history:%d-%d:%s", w.StartTs, w.EndTs, metric),
		},
		ComparisonSummary: ComparisonSummary{
			OverlapRatio:         overlap,
			PrimarySampleCount:   len(primary),
			ReferenceSampleCount: len(history),
			QCMixPrimary:         evidence.MixOf(primary),
			QCMixReference:       evidence.MixOf(history),
			DeltaHint:            DeltaHint{Label: delta, Magnitude: magnitude},
			ConflictHint: ConflictHint{
				Label: conflict,
				BasisRefs: []problem.EvidenceRef{
					{Kind: problem.RefSeriesQuery, RefID: "series:history:" + metric},
				},
			},
		},
	}
}

func family(samples []evidence.Sample, metric string) []evidence.Sample {
	var out []evidence.Sample
	for _, s := range samples {
		if evidence.MatchesRequired(s.Metric, metric) {
			out = append(out, s)
		}
	}
	return out
}

func mean(samples []evidence.Sample) (float64, bool) {
	var sum float64
	var n int
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		sum += s.Value
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
