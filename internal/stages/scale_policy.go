package stages

import (
	"fmt"

	"github.com/geox/judge/internal/problem"
)

// evaluateScalePolicy blocks a run that would lean on a reference view of
// another scale.
func evaluateScalePolicy(in Input) (*Finding, error) {
	crossScale, found := "", false
	for _, v := range in.ReferenceViews {
		if v.Scale != in.Scale {
			crossScale, found = v.Scale, true
			break
		}
	}
	if !found {
		return nil, nil
	}

	var refs []problem.EvidenceRef
	for _, v := range in.ReferenceViews {
		window := in.Window
		refs = append(refs, problem.EvidenceRef{
			Kind:      problem.RefReferenceView,
			RefID:     v.ReferenceViewID,
			Note:      "reference view",
			TimeRange: &window,
		})
	}
	ledger, err := ledgerRefs(in)
	if err != nil {
		return nil, err
	}
	refs = append(refs, ledger...)

	metrics, sensors := in.Rollups()
	return &Finding{
		ProblemType: problem.TypeScalePolicyBlocked,
		Confidence:  problem.ConfidenceHigh,
		Uncertainty: []problem.UncertaintySource{problem.UncertaintyScalePolicyLimitation},
		Summary:     fmt.Sprintf("Reference at scale %q cannot support a %q judgement", crossScale, in.Scale),
		Metrics:     metrics,
		Sensors:     sensors,
		Refs:        refs,
		Scope:       problem.ScopeUnknown,
		RateClass:   problem.RateUnknown,
	}, nil
}
