package stages

import (
	"github.com/geox/judge/internal/canon"
	"github.com/geox/judge/internal/problem"
)

// LedgerSliceRef references the exact fact set of a window. It is nil when
// no facts were read.
func LedgerSliceRef(factIDs []string, w problem.Window) (*problem.EvidenceRef, error) {
	if len(factIDs) == 0 {
		return nil, nil
	}
	id, err := canon.ShortID("ls", factIDs)
	if err != nil {
		return nil, err
	}
	return &problem.EvidenceRef{
		Kind:      problem.RefLedgerSlice,
		RefID:     id,
		Note:      "canonical slice of input facts (deterministic)",
		TimeRange: &w,
	}, nil
}

// QCSummaryRef references a quality control result by content.
func QCSummaryRef(qc QCResult, w problem.Window) (problem.EvidenceRef, error) {
	id, err := canon.ShortID("qc", qc)
	if err != nil {
		return problem.EvidenceRef{}, err
	}
	return problem.EvidenceRef{
		Kind:      problem.RefQCSummary,
		RefID:     id,
		Note:      "canonical qc summary (deterministic)",
		TimeRange: &w,
	}, nil
}

// windowRefs returns the qc summary and ledger slice refs shared by the
// evidence stages.
func windowRefs(in Input) ([]problem.EvidenceRef, error) {
	qcRef, err := QCSummaryRef(EvaluateQC(in.Config, in.Samples), in.Window)
	if err != nil {
		return nil, err
	}
	refs := []problem.EvidenceRef{qcRef}
	ledger, err := LedgerSliceRef(in.FactIDs, in.Window)
	if err != nil {
		return nil, err
	}
	if ledger != nil {
		refs = append(refs, *ledger)
	}
	return refs, nil
}

func ledgerRefs(in Input) ([]problem.EvidenceRef, error) {
	ledger, err := LedgerSliceRef(in.FactIDs, in.Window)
	if err != nil || ledger == nil {
		return nil, err
	}
	return []problem.EvidenceRef{*ledger}, nil
}
