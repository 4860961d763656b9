package evidence

// QCMix is the share of ok, suspect and bad samples in a set. Unknown
// quality counts toward none of them.
type QCMix struct {
	OKPct      float64 `json:"ok_pct"`
	SuspectPct float64 `json:"suspect_pct"`
	BadPct     float64 `json:"bad_pct"`
}

// MixOf computes the quality mix of samples; an empty set is all zeros.
func MixOf(samples []Sample) QCMix {
	n := len(samples)
	if n == 0 {
		return QCMix{}
	}
	var ok, suspect, bad int
	for _, s := range samples {
		switch s.Quality {
		case QualityOK:
			ok++
		case QualitySuspect:
			suspect++
		case QualityBad:
			bad++
		}
	}
	return QCMix{
		OKPct:      clamp01(float64(ok) / float64(n)),
		SuspectPct: clamp01(float64(suspect) / float64(n)),
		BadPct:     clamp01(float64(bad) / float64(n)),
	}
}

func clamp01(x float64) float64 {
	switch {
	case x != x, x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
