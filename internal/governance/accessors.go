package governance

// accessor binds one manifest path to typed reads of JudgeConfig.
type accessor struct {
	field   EditableField
	get     func(*JudgeConfig) any
	present func(*JudgeConfig) bool
}

func always(*JudgeConfig) bool { return true }

func bound(lo, hi float64) (*float64, *float64) { return &lo, &hi }

func intField(path, desc string, lo, hi float64, get func(*JudgeConfig) any) accessor {
	mn, mx := bound(lo, hi)
	return accessor{
		field:   EditableField{Path: path, Type: FieldInt, Min: mn, Max: mx, Description: desc},
		get:     get,
		present: always,
	}
}

func numberField(path, desc string, lo, hi float64, get func(*JudgeConfig) any) accessor {
	mn, mx := bound(lo, hi)
	return accessor{
		field:   EditableField{Path: path, Type: FieldNumber, Min: mn, Max: mx, Description: desc},
		get:     get,
		present: always,
	}
}

// accessors is the frozen v1 allowlist, in manifest order.
var accessors = []accessor{
	intField("sufficiency.min_total_samples", "Sufficiency total sample threshold", 1, 1000,
		func(c *JudgeConfig) any { return c.Sufficiency.MinTotalSamples }),
	intField("sufficiency.min_samples_per_required_metric", "Sufficiency per-metric threshold", 1, 1000,
		func(c *JudgeConfig) any { return c.Sufficiency.MinSamplesPerRequiredMetric }),

	intField("time_coverage.max_allowed_gap_ms", "Maximum allowed gap", 0, 86_400_000,
		func(c *JudgeConfig) any { return c.TimeCoverage.MaxAllowedGapMs }),
	numberField("time_coverage.min_coverage_ratio", "Minimum coverage ratio", 0, 1,
		func(c *JudgeConfig) any { return c.TimeCoverage.MinCoverageRatio }),
	func() accessor {
		a := intField("time_coverage.expected_interval_ms", "Expected sampling interval", 1000, 86_400_000,
			func(c *JudgeConfig) any { return *c.TimeCoverage.ExpectedIntervalMs })
		a.field.Conditional = ConditionExistsInSSOT
		a.present = func(c *JudgeConfig) bool { return c.TimeCoverage.ExpectedIntervalMs != nil }
		return a
	}(),

	numberField("qc.bad_pct_threshold", "QC bad fraction threshold", 0, 1,
		func(c *JudgeConfig) any { return c.QC.BadPctThreshold }),
	numberField("qc.suspect_pct_threshold", "QC suspect fraction threshold", 0, 1,
		func(c *JudgeConfig) any { return c.QC.SuspectPctThreshold }),

	{
		field:   EditableField{Path: "reference.enable", Type: FieldBool, Description: "Enable reference views"},
		get:     func(c *JudgeConfig) any { return c.Reference.Enable },
		present: always,
	},
	{
		field: EditableField{Path: "reference.kinds_enabled", Type: FieldEnumList, Description: "Enabled reference kinds (subset only)"},
		get: func(c *JudgeConfig) any {
			if c.Reference.KindsEnabled == nil {
				return []string{}
			}
			return c.Reference.KindsEnabled
		},
		present: always,
	},

	numberField("conflict.min_overlap_ratio", "Conflict overlap ratio threshold", 0, 1,
		func(c *JudgeConfig) any { return c.Conflict.MinOverlapRatio }),
	numberField("conflict.delta_numeric_threshold", "Conflict numeric delta threshold", 0, 1e9,
		func(c *JudgeConfig) any { return c.Conflict.DeltaNumericThreshold }),
	intField("conflict.min_points_in_overlap", "Conflict minimum points per sensor", 1, 100_000,
		func(c *JudgeConfig) any { return c.Conflict.MinPointsInOverlap }),
}

// EditablePaths lists every path the v1 allowlist can expose.
func EditablePaths() []string {
	out := make([]string, 0, len(accessors))
	for _, a := range accessors {
		out = append(out, a.field.Path)
	}
	return out
}
