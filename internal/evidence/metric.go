package evidence

import "strings"

// depthFamilies are metrics reported per depth (soil_temp_c_30cm).
var depthFamilies = []string{"soil_moisture_vwc", "soil_temp_c"}

// BaseMetric strips the depth suffix of a known depth family.
func BaseMetric(metric string) string {
	for _, base := range depthFamilies {
		if metric == base || strings.HasPrefix(metric, base+"_") {
			return base
		}
	}
	return metric
}

// MetricVariants returns metric and, when different, its base form.
func MetricVariants(metric string) []string {
	if base := BaseMetric(metric); base != "" && base != metric {
		return []string{metric, base}
	}
	return []string{metric}
}

// MatchesRequired reports whether a sample metric belongs to the required
// base metric: equal, or base followed by "_" and a suffix.
func MatchesRequired(metric, base string) bool {
	return metric == base || strings.HasPrefix(metric, base+"_")
}

// MatchRequired returns the first required base metric matches, in
// configuration order.
func MatchRequired(metric string, required []string) (string, bool) {
	for _, base := range required {
		if MatchesRequired(metric, base) {
			return base, true
		}
	}
	return "", false
}
