package scoring

import "math"

// estimateConversionDays returns the expected days to conversion: a base by
// probability bracket, multiplicatively discounted by engagement signals.
// The two BANT discounts are mutually exclusive brackets.
func estimateConversionDays(probability float64, features LeadFeatures) int {
	var days float64
	switch {
	case probability >= 0.8:
		days = 14
	case probability >= 0.6:
		days = 30
	case probability >= 0.4:
		days = 60
	default:
		days = 90
	}

	if meetings, ok := features[FeatureMeetingCount]; ok && meetings > 0 {
		days *= 0.8
	}
	if rate, ok := features[FeatureTaskCompletionRate]; ok && rate > 0.7 {
		days *= 0.9
	}

	switch count := bantCount(features); {
	case count >= 3:
		days *= 0.7
	case count >= 2:
		days *= 0.85
	}

	return int(math.Round(days))
}
