package scoring

import (
	"math"
	"sort"
)

// deriveFactors inspects specific features and emits labeled signed impacts
// with display text. Each rule fires only when its triggering feature is
// present; the BANT rule additionally needs at least one truthy flag.
// The returned list is sorted by descending absolute impact.
func deriveFactors(features LeadFeatures) []ScoreFactor {
	factors := make([]ScoreFactor, 0, 5)

	if days, ok := features[FeatureDaysSinceLastContact]; ok {
		switch {
		case days <= 7:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureDaysSinceLastContact,
				Impact:      0.2,
				Description: "Recent contact within the last week",
			})
		case days <= 14:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureDaysSinceLastContact,
				Impact:      0,
				Description: "Contact within the last two weeks",
			})
		default:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureDaysSinceLastContact,
				Impact:      -0.3,
				Description: "No contact in over two weeks",
			})
		}
	}

	if emails, ok := features[FeatureEmailCount]; ok {
		switch {
		case emails >= 5:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureEmailCount,
				Impact:      0.25,
				Description: "Strong email engagement",
			})
		case emails >= 2:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureEmailCount,
				Impact:      0.1,
				Description: "Moderate email engagement",
			})
		default:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureEmailCount,
				Impact:      -0.1,
				Description: "Low email engagement",
			})
		}
	}

	if meetings, ok := features[FeatureMeetingCount]; ok {
		switch {
		case meetings >= 2:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureMeetingCount,
				Impact:      0.3,
				Description: "Multiple meetings held",
			})
		case meetings >= 1:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureMeetingCount,
				Impact:      0.15,
				Description: "Initial meeting held",
			})
		default:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureMeetingCount,
				Impact:      -0.2,
				Description: "No meetings scheduled yet",
			})
		}
	}

	if rate, ok := features[FeatureTaskCompletionRate]; ok {
		switch {
		case rate >= 0.8:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureTaskCompletionRate,
				Impact:      0.2,
				Description: "High task completion rate",
			})
		case rate >= 0.5:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureTaskCompletionRate,
				Impact:      0.1,
				Description: "Moderate task completion rate",
			})
		default:
			factors = append(factors, ScoreFactor{
				Factor:      FeatureTaskCompletionRate,
				Impact:      -0.1,
				Description: "Low task completion rate",
			})
		}
	}

	if count := bantCount(features); count >= 1 {
		switch {
		case count >= 3:
			factors = append(factors, ScoreFactor{
				Factor:      "bant_qualification",
				Impact:      0.4,
				Description: "Strongly qualified on BANT criteria",
			})
		case count >= 2:
			factors = append(factors, ScoreFactor{
				Factor:      "bant_qualification",
				Impact:      0.2,
				Description: "Partially qualified on BANT criteria",
			})
		default:
			factors = append(factors, ScoreFactor{
				Factor:      "bant_qualification",
				Impact:      0.1,
				Description: "Early BANT qualification signal",
			})
		}
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Impact) > math.Abs(factors[j].Impact)
	})

	return factors
}
