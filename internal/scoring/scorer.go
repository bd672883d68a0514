package scoring

import (
	"time"

	"github.com/google/uuid"
)

// fixedConfidence is reported on every prediction. The heuristic carries no
// calibrated uncertainty, so confidence is a constant.
const fixedConfidence = 0.8

// Score maps a lead's feature vector and a model's importance table to a
// Prediction. It is pure and deterministic apart from the generated
// prediction id and timestamp; batch callers may invoke it concurrently.
//
// The aggregation starts from a 0.5 prior, accumulates
// normalized(value) * importance over the features present in the input,
// then divides the whole sum (prior included) by the accumulated weight.
// Dividing the already-biased sum is intentional behavioral parity with the
// original scoring rule, not a textbook normalization.
func Score(leadID string, features LeadFeatures, model ModelMetadata) Prediction {
	probability := 0.5
	totalWeight := 0.0

	for _, fi := range model.FeatureImportance {
		value, ok := features[fi.Feature]
		if !ok {
			// Missing signals are excluded, not penalized.
			continue
		}
		probability += normalizeFeature(fi.Feature, value) * fi.Importance
		totalWeight += fi.Importance
	}

	if totalWeight > 0 {
		probability = probability / totalWeight
	}
	probability = clamp(probability, 0, 1)

	return Prediction{
		ID:              uuid.New().String(),
		LeadID:          leadID,
		ModelID:         model.ID,
		ModelVersion:    model.Version,
		Probability:     probability,
		ExpectedDays:    estimateConversionDays(probability, features),
		Factors:         deriveFactors(features),
		Recommendations: buildRecommendations(probability, features),
		Confidence:      fixedConfidence,
		CreatedAt:       time.Now(),
	}
}

// normalizeFeature maps a raw feature value into [0,1].
func normalizeFeature(feature string, value float64) float64 {
	switch feature {
	case FeatureDaysSinceLastContact:
		// Recency decays linearly to zero at 30+ days.
		return max(0, 1-value/30)
	case FeatureEmailCount, FeatureCallCount, FeatureMeetingCount, FeatureNoteCount:
		// Interaction counts saturate at 10.
		return min(1, value/10)
	case FeatureLeadScore:
		return value / 10
	default:
		// Rates and binary flags are already on a unit scale.
		return value
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// bantCount counts the truthy BANT qualification flags present in the input.
func bantCount(features LeadFeatures) int {
	count := 0
	for _, f := range []string{FeatureHasBudget, FeatureHasAuthority, FeatureHasNeed, FeatureHasTimeline} {
		if v, ok := features[f]; ok && v > 0 {
			count++
		}
	}
	return count
}
