package scoring

import "sort"

// maxRecommendations caps the list returned with a prediction.
const maxRecommendations = 5

// buildRecommendations concatenates the probability-tier actions with the
// feature-triggered actions, sorts by priority (high first) and truncates
// to maxRecommendations. The sort is stable, so within a priority the tier
// actions keep their rule order.
func buildRecommendations(probability float64, features LeadFeatures) []Recommendation {
	recs := make([]Recommendation, 0, 8)

	switch {
	case probability < 0.3:
		recs = append(recs,
			Recommendation{Text: "Qualify lead interest level with discovery call", Priority: PriorityHigh},
			Recommendation{Text: "Add to nurture campaign for long-term engagement", Priority: PriorityMedium},
		)
	case probability < 0.7:
		recs = append(recs,
			Recommendation{Text: "Schedule product demonstration", Priority: PriorityHigh},
			Recommendation{Text: "Share relevant case studies", Priority: PriorityMedium},
		)
	default:
		recs = append(recs,
			Recommendation{Text: "Prepare and send proposal", Priority: PriorityHigh},
			Recommendation{Text: "Identify and engage decision makers", Priority: PriorityHigh},
		)
	}

	if days, ok := features[FeatureDaysSinceLastContact]; ok && days > 7 {
		recs = append(recs, Recommendation{
			Text:     "Re-engage now - contact is going stale",
			Priority: PriorityHigh,
		})
	}

	if emails, ok := features[FeatureEmailCount]; ok && emails < 2 {
		recs = append(recs, Recommendation{
			Text:     "Increase email engagement with valuable content",
			Priority: PriorityMedium,
		})
	}

	if meetings, ok := features[FeatureMeetingCount]; ok && meetings == 0 {
		priority := PriorityMedium
		if age, ok := features[FeatureDaysSinceCreated]; ok && age > 14 {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Text:     "Schedule an introductory meeting",
			Priority: priority,
		})
	}

	recs = append(recs, bantGapRecommendations(probability, features)...)

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.rank() < recs[j].Priority.rank()
	})

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// bantGapRecommendations emits one action per missing BANT flag. Budget and
// authority gaps escalate at different probability cutoffs than need and
// timeline: the closer a deal looks, the more urgent the commercial gaps
// become, while an unconfirmed need matters most for low-probability leads.
func bantGapRecommendations(probability float64, features LeadFeatures) []Recommendation {
	recs := make([]Recommendation, 0, 4)

	if v, ok := features[FeatureHasBudget]; ok && v == 0 {
		priority := PriorityMedium
		if probability >= 0.5 {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{Text: "Confirm budget availability", Priority: priority})
	}

	if v, ok := features[FeatureHasAuthority]; ok && v == 0 {
		priority := PriorityMedium
		if probability >= 0.6 {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{Text: "Identify the decision maker", Priority: priority})
	}

	if v, ok := features[FeatureHasNeed]; ok && v == 0 {
		priority := PriorityMedium
		if probability < 0.4 {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{Text: "Conduct a needs assessment", Priority: priority})
	}

	if v, ok := features[FeatureHasTimeline]; ok && v == 0 {
		priority := PriorityLow
		if probability > 0.3 {
			priority = PriorityMedium
		}
		recs = append(recs, Recommendation{Text: "Establish a purchase timeline", Priority: priority})
	}

	return recs
}
