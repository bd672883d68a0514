package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFeature(t *testing.T) {
	tests := []struct {
		name     string
		feature  string
		value    float64
		expected float64
	}{
		{
			name:     "recency decays linearly",
			feature:  FeatureDaysSinceLastContact,
			value:    15,
			expected: 0.5,
		},
		{
			name:     "recency floors at zero past 30 days",
			feature:  FeatureDaysSinceLastContact,
			value:    45,
			expected: 0,
		},
		{
			name:     "recency is full for same-day contact",
			feature:  FeatureDaysSinceLastContact,
			value:    0,
			expected: 1,
		},
		{
			name:     "email count scales by ten",
			feature:  FeatureEmailCount,
			value:    6,
			expected: 0.6,
		},
		{
			name:     "meeting count saturates at ten",
			feature:  FeatureMeetingCount,
			value:    25,
			expected: 1,
		},
		{
			name:     "task completion rate passes through",
			feature:  FeatureTaskCompletionRate,
			value:    0.9,
			expected: 0.9,
		},
		{
			name:     "lead score uses the 0-10 source scale",
			feature:  FeatureLeadScore,
			value:    7,
			expected: 0.7,
		},
		{
			name:     "binary flags pass through",
			feature:  FeatureHasBudget,
			value:    1,
			expected: 1,
		},
		{
			name:     "unknown features pass through",
			feature:  "status_negotiation",
			value:    1,
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, normalizeFeature(tt.feature, tt.value), 1e-12)
		})
	}
}

func TestScoreEmptyFeatures(t *testing.T) {
	pred := Score("lead-1", LeadFeatures{}, DefaultModel())

	// No present features means no rescale: the neutral prior survives.
	assert.Equal(t, 0.5, pred.Probability)
	assert.Empty(t, pred.Factors)
	assert.Equal(t, fixedConfidence, pred.Confidence)
	assert.Equal(t, "lead-1", pred.LeadID)
	assert.Equal(t, "default", pred.ModelID)
	assert.Equal(t, "1.0.0", pred.ModelVersion)
	assert.NotEmpty(t, pred.ID)
}

func TestScoreStaleOnlyFeature(t *testing.T) {
	// 45 days since contact normalizes to 0 but still consumes the feature's
	// importance in the total weight, dragging the prior down.
	features := LeadFeatures{FeatureDaysSinceLastContact: 45}
	pred := Score("lead-2", features, DefaultModel())

	assert.Less(t, pred.Probability, 0.5)
	assert.InDelta(t, 0.5/1.5, pred.Probability, 1e-9)
}

func TestScoreEngagedLead(t *testing.T) {
	features := LeadFeatures{
		FeatureDaysSinceLastContact: 3,
		FeatureEmailCount:           6,
		FeatureMeetingCount:         2,
		FeatureTaskCompletionRate:   0.9,
		FeatureHasBudget:            1,
		FeatureHasAuthority:         1,
		FeatureHasNeed:              1,
	}
	pred := Score("lead-3", features, DefaultModel())

	assert.Greater(t, pred.Probability, 0.5)
	require.GreaterOrEqual(t, len(pred.Factors), 4)

	var bant *ScoreFactor
	for i := range pred.Factors {
		if pred.Factors[i].Factor == "bant_qualification" {
			bant = &pred.Factors[i]
		}
	}
	require.NotNil(t, bant, "expected a BANT qualification factor")
	assert.InDelta(t, 0.4, bant.Impact, 1e-12)
}

func TestScoreClampInvariant(t *testing.T) {
	tests := []struct {
		name     string
		features LeadFeatures
	}{
		{
			name:     "extreme positive values",
			features: LeadFeatures{FeatureEmailCount: 1000, FeatureMeetingCount: 500, FeatureLeadScore: 10},
		},
		{
			name:     "negative values",
			features: LeadFeatures{FeatureDaysSinceLastContact: -10, FeatureEmailCount: -5},
		},
		{
			name:     "all zeros present",
			features: LeadFeatures{FeatureEmailCount: 0, FeatureCallCount: 0, FeatureMeetingCount: 0, FeatureNoteCount: 0},
		},
		{
			name: "every known feature at a high value",
			features: LeadFeatures{
				FeatureLeadScore:            10,
				FeatureDaysSinceLastContact: 0,
				FeatureEmailCount:           20,
				FeatureCallCount:            20,
				FeatureMeetingCount:         20,
				FeatureNoteCount:            20,
				FeatureTaskCount:            20,
				FeatureTaskCompletionRate:   1,
				FeatureHasBudget:            1,
				FeatureHasAuthority:         1,
				FeatureHasNeed:              1,
				FeatureHasTimeline:          1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := Score("lead", tt.features, DefaultModel())
			assert.GreaterOrEqual(t, pred.Probability, 0.0)
			assert.LessOrEqual(t, pred.Probability, 1.0)
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	features := LeadFeatures{
		FeatureDaysSinceLastContact: 5,
		FeatureEmailCount:           3,
		FeatureMeetingCount:         1,
		FeatureHasBudget:            1,
	}
	model := DefaultModel()

	first := Score("lead-4", features, model)
	second := Score("lead-4", features, model)

	// Only the prediction id and timestamp may differ between calls.
	assert.Equal(t, first.Probability, second.Probability)
	assert.Equal(t, first.ExpectedDays, second.ExpectedDays)
	assert.Equal(t, first.Factors, second.Factors)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScoreUsesModelOrder(t *testing.T) {
	// A model whose table omits a feature ignores that feature entirely.
	model := ModelMetadata{
		ID:      "custom",
		Version: "2.0.0",
		FeatureImportance: []FeatureImportance{
			{Feature: FeatureEmailCount, Importance: 2.0},
		},
	}
	features := LeadFeatures{
		FeatureEmailCount:   5,
		FeatureMeetingCount: 10, // not in the model's table
	}

	pred := Score("lead-5", features, model)
	assert.InDelta(t, (0.5+0.5*2.0)/2.0, pred.Probability, 1e-9)
	assert.Equal(t, "custom", pred.ModelID)
	assert.Equal(t, "2.0.0", pred.ModelVersion)
}

func TestScorePresentZeroIsASignal(t *testing.T) {
	withZero := Score("lead", LeadFeatures{FeatureEmailCount: 0}, DefaultModel())
	absent := Score("lead", LeadFeatures{}, DefaultModel())

	// A present zero consumes weight and pulls the probability below the
	// prior, unlike an absent field.
	assert.Less(t, withZero.Probability, absent.Probability)
}
