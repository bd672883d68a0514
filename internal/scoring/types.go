package scoring

import "time"

// LeadFeatures is the feature vector for one lead at scoring time.
// Presence is meaningful: a key that is absent contributes nothing to the
// weighted aggregation, while a present zero is a real signal.
type LeadFeatures map[string]float64

// Feature names understood by the normalizer and the factor rules. The
// model's importance table may reference additional features; those pass
// through the identity normalization.
const (
	FeatureLeadScore            = "lead_score"
	FeatureDaysSinceCreated     = "days_since_created"
	FeatureDaysSinceLastContact = "days_since_last_contact"
	FeatureEmailCount           = "email_count"
	FeatureCallCount            = "call_count"
	FeatureMeetingCount         = "meeting_count"
	FeatureNoteCount            = "note_count"
	FeatureTaskCount            = "task_count"
	FeatureTaskCompletionRate   = "task_completion_rate"
	FeatureHasBudget            = "has_budget"
	FeatureHasAuthority         = "has_authority"
	FeatureHasNeed              = "has_need"
	FeatureHasTimeline          = "has_timeline"
)

// FeatureImportance pairs a feature name with its scoring weight.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ModelMetadata describes a scoring model. Metrics are informational only;
// FeatureImportance is the weight table consumed by Score.
type ModelMetadata struct {
	ID                string              `json:"id"`
	Version           string              `json:"version"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Metrics           map[string]float64  `json:"metrics"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
}

// ScoreFactor is a labeled signed impact shown alongside a prediction.
// Factors are display-only and never feed back into the probability.
type ScoreFactor struct {
	Factor      string  `json:"factor"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// Priority orders recommendations: high before medium before low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Recommendation is a prioritized next action for a lead.
type Recommendation struct {
	Text     string   `json:"text"`
	Priority Priority `json:"priority"`
}

// Prediction is the output of one scoring call. It is created fresh on
// every call and never mutated afterwards.
type Prediction struct {
	ID              string           `json:"id"`
	LeadID          string           `json:"lead_id"`
	ModelID         string           `json:"model_id"`
	ModelVersion    string           `json:"model_version"`
	Probability     float64          `json:"conversion_probability"`
	ExpectedDays    int              `json:"expected_conversion_time"`
	Factors         []ScoreFactor    `json:"score_factors"`
	Recommendations []Recommendation `json:"recommendations"`
	Confidence      float64          `json:"confidence"`
	CreatedAt       time.Time        `json:"created_at"`
}
