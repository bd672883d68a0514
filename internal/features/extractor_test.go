package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"leadscore/internal/database"
	"leadscore/internal/scoring"
)

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func TestDeriveFullLead(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	lastContact := now.Add(-3 * 24 * time.Hour)

	lead := &database.Lead{
		ID:            "lead-1",
		Name:          "Acme contact",
		Status:        "qualified",
		Source:        "referral",
		LeadScore:     floatPtr(7),
		HasBudget:     boolPtr(true),
		HasAuthority:  boolPtr(false),
		HasNeed:       boolPtr(true),
		LastContactAt: &lastContact,
		CreatedAt:     now.Add(-20 * 24 * time.Hour),
	}
	counts := map[string]int{
		database.InteractionEmail:   4,
		database.InteractionMeeting: 2,
	}
	tasks := &database.TaskStats{Total: 5, Completed: 4}

	f := Derive(lead, counts, tasks, now)

	assert.Equal(t, 7.0, f[scoring.FeatureLeadScore])
	assert.InDelta(t, 3.0, f[scoring.FeatureDaysSinceLastContact], 1e-9)
	assert.InDelta(t, 20.0, f[scoring.FeatureDaysSinceCreated], 1e-9)
	assert.Equal(t, 4.0, f[scoring.FeatureEmailCount])
	assert.Equal(t, 2.0, f[scoring.FeatureMeetingCount])
	assert.Equal(t, 0.0, f[scoring.FeatureCallCount])
	assert.Equal(t, 5.0, f[scoring.FeatureTaskCount])
	assert.InDelta(t, 0.8, f[scoring.FeatureTaskCompletionRate], 1e-9)
	assert.Equal(t, 1.0, f[scoring.FeatureHasBudget])
	assert.Equal(t, 0.0, f[scoring.FeatureHasAuthority])
	assert.Equal(t, 1.0, f[scoring.FeatureHasNeed])
	assert.Equal(t, 1.0, f["status_qualified"])
	assert.Equal(t, 1.0, f["source_referral"])
}

func TestDeriveAbsenceSemantics(t *testing.T) {
	now := time.Now()
	lead := &database.Lead{
		ID:        "lead-2",
		Name:      "Sparse lead",
		Status:    "new",
		CreatedAt: now,
	}

	f := Derive(lead, map[string]int{}, &database.TaskStats{}, now)

	// Unknown attributes never appear: nil BANT flags, nil lead score, no
	// recorded contact, and no tasks means no completion rate.
	_, hasScore := f[scoring.FeatureLeadScore]
	_, hasContact := f[scoring.FeatureDaysSinceLastContact]
	_, hasBudget := f[scoring.FeatureHasBudget]
	_, hasTimeline := f[scoring.FeatureHasTimeline]
	_, hasRate := f[scoring.FeatureTaskCompletionRate]
	assert.False(t, hasScore)
	assert.False(t, hasContact)
	assert.False(t, hasBudget)
	assert.False(t, hasTimeline)
	assert.False(t, hasRate)

	// Interaction counts are present zeros.
	assert.Equal(t, 0.0, f[scoring.FeatureEmailCount])
	assert.Equal(t, 0.0, f[scoring.FeatureMeetingCount])
}

func TestDeriveClampsFutureTimestamps(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	lead := &database.Lead{
		ID:            "lead-3",
		Name:          "Clock skew",
		Status:        "new",
		LastContactAt: &future,
		CreatedAt:     future,
	}

	f := Derive(lead, map[string]int{}, nil, now)

	assert.Equal(t, 0.0, f[scoring.FeatureDaysSinceLastContact])
	assert.Equal(t, 0.0, f[scoring.FeatureDaysSinceCreated])
}
