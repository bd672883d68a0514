// Package features derives scoring feature vectors from raw CRM records.
// It decouples the scorer from the storage schema: the scorer only ever
// sees a LeadFeatures map.
package features

import (
	"fmt"
	"time"

	"leadscore/internal/database"
	"leadscore/internal/scoring"
)

// Extractor builds LeadFeatures from persisted lead data.
type Extractor struct {
	repo *database.Repository
}

// NewExtractor creates an extractor backed by the repository.
func NewExtractor(repo *database.Repository) *Extractor {
	return &Extractor{repo: repo}
}

// Extract fetches a lead's records and derives its feature vector. A
// missing lead is the caller's error; there is no partial result.
func (e *Extractor) Extract(leadID string) (scoring.LeadFeatures, error) {
	lead, err := e.repo.GetLead(leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead %s: %w", leadID, err)
	}

	counts, err := e.repo.CountInteractions(leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions for %s: %w", leadID, err)
	}

	tasks, err := e.repo.GetTaskStats(leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks for %s: %w", leadID, err)
	}

	return Derive(lead, counts, tasks, time.Now()), nil
}

// Derive maps raw records to a feature vector. Unknown attributes produce
// no entry at all: absence means "no signal", which the scorer excludes
// from weighting rather than treating as zero.
func Derive(lead *database.Lead, interactionCounts map[string]int, tasks *database.TaskStats, now time.Time) scoring.LeadFeatures {
	f := scoring.LeadFeatures{}

	if lead.LeadScore != nil {
		f[scoring.FeatureLeadScore] = *lead.LeadScore
	}

	f[scoring.FeatureDaysSinceCreated] = daysBetween(lead.CreatedAt, now)
	if lead.LastContactAt != nil {
		f[scoring.FeatureDaysSinceLastContact] = daysBetween(*lead.LastContactAt, now)
	}

	// Interaction counts are always present: the absence of records is a
	// real zero, not an unknown.
	f[scoring.FeatureEmailCount] = float64(interactionCounts[database.InteractionEmail])
	f[scoring.FeatureCallCount] = float64(interactionCounts[database.InteractionCall])
	f[scoring.FeatureMeetingCount] = float64(interactionCounts[database.InteractionMeeting])
	f[scoring.FeatureNoteCount] = float64(interactionCounts[database.InteractionNote])

	if tasks != nil {
		f[scoring.FeatureTaskCount] = float64(tasks.Total)
		if tasks.Total > 0 {
			f[scoring.FeatureTaskCompletionRate] = float64(tasks.Completed) / float64(tasks.Total)
		}
	}

	setFlag(f, scoring.FeatureHasBudget, lead.HasBudget)
	setFlag(f, scoring.FeatureHasAuthority, lead.HasAuthority)
	setFlag(f, scoring.FeatureHasNeed, lead.HasNeed)
	setFlag(f, scoring.FeatureHasTimeline, lead.HasTimeline)

	if lead.Status != "" {
		f["status_"+lead.Status] = 1
	}
	if lead.Source != "" {
		f["source_"+lead.Source] = 1
	}

	return f
}

func daysBetween(from, to time.Time) float64 {
	days := to.Sub(from).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

func setFlag(f scoring.LeadFeatures, name string, value *bool) {
	if value == nil {
		return
	}
	if *value {
		f[name] = 1
	} else {
		f[name] = 0
	}
}
