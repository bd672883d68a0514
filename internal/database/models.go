package database

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a prospective customer tracked through the pipeline. Pointer
// fields are optional attributes: nil means the signal is unknown, which the
// feature extractor treats as absent rather than zero.
type Lead struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Company       string     `json:"company,omitempty" db:"company"`
	Industry      string     `json:"industry,omitempty" db:"industry"`
	Status        string     `json:"status" db:"status"`
	Source        string     `json:"source,omitempty" db:"source"`
	LeadScore     *float64   `json:"lead_score,omitempty" db:"lead_score"`
	HasBudget     *bool      `json:"has_budget,omitempty" db:"has_budget"`
	HasAuthority  *bool      `json:"has_authority,omitempty" db:"has_authority"`
	HasNeed       *bool      `json:"has_need,omitempty" db:"has_need"`
	HasTimeline   *bool      `json:"has_timeline,omitempty" db:"has_timeline"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty" db:"last_contact_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Interaction kinds recorded against a lead.
const (
	InteractionEmail   = "email"
	InteractionCall    = "call"
	InteractionMeeting = "meeting"
	InteractionNote    = "note"
)

// Interaction is one recorded touchpoint with a lead.
type Interaction struct {
	ID         string    `json:"id" db:"id"`
	LeadID     string    `json:"lead_id" db:"lead_id"`
	Kind       string    `json:"kind" db:"kind"`
	Subject    string    `json:"subject,omitempty" db:"subject"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Task is a follow-up item attached to a lead.
type Task struct {
	ID        string     `json:"id" db:"id"`
	LeadID    string     `json:"lead_id" db:"lead_id"`
	Title     string     `json:"title" db:"title"`
	Completed bool       `json:"completed" db:"completed"`
	DueAt     *time.Time `json:"due_at,omitempty" db:"due_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskStats aggregates a lead's task counts for feature extraction.
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// TrainingJobStatus values. Transitions are monotonic: pending -> running ->
// completed or failed; a job is never reopened.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// TrainingJob tracks one simulated training run.
type TrainingJob struct {
	ID          string     `json:"id" db:"id"`
	Status      string     `json:"status" db:"status"`
	Progress    int        `json:"progress" db:"progress"`
	Error       string     `json:"error,omitempty" db:"error"`
	ModelID     string     `json:"model_id,omitempty" db:"model_id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// AISettings holds the admin toggles for the scoring features and the
// active model selection. Singleton row.
type AISettings struct {
	ScoringEnabled         bool      `json:"scoring_enabled"`
	RecommendationsEnabled bool      `json:"recommendations_enabled"`
	AutoRetrain            bool      `json:"auto_retrain"`
	ActiveModelID          string    `json:"active_model_id,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewLead creates a lead with a generated id.
func NewLead(name, company, industry, status, source string) *Lead {
	now := time.Now()
	if status == "" {
		status = "new"
	}
	return &Lead{
		ID:        uuid.New().String(),
		Name:      name,
		Company:   company,
		Industry:  industry,
		Status:    status,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewInteraction creates an interaction with a generated id.
func NewInteraction(leadID, kind, subject string, occurredAt time.Time) *Interaction {
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return &Interaction{
		ID:         uuid.New().String(),
		LeadID:     leadID,
		Kind:       kind,
		Subject:    subject,
		OccurredAt: occurredAt,
		CreatedAt:  time.Now(),
	}
}

// NewTask creates a task with a generated id.
func NewTask(leadID, title string, dueAt *time.Time) *Task {
	now := time.Now()
	return &Task{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Title:     title,
		DueAt:     dueAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTrainingJob creates a pending job with a generated id.
func NewTrainingJob() *TrainingJob {
	now := time.Now()
	return &TrainingJob{
		ID:        uuid.New().String(),
		Status:    JobPending,
		Progress:  0,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
