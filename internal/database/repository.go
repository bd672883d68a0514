package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadscore/internal/scoring"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository handles database operations.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateLead inserts a new lead.
func (r *Repository) CreateLead(lead *Lead) error {
	_, err := r.db.Exec(`
		INSERT INTO leads (id, name, company, industry, status, source, lead_score,
			has_budget, has_authority, has_need, has_timeline, last_contact_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.ID, lead.Name, lead.Company, lead.Industry, lead.Status, lead.Source,
		lead.LeadScore, lead.HasBudget, lead.HasAuthority, lead.HasNeed,
		lead.HasTimeline, lead.LastContactAt, lead.CreatedAt, lead.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

// GetLead fetches one lead by id.
func (r *Repository) GetLead(id string) (*Lead, error) {
	stmt, err := r.db.GetPreparedStatement("get_lead")
	if err != nil {
		return nil, err
	}

	var lead Lead
	var company, industry, source sql.NullString
	err = stmt.QueryRow(id).Scan(
		&lead.ID, &lead.Name, &company, &industry, &lead.Status, &source,
		&lead.LeadScore, &lead.HasBudget, &lead.HasAuthority, &lead.HasNeed,
		&lead.HasTimeline, &lead.LastContactAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lead: %w", err)
	}

	lead.Company = company.String
	lead.Industry = industry.String
	lead.Source = source.String
	return &lead, nil
}

// UpdateLeadQualification updates the BANT flags and lead score.
func (r *Repository) UpdateLeadQualification(id string, leadScore *float64, budget, authority, need, timeline *bool) error {
	res, err := r.db.Exec(`
		UPDATE leads SET lead_score = COALESCE(?, lead_score),
			has_budget = COALESCE(?, has_budget),
			has_authority = COALESCE(?, has_authority),
			has_need = COALESCE(?, has_need),
			has_timeline = COALESCE(?, has_timeline),
			updated_at = ?
		WHERE id = ?
	`, leadScore, budget, authority, need, timeline, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead qualification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddInteraction records a touchpoint and advances the lead's last contact
// time when the interaction is newer.
func (r *Repository) AddInteraction(interaction *Interaction) error {
	stmt, err := r.db.GetPreparedStatement("insert_interaction")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(interaction.ID, interaction.LeadID, interaction.Kind,
		interaction.Subject, interaction.OccurredAt, interaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE leads SET last_contact_at = ?, updated_at = ?
		WHERE id = ? AND (last_contact_at IS NULL OR last_contact_at < ?)
	`, interaction.OccurredAt, time.Now(), interaction.LeadID, interaction.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to update last contact: %w", err)
	}
	return nil
}

// CountInteractions returns per-kind interaction counts for a lead.
func (r *Repository) CountInteractions(leadID string) (map[string]int, error) {
	stmt, err := r.db.GetPreparedStatement("count_interactions")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan interaction count: %w", err)
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// AddTask inserts a task.
func (r *Repository) AddTask(task *Task) error {
	_, err := r.db.Exec(`
		INSERT INTO tasks (id, lead_id, title, completed, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.LeadID, task.Title, task.Completed, task.DueAt, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// SetTaskCompleted marks a task done or not done.
func (r *Repository) SetTaskCompleted(taskID string, completed bool) error {
	res, err := r.db.Exec(`
		UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?
	`, completed, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTaskStats returns total and completed task counts for a lead.
func (r *Repository) GetTaskStats(leadID string) (*TaskStats, error) {
	stmt, err := r.db.GetPreparedStatement("task_stats")
	if err != nil {
		return nil, err
	}

	var stats TaskStats
	if err := stmt.QueryRow(leadID).Scan(&stats.Total, &stats.Completed); err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}
	return &stats, nil
}

// InsertPrediction appends a prediction record. Predictions are never
// updated or deleted.
func (r *Repository) InsertPrediction(p *scoring.Prediction) error {
	stmt, err := r.db.GetPreparedStatement("insert_prediction")
	if err != nil {
		return err
	}

	factors, err := json.Marshal(p.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	recs, err := json.Marshal(p.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	_, err = stmt.Exec(p.ID, p.LeadID, p.ModelID, p.ModelVersion, p.Probability,
		p.ExpectedDays, string(factors), string(recs), p.Confidence, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// ListPredictions returns a lead's prediction history, newest first.
func (r *Repository) ListPredictions(leadID string, limit int) ([]scoring.Prediction, error) {
	stmt, err := r.db.GetPreparedStatement("get_predictions")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := make([]scoring.Prediction, 0)
	for rows.Next() {
		var p scoring.Prediction
		var factors, recs string
		if err := rows.Scan(&p.ID, &p.LeadID, &p.ModelID, &p.ModelVersion,
			&p.Probability, &p.ExpectedDays, &factors, &recs, &p.Confidence,
			&p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if err := json.Unmarshal([]byte(factors), &p.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
		}
		if err := json.Unmarshal([]byte(recs), &p.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// InsertModel stores model metadata. When active is true, all other models
// are deactivated in the same transaction.
func (r *Repository) InsertModel(m *scoring.ModelMetadata, active bool) error {
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	importance, err := json.Marshal(m.FeatureImportance)
	if err != nil {
		return fmt.Errorf("failed to marshal feature importance: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if active {
		if _, err := tx.Exec(`UPDATE models SET is_active = 0, updated_at = ?`, time.Now()); err != nil {
			return fmt.Errorf("failed to deactivate models: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO models (id, version, metrics, feature_importance, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Version, string(metrics), string(importance), active, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}

	return tx.Commit()
}

// GetActiveModel returns the active model metadata, or ErrNotFound when no
// trained model exists (callers fall back to scoring.DefaultModel).
func (r *Repository) GetActiveModel() (*scoring.ModelMetadata, error) {
	row := r.db.QueryRow(`
		SELECT id, version, metrics, feature_importance, created_at, updated_at
		FROM models WHERE is_active = 1 ORDER BY created_at DESC LIMIT 1
	`)
	return scanModel(row)
}

// GetModel returns one model by id.
func (r *Repository) GetModel(id string) (*scoring.ModelMetadata, error) {
	row := r.db.QueryRow(`
		SELECT id, version, metrics, feature_importance, created_at, updated_at
		FROM models WHERE id = ?
	`, id)
	return scanModel(row)
}

func scanModel(row *sql.Row) (*scoring.ModelMetadata, error) {
	var m scoring.ModelMetadata
	var metrics, importance string
	err := row.Scan(&m.ID, &m.Version, &metrics, &importance, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan model: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &m.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(importance), &m.FeatureImportance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature importance: %w", err)
	}
	return &m, nil
}

// ListModels returns all stored models, newest first.
func (r *Repository) ListModels() ([]scoring.ModelMetadata, error) {
	rows, err := r.db.Query(`
		SELECT id, version, metrics, feature_importance, created_at, updated_at
		FROM models ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	models := make([]scoring.ModelMetadata, 0)
	for rows.Next() {
		var m scoring.ModelMetadata
		var metrics, importance string
		if err := rows.Scan(&m.ID, &m.Version, &metrics, &importance, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &m.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
		if err := json.Unmarshal([]byte(importance), &m.FeatureImportance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feature importance: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CreateTrainingJob inserts a pending job.
func (r *Repository) CreateTrainingJob(job *TrainingJob) error {
	_, err := r.db.Exec(`
		INSERT INTO training_jobs (id, status, progress, error, model_id, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Status, job.Progress, job.Error, job.ModelID, job.StartedAt,
		job.CompletedAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create training job: %w", err)
	}
	return nil
}

// UpdateTrainingJob persists a job's current status and progress.
func (r *Repository) UpdateTrainingJob(job *TrainingJob) error {
	job.UpdatedAt = time.Now()
	res, err := r.db.Exec(`
		UPDATE training_jobs SET status = ?, progress = ?, error = ?, model_id = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?
	`, job.Status, job.Progress, job.Error, job.ModelID, job.CompletedAt,
		job.UpdatedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update training job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTrainingJob fetches one job by id.
func (r *Repository) GetTrainingJob(id string) (*TrainingJob, error) {
	var job TrainingJob
	var jobErr, modelID sql.NullString
	err := r.db.QueryRow(`
		SELECT id, status, progress, error, model_id, started_at, completed_at, created_at, updated_at
		FROM training_jobs WHERE id = ?
	`, id).Scan(&job.ID, &job.Status, &job.Progress, &jobErr, &modelID,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query training job: %w", err)
	}
	job.Error = jobErr.String
	job.ModelID = modelID.String
	return &job, nil
}

// ListTrainingJobs returns all jobs, newest first.
func (r *Repository) ListTrainingJobs() ([]TrainingJob, error) {
	rows, err := r.db.Query(`
		SELECT id, status, progress, error, model_id, started_at, completed_at, created_at, updated_at
		FROM training_jobs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]TrainingJob, 0)
	for rows.Next() {
		var job TrainingJob
		var jobErr, modelID sql.NullString
		if err := rows.Scan(&job.ID, &job.Status, &job.Progress, &jobErr, &modelID,
			&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training job: %w", err)
		}
		job.Error = jobErr.String
		job.ModelID = modelID.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FailStaleTrainingJobs marks jobs stuck in pending or running longer than
// maxAge as failed. Returns the number of jobs failed.
func (r *Repository) FailStaleTrainingJobs(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	now := time.Now()
	res, err := r.db.Exec(`
		UPDATE training_jobs
		SET status = ?, error = 'training job timed out', completed_at = ?, updated_at = ?
		WHERE status IN (?, ?) AND updated_at < ?
	`, JobFailed, now, now, JobPending, JobRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// GetAISettings returns the singleton settings row, creating defaults on
// first read.
func (r *Repository) GetAISettings() (*AISettings, error) {
	var s AISettings
	var activeModel sql.NullString
	err := r.db.QueryRow(`
		SELECT scoring_enabled, recommendations_enabled, auto_retrain, active_model_id, updated_at
		FROM ai_settings WHERE id = 1
	`).Scan(&s.ScoringEnabled, &s.RecommendationsEnabled, &s.AutoRetrain, &activeModel, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		defaults := &AISettings{
			ScoringEnabled:         true,
			RecommendationsEnabled: true,
			UpdatedAt:              time.Now(),
		}
		if err := r.UpdateAISettings(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ai settings: %w", err)
	}
	s.ActiveModelID = activeModel.String
	return &s, nil
}

// UpdateAISettings upserts the singleton settings row.
func (r *Repository) UpdateAISettings(s *AISettings) error {
	s.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO ai_settings (id, scoring_enabled, recommendations_enabled, auto_retrain, active_model_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scoring_enabled = excluded.scoring_enabled,
			recommendations_enabled = excluded.recommendations_enabled,
			auto_retrain = excluded.auto_retrain,
			active_model_id = excluded.active_model_id,
			updated_at = excluded.updated_at
	`, s.ScoringEnabled, s.RecommendationsEnabled, s.AutoRetrain,
		nullableString(s.ActiveModelID), s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update ai settings: %w", err)
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
