package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscore/internal/scoring"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestLeadRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	score := 7.5
	budget := true
	lead := NewLead("Jordan Reyes", "Acme Corp", "manufacturing", "qualified", "referral")
	lead.LeadScore = &score
	lead.HasBudget = &budget

	require.NoError(t, repo.CreateLead(lead))

	got, err := repo.GetLead(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", got.Name)
	assert.Equal(t, "Acme Corp", got.Company)
	assert.Equal(t, "qualified", got.Status)
	assert.Equal(t, "referral", got.Source)
	require.NotNil(t, got.LeadScore)
	assert.Equal(t, 7.5, *got.LeadScore)
	require.NotNil(t, got.HasBudget)
	assert.True(t, *got.HasBudget)
	assert.Nil(t, got.HasAuthority)
	assert.Nil(t, got.LastContactAt)
}

func TestGetLeadNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetLead("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLeadQualification(t *testing.T) {
	repo := newTestRepository(t)

	lead := NewLead("Sam", "", "", "new", "")
	require.NoError(t, repo.CreateLead(lead))

	need := true
	score := 6.0
	require.NoError(t, repo.UpdateLeadQualification(lead.ID, &score, nil, nil, &need, nil))

	got, err := repo.GetLead(lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LeadScore)
	assert.Equal(t, 6.0, *got.LeadScore)
	require.NotNil(t, got.HasNeed)
	assert.True(t, *got.HasNeed)
	assert.Nil(t, got.HasBudget)

	assert.ErrorIs(t, repo.UpdateLeadQualification("missing", nil, nil, nil, nil, nil), ErrNotFound)
}

func TestInteractionsAdvanceLastContact(t *testing.T) {
	repo := newTestRepository(t)

	lead := NewLead("Taylor", "", "", "contacted", "website")
	require.NoError(t, repo.CreateLead(lead))

	first := time.Now().Add(-48 * time.Hour)
	second := time.Now().Add(-2 * time.Hour)

	require.NoError(t, repo.AddInteraction(NewInteraction(lead.ID, InteractionEmail, "intro", first)))
	require.NoError(t, repo.AddInteraction(NewInteraction(lead.ID, InteractionMeeting, "demo", second)))
	// An older interaction must not move last contact backwards.
	require.NoError(t, repo.AddInteraction(NewInteraction(lead.ID, InteractionCall, "voicemail", first)))

	got, err := repo.GetLead(lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContactAt)
	assert.WithinDuration(t, second, *got.LastContactAt, time.Second)

	counts, err := repo.CountInteractions(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[InteractionEmail])
	assert.Equal(t, 1, counts[InteractionMeeting])
	assert.Equal(t, 1, counts[InteractionCall])
	assert.Equal(t, 0, counts[InteractionNote])
}

func TestTaskStats(t *testing.T) {
	repo := newTestRepository(t)

	lead := NewLead("Morgan", "", "", "new", "")
	require.NoError(t, repo.CreateLead(lead))

	taskA := NewTask(lead.ID, "Send pricing", nil)
	taskB := NewTask(lead.ID, "Book demo", nil)
	require.NoError(t, repo.AddTask(taskA))
	require.NoError(t, repo.AddTask(taskB))
	require.NoError(t, repo.SetTaskCompleted(taskA.ID, true))

	stats, err := repo.GetTaskStats(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)

	assert.ErrorIs(t, repo.SetTaskCompleted("missing", true), ErrNotFound)
}

func TestPredictionsAppendOnly(t *testing.T) {
	repo := newTestRepository(t)

	lead := NewLead("Casey", "", "", "proposal", "email")
	require.NoError(t, repo.CreateLead(lead))

	first := scoring.Score(lead.ID, scoring.LeadFeatures{scoring.FeatureEmailCount: 5}, scoring.DefaultModel())
	second := scoring.Score(lead.ID, scoring.LeadFeatures{scoring.FeatureEmailCount: 6}, scoring.DefaultModel())
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.NoError(t, repo.InsertPrediction(&first))
	require.NoError(t, repo.InsertPrediction(&second))

	history, err := repo.ListPredictions(lead.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first, full factor and recommendation payloads intact.
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
	assert.Equal(t, first.Probability, history[1].Probability)
	assert.Equal(t, first.Factors, history[1].Factors)
	assert.Equal(t, first.Recommendations, history[1].Recommendations)
}

func TestModelActivation(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetActiveModel()
	assert.ErrorIs(t, err, ErrNotFound)

	first := scoring.DefaultModel()
	first.ID = "model-a"
	require.NoError(t, repo.InsertModel(&first, true))

	second := scoring.DefaultModel()
	second.ID = "model-b"
	second.Version = "1.1.0"
	require.NoError(t, repo.InsertModel(&second, true))

	active, err := repo.GetActiveModel()
	require.NoError(t, err)
	assert.Equal(t, "model-b", active.ID)
	assert.Equal(t, "1.1.0", active.Version)
	assert.Equal(t, first.FeatureImportance, active.FeatureImportance)

	models, err := repo.ListModels()
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestTrainingJobLifecycle(t *testing.T) {
	repo := newTestRepository(t)

	job := NewTrainingJob()
	require.NoError(t, repo.CreateTrainingJob(job))

	job.Status = JobRunning
	job.Progress = 40
	require.NoError(t, repo.UpdateTrainingJob(job))

	got, err := repo.GetTrainingJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobRunning, got.Status)
	assert.Equal(t, 40, got.Progress)
	assert.Nil(t, got.CompletedAt)

	now := time.Now()
	job.Status = JobCompleted
	job.Progress = 100
	job.ModelID = "model-c"
	job.CompletedAt = &now
	require.NoError(t, repo.UpdateTrainingJob(job))

	got, err = repo.GetTrainingJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, "model-c", got.ModelID)
	require.NotNil(t, got.CompletedAt)
}

func TestFailStaleTrainingJobs(t *testing.T) {
	repo := newTestRepository(t)

	stale := NewTrainingJob()
	require.NoError(t, repo.CreateTrainingJob(stale))

	// Backdate the job so the janitor sees it as stuck.
	_, err := repo.db.Exec(`UPDATE training_jobs SET updated_at = ? WHERE id = ?`,
		time.Now().Add(-2*time.Hour), stale.ID)
	require.NoError(t, err)

	fresh := NewTrainingJob()
	require.NoError(t, repo.CreateTrainingJob(fresh))

	n, err := repo.FailStaleTrainingJobs(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetTrainingJob(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)

	got, err = repo.GetTrainingJob(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, JobPending, got.Status)
}

func TestAISettingsDefaultsAndUpdate(t *testing.T) {
	repo := newTestRepository(t)

	settings, err := repo.GetAISettings()
	require.NoError(t, err)
	assert.True(t, settings.ScoringEnabled)
	assert.True(t, settings.RecommendationsEnabled)
	assert.False(t, settings.AutoRetrain)
	assert.Empty(t, settings.ActiveModelID)

	settings.ScoringEnabled = false
	settings.ActiveModelID = "model-x"
	require.NoError(t, repo.UpdateAISettings(settings))

	got, err := repo.GetAISettings()
	require.NoError(t, err)
	assert.False(t, got.ScoringEnabled)
	assert.Equal(t, "model-x", got.ActiveModelID)
}
