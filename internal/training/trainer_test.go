package training

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscore/internal/database"
	"leadscore/internal/scoring"
)

func newTestRepo(t *testing.T) *database.Repository {
	t.Helper()
	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewRepository(db)
}

func waitForStatus(t *testing.T, repo *database.Repository, jobID, status string) *database.TrainingJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetTrainingJob(jobID)
		require.NoError(t, err)
		if job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, status)
	return nil
}

func TestTrainerCompletesJob(t *testing.T) {
	repo := newTestRepo(t)
	trainer := NewTrainer(repo, time.Millisecond)
	defer trainer.Stop()

	job, err := trainer.StartJob()
	require.NoError(t, err)
	assert.Equal(t, database.JobPending, job.Status)
	assert.Equal(t, 0, job.Progress)

	done := waitForStatus(t, repo, job.ID, database.JobCompleted)

	assert.Equal(t, 100, done.Progress)
	assert.NotEmpty(t, done.ModelID)
	require.NotNil(t, done.CompletedAt)

	// Completion registered a new active model.
	model, err := repo.GetActiveModel()
	require.NoError(t, err)
	assert.Equal(t, done.ModelID, model.ID)
	assert.Equal(t, "1.1.0", model.Version)
	assert.NotEmpty(t, model.FeatureImportance)
}

func TestTrainerVersionsAdvance(t *testing.T) {
	repo := newTestRepo(t)
	trainer := NewTrainer(repo, time.Millisecond)
	defer trainer.Stop()

	first, err := trainer.StartJob()
	require.NoError(t, err)
	waitForStatus(t, repo, first.ID, database.JobCompleted)

	second, err := trainer.StartJob()
	require.NoError(t, err)
	waitForStatus(t, repo, second.ID, database.JobCompleted)

	model, err := repo.GetActiveModel()
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", model.Version)

	models, err := repo.ListModels()
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestTrainerNotifiesModelRegistration(t *testing.T) {
	repo := newTestRepo(t)
	trainer := NewTrainer(repo, time.Millisecond)
	defer trainer.Stop()

	registered := make(chan scoring.ModelMetadata, 1)
	trainer.OnModelRegistered(func(m scoring.ModelMetadata) {
		registered <- m
	})

	job, err := trainer.StartJob()
	require.NoError(t, err)
	done := waitForStatus(t, repo, job.ID, database.JobCompleted)

	select {
	case m := <-registered:
		assert.Equal(t, done.ModelID, m.ID)
		assert.Equal(t, "1.1.0", m.Version)
	default:
		t.Fatal("model registration callback never fired")
	}
}

func TestTrainerStopFailsInFlightJobs(t *testing.T) {
	repo := newTestRepo(t)
	trainer := NewTrainer(repo, time.Hour) // never ticks before Stop

	job, err := trainer.StartJob()
	require.NoError(t, err)
	waitForStatus(t, repo, job.ID, database.JobRunning)

	trainer.Stop()

	failed, err := repo.GetTrainingJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
	assert.Less(t, failed.Progress, 100)
}

func TestBumpMinor(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"1.0.0", "1.1.0"},
		{"1.9.3", "1.10.0"},
		{"2.0.1", "2.1.0"},
		{"garbage", "1.1.0"},
		{"1.x.0", "1.1.0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, bumpMinor(tt.in), "bumpMinor(%q)", tt.in)
	}
}
