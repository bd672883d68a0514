// Package training simulates model training runs. A job advances through
// pending -> running -> completed (or failed) exactly once; each job is
// driven by a single goroutine, so there is no concurrent mutation of a
// job record.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadscore/internal/database"
	"leadscore/internal/scoring"
)

// progressStep is the per-tick progress increment.
const progressStep = 10

// Trainer runs simulated training jobs. All job goroutines derive from the
// trainer's base context, so Stop cancels any in-flight run instead of
// leaving tickers outliving the server.
type Trainer struct {
	repo     *database.Repository
	interval time.Duration
	onModel  func(scoring.ModelMetadata)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTrainer creates a trainer that advances job progress every interval.
func NewTrainer(repo *database.Repository, interval time.Duration) *Trainer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Trainer{
		repo:     repo,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnModelRegistered sets a callback invoked after a completed run registers
// its model, before the job is marked completed. Used to drop cached model
// reads. Set it before starting any jobs.
func (t *Trainer) OnModelRegistered(fn func(scoring.ModelMetadata)) {
	t.onModel = fn
}

// StartJob creates a pending job and launches its run goroutine. The
// returned record reflects the pending state; callers poll GetTrainingJob
// for progress.
func (t *Trainer) StartJob() (*database.TrainingJob, error) {
	job := database.NewTrainingJob()
	if err := t.repo.CreateTrainingJob(job); err != nil {
		return nil, fmt.Errorf("failed to create training job: %w", err)
	}

	t.wg.Add(1)
	go t.run(job)

	slog.Info("Training job started", "job_id", job.ID, "interval", t.interval)
	return job, nil
}

// Stop cancels all running jobs and waits for their goroutines to exit.
func (t *Trainer) Stop() {
	t.cancel()
	t.wg.Wait()
}

// run drives one job to completion. Cancellation marks the job failed so
// its terminal state is still recorded.
func (t *Trainer) run(job *database.TrainingJob) {
	defer t.wg.Done()

	job.Status = database.JobRunning
	if err := t.repo.UpdateTrainingJob(job); err != nil {
		slog.Error("Failed to mark training job running", "job_id", job.ID, "error", err)
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for job.Progress < 100 {
		select {
		case <-t.ctx.Done():
			t.fail(job, "training cancelled on shutdown")
			return
		case <-ticker.C:
			job.Progress += progressStep
			if job.Progress > 100 {
				job.Progress = 100
			}
			if err := t.repo.UpdateTrainingJob(job); err != nil {
				slog.Error("Failed to update training progress", "job_id", job.ID, "error", err)
				t.fail(job, "failed to persist progress")
				return
			}
		}
	}

	model := t.buildModel()
	if err := t.repo.InsertModel(&model, true); err != nil {
		slog.Error("Failed to register trained model", "job_id", job.ID, "error", err)
		t.fail(job, "failed to register model")
		return
	}
	if t.onModel != nil {
		t.onModel(model)
	}

	now := time.Now()
	job.Status = database.JobCompleted
	job.ModelID = model.ID
	job.CompletedAt = &now
	if err := t.repo.UpdateTrainingJob(job); err != nil {
		slog.Error("Failed to complete training job", "job_id", job.ID, "error", err)
		return
	}

	slog.Info("Training job completed", "job_id", job.ID, "model_id", model.ID, "version", model.Version)
}

func (t *Trainer) fail(job *database.TrainingJob, reason string) {
	now := time.Now()
	job.Status = database.JobFailed
	job.Error = reason
	job.CompletedAt = &now
	if err := t.repo.UpdateTrainingJob(job); err != nil {
		slog.Error("Failed to mark training job failed", "job_id", job.ID, "error", err)
	}
}

// buildModel produces the next model version: the active model's weights
// (or the built-in defaults) with a small random perturbation, and slightly
// jittered informational metrics. The simulation never changes which
// features exist, only their weights.
func (t *Trainer) buildModel() scoring.ModelMetadata {
	base := scoring.DefaultModel()
	version := "1.0.0"

	if active, err := t.repo.GetActiveModel(); err == nil {
		base = *active
		version = active.Version
	}

	importance := make([]scoring.FeatureImportance, len(base.FeatureImportance))
	for i, fi := range base.FeatureImportance {
		jitter := 1 + (rand.Float64()-0.5)*0.1
		importance[i] = scoring.FeatureImportance{
			Feature:    fi.Feature,
			Importance: fi.Importance * jitter,
		}
	}

	metrics := make(map[string]float64, len(base.Metrics))
	for name, value := range base.Metrics {
		jittered := value + (rand.Float64()-0.4)*0.02
		if jittered > 0.99 {
			jittered = 0.99
		}
		metrics[name] = jittered
	}

	now := time.Now()
	return scoring.ModelMetadata{
		ID:                uuid.New().String(),
		Version:           bumpMinor(version),
		CreatedAt:         now,
		UpdatedAt:         now,
		Metrics:           metrics,
		FeatureImportance: importance,
	}
}

// bumpMinor increments the minor component of a semantic version string,
// resetting the patch. Unparseable versions restart at 1.1.0.
func bumpMinor(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "1.1.0"
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return "1.1.0"
	}
	return fmt.Sprintf("%d.%d.0", major, minor+1)
}
