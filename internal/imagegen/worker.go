package imagegen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ekazakov/lingoscene/internal/storage"
)

// JobStore abstracts the queue and attempt mutations the worker performs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	CompleteAttemptImage(id, imageURL string, latency time.Duration) error
	MarkAttemptTextOnly(id string, latency time.Duration) error
}

// Worker drains generate_image jobs from the SQLite queue. One job mutates
// exactly one attempt row: on success the attempt becomes ok with an image
// URL, on any failure it becomes text_only. There is no retry and no
// dead-letter; jobs are enqueued with a single allowed attempt.
type Worker struct {
	store     JobStore
	generator Generator
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, generator Generator, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		generator: generator,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("image worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// JobPayload is the queue payload linking a job to its attempt.
type JobPayload struct {
	AttemptID string `json:"attemptId"`
	Text      string `json:"text"`
}

// RunOnce claims and processes a single generate_image job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{storage.JobTypeGenerateImage})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("image job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload JobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.AttemptID == "" || payload.Text == "" {
		return fmt.Errorf("payload missing attemptId or text")
	}

	_, _, err := ProcessAttempt(ctx, w.store, w.generator, payload.AttemptID, payload.Text, w.logger)
	return err
}

// AttemptUpdater is the subset of JobStore needed to reconcile a result.
type AttemptUpdater interface {
	CompleteAttemptImage(id, imageURL string, latency time.Duration) error
	MarkAttemptTextOnly(id string, latency time.Duration) error
}

// ProcessAttempt generates the image for one attempt and writes the outcome
// onto its row. Shared by the worker and the internal HTTP trigger. The
// returned error reflects the generation outcome; the text_only downgrade on
// failure is applied before returning.
func ProcessAttempt(ctx context.Context, store AttemptUpdater, generator Generator, attemptID, text string, logger *slog.Logger) (string, time.Duration, error) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	imageURL, err := generator.Generate(ctx, text)
	latency := time.Since(start)

	if err != nil {
		logger.Warn("image generation failed, degrading to text_only",
			"attempt_id", attemptID, "latency_ms", latency.Milliseconds(), "error", err)
		if updErr := store.MarkAttemptTextOnly(attemptID, latency); updErr != nil {
			logger.Error("failed to mark attempt text_only", "attempt_id", attemptID, "error", updErr)
		}
		return "", latency, fmt.Errorf("generating image: %w", err)
	}

	if err := store.CompleteAttemptImage(attemptID, imageURL, latency); err != nil {
		return "", latency, fmt.Errorf("recording image result: %w", err)
	}
	logger.Info("image generated", "attempt_id", attemptID, "latency_ms", latency.Milliseconds())
	return imageURL, latency, nil
}
