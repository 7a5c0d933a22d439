package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

// processJob claims a job, runs its executor under a timeout with a
// heartbeat, and records the outcome. The returned error drives the NACK
// decision.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		if errors.Is(err, domain.ErrJobNotFound) {
			w.logger.Warn("Job no longer exists, dropping message",
				slog.String("job_id", msg.JobID),
			)
			return err
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	executor, err := w.executorFor(job)
	if err != nil {
		w.logger.Error("No executor for job",
			slog.String("job_id", job.JobID),
			slog.String("job_type", job.JobType),
		)
		w.markFailed(ctx, job, err)
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, job.Timeout(w.jobTimeout))
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	w.logger.Info("Executing job",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("campaign_id", job.CampaignID),
	)

	result, err := executor.Execute(jobCtx, job)
	if err != nil {
		return w.handleExecutionError(ctx, job, err)
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
	)

	if updateErr := w.storage.UpdateJobStatus(ctx, job.JobID, domain.JobStatusCompleted, result, ""); updateErr != nil {
		// the work is done; a lost status update must not trigger a rerun
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.JobID),
			slog.String("error", updateErr.Error()),
		)
	}

	return nil
}

func (w *Worker) executorFor(job *domain.Job) (Executor, error) {
	jobType, err := job.Type()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, job.JobType)
	}

	executor, ok := w.executors[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobType, job.JobType)
	}

	return executor, nil
}

// handleExecutionError records a failed run and classifies the error
func (w *Worker) handleExecutionError(ctx context.Context, job *domain.Job, err error) error {
	w.logger.Error("Job execution failed",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("error", err.Error()),
	)

	if domain.IsPermanent(err) {
		w.markFailed(ctx, job, err)
		return err
	}

	if job.HasRetriesLeft() {
		if retryErr := w.storage.MarkJobForRetry(ctx, job.JobID, err.Error()); retryErr != nil {
			w.logger.Error("Failed to mark job for retry",
				slog.String("job_id", job.JobID),
				slog.String("error", retryErr.Error()),
			)
		}

		w.logger.Info("Job will be retried",
			slog.String("job_id", job.JobID),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
		)
		return domain.NewRetryableError(fmt.Errorf("job execution failed: %w", err))
	}

	w.logger.Warn("Job exceeded max retries",
		slog.String("job_id", job.JobID),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
	)
	w.markFailed(ctx, job, err)

	return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, err)
}

func (w *Worker) markFailed(ctx context.Context, job *domain.Job, cause error) {
	if err := w.storage.UpdateJobStatus(ctx, job.JobID, domain.JobStatusFailed, nil, cause.Error()); err != nil {
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
