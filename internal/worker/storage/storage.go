package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// jobColumns is the worker's view of a jobs row; worker_id is NULL until claimed
const jobColumns = `
	job_id, job_type, campaign_id, queue_name, payload, status,
	COALESCE(worker_id, '') AS worker_id, retry_count, max_retries, timeout_seconds
`

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ClaimJob moves a PENDING job to RUNNING for workerID.
// Returns ErrJobAlreadyClaimed if the job left PENDING (claimed, canceled or
// finished) and ErrJobNotFound if it was deleted.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.JobStatusRunning, workerID, jobID, domain.JobStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := s.GetJobByID(ctx, jobID)
		if getErr != nil {
			return nil, getErr
		}
		s.logger.Warn("Job not claimable",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
			slog.String("status", current.Status),
			slog.String("owner", current.WorkerID),
		)
		return nil, domain.ErrJobAlreadyClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("job_type", job.JobType),
		slog.String("campaign_id", job.CampaignID),
	)

	return &job, nil
}

// UpdateJobStatus finishes a RUNNING job with status and optional result or
// error. A job the reaper already took back is left untouched.
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID, status string, result map[string]interface{}, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1::text,
			result = $2,
			error_message = NULLIF($3, ''),
			completed_at = CASE
				WHEN $1::text IN ($4::text, $5::text) THEN NOW()
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE job_id = $6 AND status = $7
	`

	var resultJSON []byte
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = raw
	}

	res, err := s.db.ExecContext(ctx, query, status, resultJSON, errorMsg,
		domain.JobStatusCompleted, domain.JobStatusFailed, jobID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Warn("Job no longer RUNNING, status not updated",
			slog.String("job_id", jobID),
			slog.String("status", status),
		)
		return nil
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}

// MarkJobForRetry returns a RUNNING job to PENDING and bumps its retry count
// so the requeued message can claim it again.
func (s *Storage) MarkJobForRetry(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    retry_count = retry_count + 1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.JobStatusPending, errorMsg, jobID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark job for retry: %w", err)
	}

	return nil
}

// UpdateJobHeartbeat touches last_heartbeat_at of a RUNNING job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET last_heartbeat_at = NOW() WHERE job_id = $1 AND status = $2`,
		jobID, domain.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Warn("Heartbeat for job that is not RUNNING", slog.String("job_id", jobID))
	}

	return nil
}

// RequeueStaleJobs resets RUNNING jobs whose heartbeat is older than
// staleAfter back to PENDING and returns their IDs
func (s *Storage) RequeueStaleJobs(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    retry_count = retry_count + 1,
		    error_message = 'heartbeat lost',
		    updated_at = NOW()
		WHERE status = $2
		  AND last_heartbeat_at < NOW() - make_interval(secs => $3)
		  AND retry_count < max_retries
		RETURNING job_id
	`

	var jobIDs []string
	err := s.db.SelectContext(ctx, &jobIDs, query, domain.JobStatusPending, domain.JobStatusRunning, staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}

	return jobIDs, nil
}

// FailStaleJobs marks RUNNING jobs with a stale heartbeat and no retries
// left as FAILED and returns how many were affected
func (s *Storage) FailStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = 'heartbeat lost after max retries',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $2
		  AND last_heartbeat_at < NOW() - make_interval(secs => $3)
		  AND retry_count >= max_retries
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, domain.JobStatusRunning, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	return result.RowsAffected()
}
