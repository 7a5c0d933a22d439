package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/domain"
	"github.com/cuongbtq/texter-jobs/internal/api/model"
	"github.com/cuongbtq/texter-jobs/internal/timezone"
	workerdomain "github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/cuongbtq/texter-jobs/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, idempotency_key, user_id, campaign_id, queue_name, job_type,
	payload, status, worker_id, retry_count, max_retries, timeout_seconds,
	result, error_message, started_at, completed_at, created_at, updated_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateJob inserts job. When a job with the same idempotency key already
// exists it is returned instead and created is false.
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) (*model.Job, bool, error) {
	query := `
		INSERT INTO jobs (
			job_id, idempotency_key, user_id, campaign_id, queue_name, job_type,
			payload, status, max_retries, timeout_seconds, created_at, updated_at
		) VALUES (
			:job_id, :idempotency_key, :user_id, :campaign_id, :queue_name, :job_type,
			:payload, :status, :max_retries, :timeout_seconds, :created_at, :updated_at
		)
	`

	_, err := s.db.NamedExecContext(ctx, query, job)
	if err != nil {
		if postgresql.IsUniqueViolation(err, "jobs_idempotency_key_key") {
			existing, getErr := s.getJobByIdempotencyKey(ctx, job.IdempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create job: %w", err)
	}

	return job, true, nil
}

func (s *Storage) getJobByIdempotencyKey(ctx context.Context, key string) (*model.Job, error) {
	var job model.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE idempotency_key = $1`

	if err := s.db.GetContext(ctx, &job, query, key); err != nil {
		return nil, fmt.Errorf("failed to get job by idempotency key: %w", err)
	}

	return &job, nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UserID     string
	CampaignID string
	JobType    string
	Status     string
	PageSize   int
	Cursor     *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.CampaignID != "" {
		query += fmt.Sprintf(" AND campaign_id = $%d", argIdx)
		args = append(args, filter.CampaignID)
		argIdx++
	}

	if filter.JobType != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.JobType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CancelJob moves a PENDING job to CANCELED. A worker that later receives
// its message fails to claim it and drops the message.
func (s *Storage) CancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		UPDATE jobs
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING ` + jobColumns

	err := s.db.GetContext(ctx, &job, query, workerdomain.JobStatusCanceled, jobID, workerdomain.JobStatusPending)
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	if _, err := s.GetJobByID(ctx, jobID); err != nil {
		return nil, err
	}
	return nil, domain.ErrJobNotCancelable
}

// DeleteJob removes a job in a terminal status
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	query := `DELETE FROM jobs WHERE job_id = $1 AND status IN ($2, $3, $4)`

	result, err := s.db.ExecContext(ctx, query, jobID,
		workerdomain.JobStatusCompleted,
		workerdomain.JobStatusFailed,
		workerdomain.JobStatusCanceled,
	)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		return nil
	}

	if _, err := s.GetJobByID(ctx, jobID); err != nil {
		return err
	}
	return domain.ErrJobNotDeletable
}

// GetZipCode implements timezone.ZipCodeStore
func (s *Storage) GetZipCode(ctx context.Context, zip string) (*timezone.ZipCode, error) {
	var record timezone.ZipCode
	query := `
		SELECT zip, city, state, timezone_offset, has_dst, latitude, longitude
		FROM zip_code
		WHERE zip = $1
	`

	if err := s.db.GetContext(ctx, &record, query, zip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, timezone.ErrZipCodeNotFound
		}
		return nil, fmt.Errorf("failed to get zip code: %w", err)
	}

	return &record, nil
}

func (s *Storage) CreateZipCode(ctx context.Context, record *timezone.ZipCode) error {
	query := `
		INSERT INTO zip_code (zip, city, state, timezone_offset, has_dst, latitude, longitude)
		VALUES (:zip, :city, :state, :timezone_offset, :has_dst, :latitude, :longitude)
	`

	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		if postgresql.IsUniqueViolation(err, "") {
			return domain.ErrZipCodeExists
		}
		return fmt.Errorf("failed to create zip code: %w", err)
	}

	return nil
}

func (s *Storage) ContactStats(ctx context.Context, campaignID string) (*model.ContactStats, error) {
	var stats model.ContactStats
	query := `
		SELECT c.id AS campaign_id,
		       COUNT(cc.id) AS total,
		       COUNT(cc.texter_id) AS assigned
		FROM campaign c
		LEFT JOIN campaign_contact cc ON cc.campaign_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`

	if err := s.db.GetContext(ctx, &stats, query, campaignID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get contact stats: %w", err)
	}

	return &stats, nil
}
