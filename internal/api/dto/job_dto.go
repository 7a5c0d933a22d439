package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/model"
)

type CreateJobRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	CampaignID     string `json:"campaign_id"`
	QueueName      string `json:"queue_name"`
	JobType        string `json:"job_type" binding:"required"`
	Payload        string `json:"payload" binding:"required"`
	MaxRetries     *int   `json:"max_retries" binding:"omitempty,min=0,max=20"`
	TimeoutSeconds *int   `json:"timeout_seconds" binding:"omitempty,min=1"`
}

type ListJobsRequest struct {
	UserID     string `form:"user_id"`
	CampaignID string `form:"campaign_id"`
	JobType    string `form:"job_type"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID          string          `json:"job_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	UserID         string          `json:"user_id"`
	CampaignID     string          `json:"campaign_id"`
	QueueName      string          `json:"queue_name"`
	JobType        string          `json:"job_type"`
	Payload        string          `json:"payload"`
	Status         string          `json:"status"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	Result         json.RawMessage `json:"result,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	StartedAt      string          `json:"started_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// NewJobDTO renders a job row for responses
func NewJobDTO(job *model.Job) JobDTO {
	out := JobDTO{
		JobID:          job.JobID,
		IdempotencyKey: job.IdempotencyKey,
		UserID:         job.UserID,
		CampaignID:     job.CampaignID,
		QueueName:      job.QueueName,
		JobType:        job.JobType,
		Payload:        job.Payload,
		Status:         job.Status,
		RetryCount:     job.RetryCount,
		MaxRetries:     job.MaxRetries,
		ErrorMessage:   job.ErrorMessage.String,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}

	if len(job.Result) > 0 {
		out.Result = json.RawMessage(job.Result)
	}
	if job.StartedAt.Valid {
		out.StartedAt = job.StartedAt.Time.Format(time.RFC3339)
	}
	if job.CompletedAt.Valid {
		out.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}

	return out
}
