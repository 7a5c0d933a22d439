package model

import (
	"database/sql"
	"time"
)

type Job struct {
	JobID          string         `db:"job_id"`
	IdempotencyKey string         `db:"idempotency_key"`
	UserID         string         `db:"user_id"`
	CampaignID     string         `db:"campaign_id"`
	QueueName      string         `db:"queue_name"`
	JobType        string         `db:"job_type"`
	Payload        string         `db:"payload"`
	Status         string         `db:"status"`
	WorkerID       sql.NullString `db:"worker_id"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	TimeoutSeconds int            `db:"timeout_seconds"`
	Result         []byte         `db:"result"`
	ErrorMessage   sql.NullString `db:"error_message"`
	StartedAt      sql.NullTime   `db:"started_at"`
	CompletedAt    sql.NullTime   `db:"completed_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// ContactStats summarizes assignment progress of a campaign
type ContactStats struct {
	CampaignID string `db:"campaign_id"`
	Total      int    `db:"total"`
	Assigned   int    `db:"assigned"`
}
