package domain

import "time"

// Job is a job request row as seen by the worker
type Job struct {
	JobID          string `db:"job_id"`
	JobType        string `db:"job_type"`
	CampaignID     string `db:"campaign_id"`
	QueueName      string `db:"queue_name"`
	Payload        string `db:"payload"` // JSON string
	Status         string `db:"status"`
	WorkerID       string `db:"worker_id"`
	RetryCount     int    `db:"retry_count"`
	MaxRetries     int    `db:"max_retries"`
	TimeoutSeconds int    `db:"timeout_seconds"`
}

// Type parses the stored job type
func (j *Job) Type() (JobType, error) {
	return ParseJobType(j.JobType)
}

// HasRetriesLeft reports whether a failed run may be attempted again
func (j *Job) HasRetriesLeft() bool {
	return j.RetryCount < j.MaxRetries
}

// Timeout returns the per-job timeout, or fallback when the job has none
func (j *Job) Timeout(fallback time.Duration) time.Duration {
	if j.TimeoutSeconds > 0 {
		return time.Duration(j.TimeoutSeconds) * time.Second
	}
	return fallback
}

// JobMessage is the body of a queued job: only the id travels, the row is
// the source of truth
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
