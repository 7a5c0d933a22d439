package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that's already claimed
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in PENDING status")

	// ErrInvalidPayload is returned when job payload JSON is malformed or fails validation
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxRetriesExceeded is returned when a job has exceeded its retry limit
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrUnknownJobType is returned for a job_type no executor handles
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrCampaignNotFound is returned when the job's campaign does not exist
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrOrganizationNotFound is returned when a campaign's organization does not exist
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrJobPanicked is returned when an executor panics; the job is not retried
	ErrJobPanicked = errors.New("job panicked")
)

// IsPermanent reports whether err can never succeed on retry
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrUnknownJobType) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrJobPanicked)
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
