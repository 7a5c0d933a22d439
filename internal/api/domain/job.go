package domain

import (
	"errors"

	workerdomain "github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

var (
	ErrJobNotFound      = workerdomain.ErrJobNotFound
	ErrJobNotCancelable = errors.New("only PENDING jobs can be canceled")
	ErrJobNotDeletable  = errors.New("only COMPLETED, FAILED or CANCELED jobs can be deleted")
	ErrCampaignNotFound = workerdomain.ErrCampaignNotFound
	ErrZipCodeExists    = errors.New("zip code already exists")
)

// IsTerminal reports whether a job in status will never run again
func IsTerminal(status string) bool {
	switch status {
	case workerdomain.JobStatusCompleted, workerdomain.JobStatusFailed, workerdomain.JobStatusCanceled:
		return true
	}
	return false
}
