package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StaleJobStore finds jobs whose worker stopped heartbeating
type StaleJobStore interface {
	RequeueStaleJobs(ctx context.Context, staleAfter time.Duration) ([]string, error)
	FailStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// JobPublisher publishes {"job_id": ...} messages
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Reaper returns jobs orphaned by a crashed worker to the queue
type Reaper struct {
	store      StaleJobStore
	publisher  JobPublisher
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewReaper creates a Reaper. A non-positive staleAfter defaults to five
// minutes.
func NewReaper(store StaleJobStore, publisher JobPublisher, staleAfter time.Duration, logger *slog.Logger) *Reaper {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &Reaper{
		store:      store,
		publisher:  publisher,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Run performs one reaping pass
func (r *Reaper) Run(ctx context.Context) error {
	failed, err := r.store.FailStaleJobs(ctx, r.staleAfter)
	if err != nil {
		return err
	}
	if failed > 0 {
		r.logger.Warn("Stale jobs failed after exhausting retries",
			slog.Int64("count", failed),
		)
	}

	jobIDs, err := r.store.RequeueStaleJobs(ctx, r.staleAfter)
	if err != nil {
		return err
	}

	for _, jobID := range jobIDs {
		if err := r.publisher.PublishJob(ctx, jobID); err != nil {
			return fmt.Errorf("failed to republish job %s: %w", jobID, err)
		}

		r.logger.Info("Stale job requeued",
			slog.String("job_id", jobID),
		)
	}

	return nil
}
