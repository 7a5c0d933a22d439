package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

// spawnWorkerPool starts concurrency goroutines draining jobsChan
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := range w.concurrency {
		w.wg.Add(1)
		go w.workerLoop(ctx, fmt.Sprintf("%s-%d", w.workerID, i))
	}
}

// workerLoop processes one message at a time until the worker stops
func (w *Worker) workerLoop(ctx context.Context, workerName string) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}
			err := w.safeProcessJob(ctx, msg)
			w.settleDelivery(workerName, msg, err)
		}
	}
}

// safeProcessJob runs processJob and records a panic as a permanent failure
func (w *Worker) safeProcessJob(ctx context.Context, msg *domain.JobMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job processing panicked",
				slog.String("job_id", msg.JobID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: panic: %v", domain.ErrJobPanicked, r)
			if updateErr := w.storage.UpdateJobStatus(ctx, msg.JobID, domain.JobStatusFailed, nil, err.Error()); updateErr != nil {
				w.logger.Error("Failed to update job status to FAILED",
					slog.String("job_id", msg.JobID),
					slog.String("error", updateErr.Error()),
				)
			}
		}
	}()

	return w.processJob(ctx, msg)
}

// settleDelivery ACKs a processed message or NACKs it with a requeue decision
func (w *Worker) settleDelivery(workerName string, msg *domain.JobMessage, err error) {
	if err == nil {
		if ackErr := w.broker.Ack(msg.DeliveryTag); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeueJob(err)
	w.logger.Error("Job processing failed",
		slog.String("worker_name", workerName),
		slog.String("job_id", msg.JobID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	w.reject(msg.DeliveryTag, requeue)
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrJobNotFound) {
		return false
	}

	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}

	if domain.IsPermanent(err) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
