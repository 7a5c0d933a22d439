package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer starts consuming with the configured prefetch window
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.broker.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.rabbitMQQueueName),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// parseJobMessage decodes a delivery body into a JobMessage. The body must be
// {"job_id": "<uuid>"}.
func parseJobMessage(body []byte, deliveryTag uint64) (*domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message JSON: %w", err)
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return nil, fmt.Errorf("invalid job_id %q: %w", msg.JobID, err)
	}

	msg.DeliveryTag = deliveryTag
	return &msg, nil
}

// startMessageDispatcher feeds decoded deliveries to the pool until ctx is
// canceled or the broker closes the delivery channel
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started", slog.String("worker_id", w.workerID))
	defer w.logger.Info("Message dispatcher stopped", slog.String("worker_id", w.workerID))

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}
			if !w.dispatch(ctx, delivery) {
				return
			}
		}
	}
}

// dispatch hands one delivery to the pool. It returns false when ctx ends
// before a pool goroutine takes the job.
func (w *Worker) dispatch(ctx context.Context, delivery amqp.Delivery) bool {
	jobMsg, err := parseJobMessage(delivery.Body, delivery.DeliveryTag)
	if err != nil {
		w.logger.Error("Dropping malformed job message",
			slog.String("message_id", delivery.MessageId),
			slog.String("body", string(delivery.Body)),
			slog.String("error", err.Error()),
		)
		w.reject(delivery.DeliveryTag, false)
		return true
	}

	if delivery.Redelivered {
		w.logger.Info("Job message redelivered",
			slog.String("job_id", jobMsg.JobID),
			slog.Uint64("delivery_tag", jobMsg.DeliveryTag),
		)
	}

	select {
	case w.jobsChan <- jobMsg:
		w.logger.Debug("Job dispatched to worker pool",
			slog.String("job_id", jobMsg.JobID),
			slog.Uint64("delivery_tag", jobMsg.DeliveryTag),
		)
		return true
	case <-ctx.Done():
		// not started, so another consumer may take it
		w.reject(delivery.DeliveryTag, true)
		return false
	}
}

// reject NACKs a delivery; without requeue it lands in the dead-letter queue
func (w *Worker) reject(deliveryTag uint64, requeue bool) {
	if err := w.broker.Nack(deliveryTag, requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.Uint64("delivery_tag", deliveryTag),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
	}
}
