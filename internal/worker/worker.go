package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/timezone"
	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/cuongbtq/texter-jobs/internal/worker/storage"
	"github.com/cuongbtq/texter-jobs/shared/postgresql"
	"github.com/cuongbtq/texter-jobs/shared/rabbitmq"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
)

const defaultHeartbeatInterval = 30 * time.Second

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	DBClient          *postgresql.Client
	RabbitClient      *rabbitmq.Client
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	StaleJobTimeout   time.Duration
	ReaperSchedule    string
}

// JobStore is the job bookkeeping the processing loop needs
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	UpdateJobStatus(ctx context.Context, jobID, status string, result map[string]interface{}, errorMsg string) error
	MarkJobForRetry(ctx context.Context, jobID, errorMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

// Broker is the message transport the worker consumes from and settles on
type Broker interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
	PublishJob(ctx context.Context, jobID string) error
	QueueName() string
}

// Worker represents the background job worker
type Worker struct {
	logger            *slog.Logger
	broker            Broker
	storage           JobStore
	executors         map[domain.JobType]Executor
	reaper            *Reaper
	reaperSchedule    string
	scheduler         *cron.Cron
	workerID          string
	rabbitMQQueueName string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	jobsChan          chan *domain.JobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// NewWorker creates a new worker instance wired to Postgres and RabbitMQ
func NewWorker(cfg *Config) *Worker {
	store := storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger)
	resolver := timezone.NewResolver(timezone.LookupZip, store, cfg.Logger)

	executors := map[domain.JobType]Executor{
		domain.JobTypeAssignTexters: NewTexterAssigner(store, resolver, cfg.Logger),
		domain.JobTypeLoadContacts:  NewContactLoader(store, resolver, cfg.Logger),
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	return &Worker{
		logger:            cfg.Logger,
		broker:            cfg.RabbitClient,
		storage:           store,
		executors:         executors,
		reaper:            NewReaper(store, cfg.RabbitClient, cfg.StaleJobTimeout, cfg.Logger),
		reaperSchedule:    cfg.ReaperSchedule,
		workerID:          newWorkerID(),
		rabbitMQQueueName: cfg.RabbitClient.QueueName(),
		concurrency:       cfg.Concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *domain.JobMessage, cfg.Concurrency),
		stopChan:          make(chan struct{}),
	}
}

func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Start subscribes to the queue, spawns the pool and blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	if w.reaper != nil && w.reaperSchedule != "" {
		w.scheduler = cron.New(cron.WithLocation(time.UTC))
		if _, err := w.scheduler.AddFunc(w.reaperSchedule, func() {
			if err := w.reaper.Run(ctx); err != nil {
				w.logger.Error("Stale job reaper failed",
					slog.String("error", err.Error()),
				)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule stale job reaper: %w", err)
		}
		w.scheduler.Start()

		w.logger.Info("Stale job reaper scheduled",
			slog.String("schedule", w.reaperSchedule),
		)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// ReapStaleJobs runs one stale job reaper pass outside the schedule
func (w *Worker) ReapStaleJobs(ctx context.Context) error {
	if w.reaper == nil {
		return nil
	}
	return w.reaper.Run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		if w.scheduler != nil {
			<-w.scheduler.Stop().Done()
		}
		close(w.stopChan)
		w.wg.Wait()
		w.logger.Info("Worker stopped")
	})
}
