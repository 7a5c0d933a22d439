package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/config"
	"github.com/cuongbtq/texter-jobs/internal/worker"
	"github.com/cuongbtq/texter-jobs/shared/logger"
	"github.com/cuongbtq/texter-jobs/shared/postgresql"
	"github.com/cuongbtq/texter-jobs/shared/rabbitmq"
	"github.com/joho/godotenv"
)

const serviceName = "worker-service"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	reapOnce := flag.Bool("reap-once", false, "Requeue stale RUNNING jobs once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging.LoggerConfig(serviceName))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)

	dbClient, err := postgresql.NewClient(cfg.Database.PostgresConfig(serviceName), appLogger.Component("postgresql"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(), appLogger.Component("rabbitmq"))
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	w := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Component("worker"),
		DBClient:          dbClient,
		RabbitClient:      rabbitClient,
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		StaleJobTimeout:   cfg.Worker.StaleJobTimeout,
		ReaperSchedule:    cfg.Worker.ReaperSchedule,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *reapOnce {
		return w.ReapStaleJobs(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	select {
	case <-ctx.Done():
		appLogger.Info("Received signal, shutting down gracefully")
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
			return err
		}
	}
	stop()

	return shutdown(appLogger.Logger, w, cfg.Worker.ShutdownTimeout)
}

// shutdown waits up to timeout for in-flight jobs. Jobs still running after
// that are left to the stale job reaper.
func shutdown(logger *slog.Logger, w *worker.Worker, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker service shutdown complete")
		return nil
	case <-ctx.Done():
		logger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Duration("timeout", timeout),
		)
		return errors.New("worker shutdown timed out")
	}
}
