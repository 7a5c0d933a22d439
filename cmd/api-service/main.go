package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/handler"
	"github.com/cuongbtq/texter-jobs/internal/api/router"
	"github.com/cuongbtq/texter-jobs/internal/api/storage"
	"github.com/cuongbtq/texter-jobs/internal/config"
	"github.com/cuongbtq/texter-jobs/internal/timezone"
	"github.com/cuongbtq/texter-jobs/shared/logger"
	"github.com/cuongbtq/texter-jobs/shared/postgresql"
	"github.com/cuongbtq/texter-jobs/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const serviceName = "api-service"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging.LoggerConfig(serviceName))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
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

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store := storage.NewStorage(dbClient)
	httpLogger := appLogger.Component("http")
	engine := router.SetupRouter(&handler.Dependencies{
		Logger:    httpLogger,
		Jobs:      store,
		ZipCodes:  store,
		Campaigns: store,
		Publisher: rabbitClient,
		Resolver:  timezone.NewResolver(timezone.LookupZip, store, httpLogger),
		Database:  dbClient,
		Broker:    rabbitClient,
		JobDefaults: handler.JobDefaults{
			MaxRetries:     cfg.Jobs.DefaultMaxRetries,
			TimeoutSeconds: cfg.Jobs.DefaultTimeoutSeconds,
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv, appLogger.Logger, cfg.Server.ShutdownTimeout)
}

// serve runs srv until ctx is canceled, then drains in-flight requests for
// at most shutdownTimeout
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger, shutdownTimeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("API service is running",
		slog.String("address", srv.Addr),
		slog.Duration("read_timeout", srv.ReadTimeout),
		slog.Duration("write_timeout", srv.WriteTimeout),
	)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
