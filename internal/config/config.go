package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	DeadLetter string           `yaml:"dead_letter_exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	StaleJobTimeout   time.Duration `yaml:"stale_job_timeout"`
	ReaperSchedule    string        `yaml:"reaper_schedule"`
}

// JobsConfig holds defaults applied to jobs created through the API
type JobsConfig struct {
	DefaultMaxRetries     int `yaml:"default_max_retries"`
	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds"`
}

// Load reads and parses the configuration file. ${VAR} references in the
// file are expanded from the environment, unknown keys are rejected, and
// DATABASE_PASSWORD / RABBITMQ_PASSWORD override the file when set.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	decoder.KnownFields(true)

	var config Config
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		config.RabbitMQ.Password = v
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults fills settings a minimal file may leave out
func (c *Config) applyDefaults() {
	setDefault(&c.Server.ReadTimeout, 10*time.Second)
	setDefault(&c.Server.WriteTimeout, 10*time.Second)
	setDefault(&c.Server.IdleTimeout, 60*time.Second)
	setDefault(&c.Server.ShutdownTimeout, 15*time.Second)

	setDefault(&c.Database.SSLMode, "disable")

	setDefault(&c.RabbitMQ.VHost, "/")
	setDefault(&c.RabbitMQ.Exchange.Type, "direct")
	setDefault(&c.RabbitMQ.RoutingKey, c.RabbitMQ.Queue.Name)

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "console")

	setDefault(&c.Worker.HeartbeatInterval, 30*time.Second)
	setDefault(&c.Worker.ShutdownTimeout, 30*time.Second)

	setDefault(&c.Jobs.DefaultMaxRetries, 3)
	setDefault(&c.Jobs.DefaultTimeoutSeconds, 300)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

var (
	logFormats    = []string{"json", "console"}
	exchangeTypes = []string{"direct", "fanout", "topic", "headers"}
)

// Validate checks the settings both services share
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.RabbitMQ.Exchange.Type != "" && !slices.Contains(exchangeTypes, c.RabbitMQ.Exchange.Type) {
		return fmt.Errorf("invalid rabbitmq exchange type: %q", c.RabbitMQ.Exchange.Type)
	}

	if c.RabbitMQ.DeadLetter != "" && c.RabbitMQ.DeadLetter == c.RabbitMQ.Exchange.Name {
		return fmt.Errorf("rabbitmq dead_letter_exchange must differ from the job exchange")
	}

	if c.RabbitMQ.Consumer.PrefetchCount < 0 {
		return fmt.Errorf("rabbitmq prefetch_count must not be negative")
	}

	if c.Logging.Format != "" && !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	return nil
}

// ValidateAPIConfig checks the configuration of the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Jobs.DefaultMaxRetries < 0 {
		return fmt.Errorf("jobs default_max_retries must not be negative")
	}

	if c.Jobs.DefaultTimeoutSeconds < 0 {
		return fmt.Errorf("jobs default_timeout_seconds must not be negative")
	}

	return c.Validate()
}

// ValidateWorkerConfig checks the configuration of the worker service
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.StaleJobTimeout != 0 && c.Worker.StaleJobTimeout <= c.Worker.HeartbeatInterval {
		return fmt.Errorf("worker stale_job_timeout must exceed heartbeat_interval")
	}

	if c.Worker.ReaperSchedule != "" {
		if _, err := cron.ParseStandard(c.Worker.ReaperSchedule); err != nil {
			return fmt.Errorf("invalid worker reaper_schedule %q: %w", c.Worker.ReaperSchedule, err)
		}
	}

	return c.Validate()
}
