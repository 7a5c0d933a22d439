package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when the client has no usable connection
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	DeadLetterExchange string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// URI returns the AMQP URI for the configured broker
func (c *Config) URI() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// DeadLetterQueue is the queue that collects messages rejected without requeue
func (c *Config) DeadLetterQueue() string {
	return c.QueueName + ".dlq"
}

// Client owns one connection with two channels: a consumer channel for
// deliveries and acknowledgements, and a publisher channel in confirm mode.
type Client struct {
	config    *Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	publisher *amqp.Channel
	logger    *slog.Logger
	connected atomic.Bool
	publishMu sync.Mutex
}

// NewClient connects, declares the topology and starts watching the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect dials with retries, opens both channels and declares the topology
func (c *Client) connect() error {
	attempts := max(c.config.RetryAttempts, 1)
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.String("host", c.config.Host),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		c.conn, err = amqp.DialConfig(c.config.URI(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	if c.channel, err = c.conn.Channel(); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	if c.publisher, err = c.conn.Channel(); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create publisher channel: %w", err)
	}
	if err := c.publisher.Confirm(false); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	c.connected.Store(true)
	go c.watch(c.conn.NotifyClose(make(chan *amqp.Error, 1)))

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
		slog.String("dead_letter_exchange", c.config.DeadLetterExchange),
	)

	return nil
}

// watch marks the client disconnected when the broker closes the connection.
// The services exit and restart rather than reconnect in place, since
// unacknowledged deliveries are redelivered by the broker anyway.
func (c *Client) watch(closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	c.connected.Store(false)
	if ok && amqpErr != nil {
		c.logger.Error("RabbitMQ connection lost",
			slog.Int("code", amqpErr.Code),
			slog.String("reason", amqpErr.Reason),
		)
	}
}

// setup declares exchange, queue, and bindings
func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// messages NACKed without requeue are routed to <queue>.dlq
	var queueArgs amqp.Table
	if c.config.DeadLetterExchange != "" {
		if err := c.setupDeadLetter(); err != nil {
			return err
		}
		queueArgs = amqp.Table{"x-dead-letter-exchange": c.config.DeadLetterExchange}
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,       // name
		c.config.QueueDurable,    // durable
		c.config.QueueAutoDelete, // auto-delete
		c.config.QueueExclusive,  // exclusive
		false,                    // no-wait
		queueArgs,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(c.config.QueueName, c.config.RoutingKey, c.config.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// setupDeadLetter declares a fanout exchange and a durable <queue>.dlq bound to it
func (c *Client) setupDeadLetter() error {
	if err := c.channel.ExchangeDeclare(c.config.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	dlq := c.config.DeadLetterQueue()
	if _, err := c.channel.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	if err := c.channel.QueueBind(dlq, "", c.config.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	return nil
}

// JobMessage is the body published for every job: {"job_id": "<uuid>"}
type JobMessage struct {
	JobID string `json:"job_id"`
}

// PublishJob publishes a job reference and waits for the broker to confirm it
func (c *Client) PublishJob(ctx context.Context, jobID string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	return c.publishWithRetry(ctx, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    jobID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
}

// publishConfirmed publishes once and blocks until the broker acks or nacks
func (c *Client) publishConfirmed(ctx context.Context, msg amqp.Publishing) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	confirm, err := c.publisher.PublishWithDeferredConfirmWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		msg,
	)
	if err != nil {
		return err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errors.New("broker rejected message")
	}
	return nil
}

// publishWithRetry retries publishConfirmed with exponential backoff
func (c *Client) publishWithRetry(ctx context.Context, msg amqp.Publishing) error {
	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	backoffMult := c.config.PublishBackoffMult
	if backoffMult <= 0 {
		backoffMult = 2.0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = c.publishConfirmed(ctx, msg)
		if lastErr == nil {
			c.logger.Debug("Job message published",
				slog.String("message_id", msg.MessageId),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		if attempt == maxRetries {
			break
		}

		delay := backoff(baseDelay, backoffMult, attempt)
		c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
			slog.String("message_id", msg.MessageId),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_after", delay),
			slog.Any("error", lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("publish canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.String("message_id", msg.MessageId),
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

// backoff returns base * mult^attempt
func backoff(base time.Duration, mult float64, attempt int) time.Duration {
	delay := float64(base)
	for i := 0; i < attempt; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}

// Consume sets the prefetch window and starts a manual-ack consumer on the job queue
func (c *Client) Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	messages, err := c.channel.Consume(
		c.config.QueueName, // queue
		consumerTag,        // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch_count", prefetch),
	)

	return messages, nil
}

// Ack acknowledges a delivery on the consumer channel
func (c *Client) Ack(deliveryTag uint64) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.channel.Ack(deliveryTag, false)
}

// Nack rejects a delivery. Without requeue it is dead-lettered when a dead
// letter exchange is configured.
func (c *Client) Nack(deliveryTag uint64, requeue bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.channel.Nack(deliveryTag, false, requeue)
}

// QueueName returns the queue jobs are consumed from
func (c *Client) QueueName() string {
	return c.config.QueueName
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.conn != nil && !c.conn.IsClosed()
}

// HealthCheck reports whether the broker connection is usable
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close closes both channels and the connection
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")
	c.connected.Store(false)

	for _, ch := range []*amqp.Channel{c.publisher, c.channel} {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}
