package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	relayPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_outbox_publishes_total",
		Help: "Total number of outbox publish outcomes grouped by result.",
	}, []string{"result"})
	relayBacklogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookorder_outbox_backlog_size",
		Help: "Current number of pending messages in the transactional outbox.",
	})
	relayBacklogAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookorder_outbox_backlog_age_seconds",
		Help: "Age in seconds of the oldest pending outbox message.",
	})
)

// Options задаёт параметры outbox relay.
type Options struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Relay.
type Option func(*Options)

// WithLogger задаёт логгер relay.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithDLQPublisher задаёт publisher для сообщений, исчерпавших retry.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *Options) {
		opts.DLQPublisher = publisher
	}
}

// WithPollInterval задаёт периодичность опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.PollInterval = interval
	}
}

// WithBatchSize задаёт максимальный размер батча за один цикл.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithMaxAttempts задаёт число попыток публикации до failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *Options) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт базовую задержку exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *Options) {
		opts.RetryBaseDelay = delay
	}
}

// Relay переносит pending-сообщения из transactional outbox в брокер.
// Гарантия — at-least-once: сбой между Publish и MarkSent приводит
// к повторной публикации того же сообщения на следующем цикле.
type Relay struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	dlqPublisher   domain.OutboxPublisher
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewRelay создаёт outbox relay.
func NewRelay(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Relay {
	opts := Options{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-relay")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Relay{
		repo:           repo,
		publisher:      publisher,
		dlqPublisher:   opts.DLQPublisher,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// Run опрашивает outbox до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	if r.repo == nil || r.publisher == nil {
		r.logger.Warn("outbox relay is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один цикл: вычитывает батч pending-сообщений
// и публикует каждое с retry. Сообщение, не ушедшее после maxAttempts,
// помечается failed и при наличии DLQ-publisher уходит в DLQ.
func (r *Relay) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	r.observeBacklog()

	messages, err := r.repo.PullPending(r.batchSize)
	if err != nil {
		r.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return
		}
		r.relay(ctx, msg)
	}

	if len(messages) > 0 {
		r.observeBacklog()
	}
}

func (r *Relay) relay(ctx context.Context, msg domain.OutboxMessage) {
	err := r.publishWithRetry(ctx, msg)
	if err == nil {
		if markErr := r.repo.MarkSent(msg.ID); markErr != nil {
			r.logger.WithError(markErr).WithField("outbox_id", msg.ID).Warn("failed to mark outbox message as sent")
		}
		return
	}

	relayPublishes.WithLabelValues("failed").Inc()
	r.logger.WithError(err).WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
	}).Error("outbox publish failed after retries")

	if dlqErr := r.publishToDLQ(msg, err); dlqErr != nil {
		relayPublishes.WithLabelValues("dlq_failed").Inc()
		r.logger.WithError(dlqErr).WithField("outbox_id", msg.ID).Warn("failed to publish outbox message to DLQ")
	}
	if markErr := r.repo.MarkFailed(msg.ID); markErr != nil {
		r.logger.WithError(markErr).WithField("outbox_id", msg.ID).Warn("failed to mark outbox message as failed")
	}
}

func (r *Relay) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = r.publisher.Publish(msg)
		if lastErr == nil {
			relayPublishes.WithLabelValues("sent").Inc()
			return nil
		}
		relayPublishes.WithLabelValues("retry_error").Inc()

		if attempt >= r.maxAttempts {
			break
		}
		delay := r.backoff(attempt)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// backoff возвращает задержку перед следующей попыткой: base * 2^(attempt-1).
func (r *Relay) backoff(attempt int) time.Duration {
	if r.retryBaseDelay <= 0 {
		return 0
	}
	const maxShift = 16
	shift := attempt - 1
	if shift > maxShift {
		shift = maxShift
	}
	return r.retryBaseDelay << shift
}

func (r *Relay) observeBacklog() {
	stats, err := r.repo.Stats()
	if err != nil {
		r.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	relayBacklogSize.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		relayBacklogAge.Set(0)
		return
	}
	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	relayBacklogAge.Set(age)
}

// publishToDLQ оборачивает исходное сообщение в DLQ-конверт с причиной отказа.
func (r *Relay) publishToDLQ(msg domain.OutboxMessage, publishErr error) error {
	if r.dlqPublisher == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"outbox_id":        msg.ID,
		"aggregate_type":   msg.AggregateType,
		"aggregate_id":     msg.AggregateID,
		"event_type":       msg.EventType,
		"payload":          json.RawMessage(msg.Payload),
		"publish_error":    publishErr.Error(),
		"dlq_published_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	return r.dlqPublisher.Publish(domain.OutboxMessage{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
	})
}
