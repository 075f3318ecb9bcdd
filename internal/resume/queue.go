package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/logger"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("queue is closed")

// Job asks a worker to process one uploaded resume.
type Job struct {
	ResumeID  string `json:"resume_id"`
	UserID    string `json:"user_id"`
	ObjectKey string `json:"object_key"`
	Filename  string `json:"filename"`
}

// Handler processes one job. A returned error marks the delivery failed.
type Handler func(ctx context.Context, job Job) error

// Queue dispatches processing jobs to workers.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	// Consume runs handler for each job until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// NewQueue builds the queue selected by cfg.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	switch cfg.Backend {
	case "rabbitmq":
		return NewRabbitQueue(cfg.RabbitMQ, cfg.Workers)
	case "inprocess", "":
		return NewMemoryQueue(cfg.Workers, 64), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

// MemoryQueue runs jobs on goroutines in this process.
type MemoryQueue struct {
	jobs    chan Job
	workers int

	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue holding up to buffer pending jobs.
func NewMemoryQueue(workers, buffer int) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	return &MemoryQueue{jobs: make(chan Job, buffer), workers: workers}
}

// Publish enqueues job, blocking while the buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume starts the workers and blocks until ctx is cancelled or the queue
// is closed and drained.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	log := logger.With("queue")
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-q.jobs:
					if !ok {
						return
					}
					if err := handler(ctx, job); err != nil {
						log.Error().Err(err).Str("resume_id", job.ResumeID).Msg("resume job failed")
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops accepting jobs. Pending jobs are still delivered.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}

// RabbitQueue publishes jobs to a durable RabbitMQ queue and consumes them
// with manual acknowledgement. A failed delivery is requeued once.
type RabbitQueue struct {
	conn     *amqp.Connection
	name     string
	prefetch int
	workers  int

	pubMu sync.Mutex
	pub   *amqp.Channel
}

// NewRabbitQueue dials url and declares the queue.
func NewRabbitQueue(cfg config.RabbitMQConfig, workers int) (*RabbitQueue, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}
	if workers <= 0 {
		workers = 1
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &RabbitQueue{conn: conn, name: cfg.Queue, prefetch: prefetch, workers: workers, pub: ch}, nil
}

// Publish sends job as a persistent JSON message.
func (q *RabbitQueue) Publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err = q.pub.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume processes deliveries on q.workers goroutines until ctx is
// cancelled or the broker closes the channel.
func (q *RabbitQueue) Consume(ctx context.Context, handler Handler) error {
	log := logger.With("queue")
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					q.handle(ctx, d, handler, log)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *RabbitQueue) handle(ctx context.Context, d amqp.Delivery, handler Handler, log zerolog.Logger) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error().Err(err).Msg("dropping malformed job")
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, job); err != nil {
		requeue := !d.Redelivered
		log.Error().Err(err).Str("resume_id", job.ResumeID).Bool("requeue", requeue).Msg("resume job failed")
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

// Close closes the connection and its channels.
func (q *RabbitQueue) Close() error {
	return q.conn.Close()
}
