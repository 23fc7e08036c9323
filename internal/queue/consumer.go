package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HandlerFunc is a registered consumer entry point for one work function
// name. Handlers own their failure handling: an error returned here is
// logged, and any job-state consequences must already be persisted by the
// handler itself.
type HandlerFunc func(ctx context.Context, args map[string]any) error

// Registry maps work function names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a work function name to its handler. Later registrations
// replace earlier ones.
func (r *Registry) Register(fn string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[fn] = h
}

func (r *Registry) lookup(fn string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[fn]
	return h, ok
}

// Consumer runs a pool of workers that pop dispatched work units from Redis
// and invoke the registered handlers. Delivery is at least once: a handler
// may see the same unit twice and must tolerate it.
type Consumer struct {
	client      *redis.Client
	registry    *Registry
	workers     int
	pollTimeout time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewConsumer initializes a consumer with a worker pool. If workers is 0 or
// negative, it defaults to 1.
func NewConsumer(client *redis.Client, registry *Registry, workers int, pollTimeout time.Duration, logger *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Second
	}
	return &Consumer{
		client:      client,
		registry:    registry,
		workers:     workers,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start requeues any work units stranded by a previous crash, then launches
// the worker goroutines. They run until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.requeueStalled(ctx)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.runWorker(ctx, i)
	}
}

// requeueStalled moves units left on the processing list back onto the work
// queue. A unit lands here when a worker crashed between claiming it and
// acknowledging it; re-delivery is safe because every handler is idempotent.
func (c *Consumer) requeueStalled(ctx context.Context) {
	for {
		err := c.client.LMove(ctx, processingKey, workKey, "RIGHT", "RIGHT").Err()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.logger.Error("failed to requeue stalled work unit", "error", err)
			}
			return
		}
		c.logger.Warn("requeued work unit stranded by a previous crash")
	}
}

// Wait blocks until all workers have exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
	c.logger.Info("all queue workers stopped")
}

func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	defer c.wg.Done()
	c.logger.Info("starting queue worker", "id", workerID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutting down queue worker", "id", workerID)
			return
		default:
		}

		// Claim the unit onto the processing list instead of popping it, so
		// a crash before the acknowledgment below leaves it recoverable.
		raw, err := c.client.BLMove(ctx, workKey, processingKey, "RIGHT", "LEFT", c.pollTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.Error("failed to claim work unit", "worker_id", workerID, "error", err)
			continue
		}

		c.process(ctx, workerID, []byte(raw))

		// Acknowledge outside the worker context: the unit was handled even
		// if shutdown began while the handler ran.
		if err := c.client.LRem(context.WithoutCancel(ctx), processingKey, 1, raw).Err(); err != nil {
			c.logger.Error("failed to acknowledge work unit", "worker_id", workerID, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, raw []byte) {
	var work Work
	if err := json.Unmarshal(raw, &work); err != nil {
		c.logger.Error("dropping undecodable work unit", "worker_id", workerID, "error", err)
		return
	}

	handler, ok := c.registry.lookup(work.Fn)
	if !ok {
		c.logger.Error("dropping work unit with unknown function", "worker_id", workerID, "fn", work.Fn)
		return
	}

	c.logger.Info("worker processing unit", "worker_id", workerID, "fn", work.Fn, "submission_id", work.ID)

	if err := handler(ctx, work.Args); err != nil {
		c.logger.Error("work unit failed", "worker_id", workerID, "fn", work.Fn, "submission_id", work.ID, "error", err)
	}
}
