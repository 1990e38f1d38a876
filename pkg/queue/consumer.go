package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// HandlerFunc executes one dequeued run request. A non-nil error marks the
// request as failed in worker metrics; the run's own status is the handler's
// responsibility.
type HandlerFunc func(ctx context.Context, req RunRequest) error

// Consumer runs a set of goroutines that block-pop run requests and hand
// them to the handler. Each request executes under a soft deadline so a
// wedged pipeline cannot pin a worker slot forever.
type Consumer struct {
	client      goredis.Cmdable
	queue       string
	handler     HandlerFunc
	concurrency int
	runTimeout  time.Duration
	popTimeout  time.Duration
	logger      *slog.Logger
	metrics     *Metrics

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConcurrency sets the number of consumer goroutines.
func WithConcurrency(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRunTimeout sets the soft deadline applied to each run.
func WithRunTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.runTimeout = d
		}
	}
}

// WithPopTimeout sets how long each blocking pop waits before re-checking
// for shutdown.
func WithPopTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.popTimeout = d
		}
	}
}

// WithMetrics attaches worker metrics.
func WithMetrics(m *Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// NewConsumer creates a consumer for the given queue. An empty queue name
// selects DefaultQueue. The caller owns the Redis client lifecycle.
func NewConsumer(client goredis.Cmdable, queue string, handler HandlerFunc, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	c := &Consumer{
		client:      client,
		queue:       queue,
		handler:     handler,
		concurrency: 4,
		runTimeout:  10 * time.Minute,
		popTimeout:  5 * time.Second,
		logger:      logger,
		metrics:     NewMetrics(),
		stopCh:      make(chan struct{}),
	}
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the consumer goroutines. It returns immediately.
func (c *Consumer) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.running = true

	c.logger.Info("queue consumer starting",
		slog.String("queue", c.queue),
		slog.Int("concurrency", c.concurrency),
	)

	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go c.consumeLoop()
	}
	return nil
}

// Stop signals all consumers to finish their current request and waits for
// them. If the context expires first, in-flight runs are cancelled.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.logger.Info("queue consumer stopping", slog.String("queue", c.queue))
	close(c.stopCh)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("queue consumer stopped gracefully")
	case <-ctx.Done():
		c.logger.Warn("queue consumer shutdown timed out, cancelling active runs")
		c.baseCancel()
		c.wg.Wait()
	}
	c.baseCancel()
	return nil
}

// consumeLoop is run by each consumer goroutine.
func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		res, err := c.client.BLPop(c.baseCtx, c.popTimeout, c.queue).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if c.baseCtx.Err() != nil {
				return
			}
			c.logger.Error("queue pop error", slog.String("error", err.Error()))
			c.sleep()
			continue
		}
		// BLPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		c.process(res[1])
	}
}

// process decodes and executes one payload.
func (c *Consumer) process(payload string) {
	var req RunRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		c.logger.Error("discarding malformed run request", slog.String("error", err.Error()))
		c.metrics.RecordRunConsumed("invalid")
		return
	}

	if !req.EnqueuedAt.IsZero() {
		c.metrics.RecordQueueWait(time.Since(req.EnqueuedAt))
	}

	c.logger.Info("run request dequeued",
		slog.String("run_id", req.RunID),
		slog.String("pipeline_id", req.PipelineID),
		slog.String("triggered_by", string(req.TriggeredBy)),
	)

	ctx, cancel := context.WithTimeout(c.baseCtx, c.runTimeout)
	defer cancel()

	c.metrics.IncActiveRuns()
	start := time.Now()
	err := c.handler(ctx, req)
	elapsed := time.Since(start)
	c.metrics.DecActiveRuns()

	outcome := "success"
	if err != nil {
		outcome = "failed"
		c.logger.Error("run request failed",
			slog.String("run_id", req.RunID),
			slog.String("error", err.Error()),
		)
	}
	c.metrics.RecordRunConsumed(outcome)
	c.metrics.RecordRunDuration(outcome, elapsed)
}

func (c *Consumer) sleep() {
	select {
	case <-time.After(c.popTimeout):
	case <-c.stopCh:
	}
}
