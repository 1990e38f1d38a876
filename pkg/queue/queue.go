// Package queue moves run requests from API frontends to worker processes
// through a Redis list. The request carries the full pipeline definition so
// workers stay stateless and need no access to a pipeline catalog.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/loomworks/loom/pkg/domain"
)

// DefaultQueue is the Redis list key workers consume from.
const DefaultQueue = "loom:runs"

// RunRequest is one unit of work on the queue.
type RunRequest struct {
	RunID       string             `json:"run_id"`
	PipelineID  string             `json:"pipeline_id"`
	TriggeredBy domain.TriggerKind `json:"triggered_by"`
	Definition  json.RawMessage    `json:"definition"`
	EnqueuedAt  time.Time          `json:"enqueued_at"`
}

// Producer pushes run requests onto the queue. The caller owns the Redis
// client lifecycle.
type Producer struct {
	client goredis.Cmdable
	queue  string
}

// NewProducer wraps an existing Redis client. An empty queue name selects
// DefaultQueue.
func NewProducer(client goredis.Cmdable, queue string) *Producer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Producer{client: client, queue: queue}
}

// Enqueue appends the request to the tail of the queue. EnqueuedAt is
// stamped here so queue-wait measurements share one clock.
func (p *Producer) Enqueue(ctx context.Context, req RunRequest) error {
	if req.RunID == "" {
		return fmt.Errorf("queue: run request missing run_id")
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("queue: marshal run request: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, payload).Err(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", req.RunID, err)
	}
	return nil
}

// Depth reports the number of requests waiting on the queue.
func (p *Producer) Depth(ctx context.Context) (int64, error) {
	n, err := p.client.LLen(ctx, p.queue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: depth: %w", err)
	}
	return n, nil
}
