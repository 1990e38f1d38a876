// Package pubsub announces run completions to interested listeners. API
// frontends subscribe to a per-run channel so they can resolve a waiting
// client the moment the worker finishes, instead of polling the run store.
package pubsub

import (
	"context"

	"github.com/loomworks/loom/pkg/domain"
)

// Event is the payload published when a run reaches a terminal status.
type Event struct {
	RunID  string           `json:"run_id"`
	Status domain.RunStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// Publisher delivers completion events. Publishing is best-effort: the run
// outcome is already durable in the run store, so a lost event only degrades
// latency for listeners, never correctness.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, event Event) error
}

// ChannelFor returns the channel name listeners subscribe to for one run.
func ChannelFor(runID string) string {
	return "pipeline_run:" + runID
}
