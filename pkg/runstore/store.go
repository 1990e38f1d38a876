// Package runstore persists run and node-attempt records. The engine only
// depends on create/update/list operations, never on the store's schema, so
// durable backends can replace the in-memory store without touching the
// orchestrator.
package runstore

import (
	"context"

	"github.com/loomworks/loom/pkg/domain"
)

// Store receives the orchestrator's state transitions.
type Store interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, pipelineID string) ([]*domain.Run, error)

	AppendNodeRecord(ctx context.Context, rec *domain.NodeRecord) error
	UpdateNodeRecord(ctx context.Context, rec *domain.NodeRecord) error
	ListNodeRecords(ctx context.Context, runID string) ([]*domain.NodeRecord, error)
}
