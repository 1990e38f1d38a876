package runstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/domain"
)

func TestMemoryStoreRunLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	run := &domain.Run{ID: "r1", PipelineID: "p1", Status: domain.RunPending}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.Error(t, s.CreateRun(ctx, run), "duplicate run id rejected")

	run.Status = domain.RunRunning
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, got.Status)

	// Mutating the returned copy must not leak back into the store.
	got.Status = domain.RunFailed
	again, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, again.Status)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.ErrorIs(t, s.UpdateRun(ctx, &domain.Run{ID: "missing"}), domain.ErrRunNotFound)
}

func TestMemoryStoreListRuns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, &domain.Run{ID: "a", PipelineID: "p1"}))
	require.NoError(t, s.CreateRun(ctx, &domain.Run{ID: "b", PipelineID: "p2"}))

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	p1, err := s.ListRuns(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p1, 1)
	assert.Equal(t, "a", p1[0].ID)
}

func TestMemoryStoreNodeRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &domain.NodeRecord{ID: "rec1", RunID: "r1", NodeID: "load", Attempt: 1, Status: domain.NodeRunning}
	second := &domain.NodeRecord{ID: "rec2", RunID: "r1", NodeID: "load", Attempt: 2, Status: domain.NodeRunning}
	require.NoError(t, s.AppendNodeRecord(ctx, first))
	require.NoError(t, s.AppendNodeRecord(ctx, second))

	first.Status = domain.NodeFailed
	require.NoError(t, s.UpdateNodeRecord(ctx, first))

	records, err := s.ListNodeRecords(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.NodeFailed, records[0].Status)
	assert.Equal(t, 2, records[1].Attempt, "append order preserved")

	assert.Error(t, s.UpdateNodeRecord(ctx, &domain.NodeRecord{ID: "ghost", RunID: "r1"}))

	empty, err := s.ListNodeRecords(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
