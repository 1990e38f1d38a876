package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomworks/loom/pkg/domain"
)

// MemoryStore is an in-memory implementation of Store. It copies records on
// the way in and out so callers and the store never alias the same struct.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*domain.Run
	records map[string][]*domain.NodeRecord // runID → records in append order
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*domain.Run),
		records: make(map[string][]*domain.NodeRecord),
	}
}

// CreateRun stores a new run.
func (s *MemoryStore) CreateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	clone := *run
	s.runs[run.ID] = &clone
	return nil
}

// UpdateRun overwrites an existing run's fields.
func (s *MemoryStore) UpdateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("update run %s: %w", run.ID, domain.ErrRunNotFound)
	}
	clone := *run
	s.runs[run.ID] = &clone
	return nil
}

// GetRun retrieves a run by ID.
func (s *MemoryStore) GetRun(_ context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("get run %s: %w", id, domain.ErrRunNotFound)
	}
	clone := *run
	return &clone, nil
}

// ListRuns returns runs for a pipeline, or all runs when pipelineID is empty.
func (s *MemoryStore) ListRuns(_ context.Context, pipelineID string) ([]*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Run
	for _, run := range s.runs {
		if pipelineID != "" && run.PipelineID != pipelineID {
			continue
		}
		clone := *run
		out = append(out, &clone)
	}
	return out, nil
}

// AppendNodeRecord adds a node attempt record to its run's history.
func (s *MemoryStore) AppendNodeRecord(_ context.Context, rec *domain.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *rec
	s.records[rec.RunID] = append(s.records[rec.RunID], &clone)
	return nil
}

// UpdateNodeRecord overwrites the stored record with the same ID.
func (s *MemoryStore) UpdateNodeRecord(_ context.Context, rec *domain.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.records[rec.RunID] {
		if existing.ID == rec.ID {
			clone := *rec
			s.records[rec.RunID][i] = &clone
			return nil
		}
	}
	return fmt.Errorf("node record %s not found in run %s", rec.ID, rec.RunID)
}

// ListNodeRecords returns a run's node records in append order.
func (s *MemoryStore) ListNodeRecords(_ context.Context, runID string) ([]*domain.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[runID]
	out := make([]*domain.NodeRecord, len(records))
	for i, rec := range records {
		clone := *rec
		out[i] = &clone
	}
	return out, nil
}
