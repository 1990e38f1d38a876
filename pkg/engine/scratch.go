package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Scratch owns the transient files of a single run. Handlers allocate fresh
// paths through Path, the engine records which node produced which output
// through Track, and Cleanup deletes everything when the run finishes.
// Intermediate files never outlive the run, whatever its outcome.
type Scratch struct {
	dir string

	mu      sync.Mutex
	outputs map[string]string // node id -> output path
}

func newScratch(baseDir, runID string) (*Scratch, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir := filepath.Join(baseDir, "loom-run-"+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{dir: dir, outputs: make(map[string]string)}, nil
}

// Path returns a fresh file path inside the run's scratch directory. The
// file is not created; ext should include the leading dot.
func (s *Scratch) Path(ext string) string {
	return filepath.Join(s.dir, uuid.NewString()+ext)
}

// Track records the output path a node produced. Nodes without an output
// (empty path) are not tracked and contribute nothing downstream.
func (s *Scratch) Track(nodeID, path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	s.outputs[nodeID] = path
	s.mu.Unlock()
}

// Resolve maps upstream node IDs to their output paths, preserving order and
// skipping nodes that produced no output.
func (s *Scratch) Resolve(nodeIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for _, id := range nodeIDs {
		if path, ok := s.outputs[id]; ok {
			paths = append(paths, path)
		}
	}
	return paths
}

// Cleanup removes every tracked output and the scratch directory itself.
// Already-deleted files are fine; handlers may consume their inputs. Other
// removal failures are logged and do not interrupt the caller.
func (s *Scratch) Cleanup(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for nodeID, path := range s.outputs {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("scratch cleanup failed", "node_id", nodeID, "path", path, "error", err)
		}
	}
	s.outputs = make(map[string]string)

	if err := os.RemoveAll(s.dir); err != nil {
		logger.Warn("scratch dir cleanup failed", "dir", s.dir, "error", err)
	}
}
