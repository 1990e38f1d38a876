package engine

import (
	"sort"
	"sync"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/handlers"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

// Registry is the dispatch table from node type to handler. Types nobody
// registered resolve to the fallback, a pass-through that forwards its first
// upstream output, so a graph containing unrecognized node types still runs
// end to end.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.NodeType]runtime.Handler
	fallback runtime.Handler
}

// NewRegistry returns an empty registry with the pass-through fallback.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.NodeType]runtime.Handler),
		fallback: handlers.NewPassthrough(),
	}
}

// Register binds a handler to a node type, replacing any previous binding.
func (r *Registry) Register(t domain.NodeType, h runtime.Handler) {
	r.mu.Lock()
	r.handlers[t] = h
	r.mu.Unlock()
}

// SetFallback replaces the handler used for unregistered node types.
func (r *Registry) SetFallback(h runtime.Handler) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// Resolve returns the handler for t, or the fallback when t is unknown.
func (r *Registry) Resolve(t domain.NodeType) runtime.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.fallback
}

// Known reports whether a handler is registered for t.
func (r *Registry) Known(t domain.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Types returns the registered node types in sorted order.
func (r *Registry) Types() []domain.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
