// Package export pushes pipeline output files to external systems. Adapters
// implement a single export capability and are selected through a registry
// keyed on a type string, mirroring the connector layer.
package export

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/loomworks/loom/pkg/domain"
)

// Summary is the structured outcome of one export. Adapters fill the fields
// relevant to their protocol; Success is the field node handlers gate on.
type Summary struct {
	Success      bool     `json:"success"`
	StatusCode   int      `json:"status_code,omitempty"`
	ResponseBody string   `json:"response_body,omitempty"`
	CreatedIDs   []any    `json:"created_ids,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	Total        int      `json:"total,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Adapter exports a local data file to an external system.
//
// Transport-level failures return an error; the remote system rejecting the
// data returns a Summary with Success false and nil error, so callers can
// log the remote detail before deciding to fail.
type Adapter interface {
	Export(ctx context.Context, dataPath string, config map[string]any) (*Summary, error)
	Type() string
}

// Factory builds a fresh adapter instance.
type Factory func() Adapter

// Registry maps adapter type strings to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("webhook", func() Adapter { return NewWebhookAdapter() })
	r.Register("odoo_xmlrpc", func() Adapter { return NewOdooAdapter() })
	return r
}

// Register adds or replaces an adapter factory.
func (r *Registry) Register(adapterType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[adapterType] = factory
}

// Get builds a fresh adapter of the given type.
func (r *Registry) Get(adapterType string) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[adapterType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAdapter, adapterType)
	}
	return factory(), nil
}

// Types lists the registered adapter types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
