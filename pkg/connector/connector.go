// Package connector provides data-source connectors for pipeline input and
// output nodes. Each connector implements a four-operation capability set
// (connect, test, read, write); variants are selected at runtime through a
// registry keyed on a type string.
package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/loomworks/loom/pkg/domain"
)

// Connector is the capability set every data-source variant implements.
type Connector interface {
	// Connect initializes the connector from node config. It validates
	// config shape but does not have to touch the remote system.
	Connect(config map[string]any) error

	// TestConnection reports whether the configured source is reachable.
	TestConnection(ctx context.Context) bool

	// Read pulls data from the source into a fresh local scratch file and
	// returns its path. The caller owns the file and its deletion.
	Read(ctx context.Context, params map[string]any) (string, error)

	// Write pushes a local data file to the destination.
	Write(ctx context.Context, localPath string, params map[string]any) error

	// Type returns the registry identifier ("csv", "http", "mysql", ...).
	Type() string
}

// Factory builds a fresh, unconnected connector instance.
type Factory func() Connector

// Registry maps type strings to connector factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with all built-in connectors registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("csv", func() Connector { return NewFileConnector("csv") })
	r.Register("json", func() Connector { return NewFileConnector("json") })
	r.Register("http", func() Connector { return NewHTTPConnector() })
	r.Register("mysql", func() Connector { return NewMySQLConnector() })
	return r
}

// Register adds or replaces a connector factory.
func (r *Registry) Register(connectorType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[connectorType] = factory
}

// Get builds a fresh connector of the given type.
func (r *Registry) Get(connectorType string) (Connector, error) {
	r.mu.RLock()
	factory, ok := r.factories[connectorType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnector, connectorType)
	}
	return factory(), nil
}

// Types lists the registered connector types, sorted.
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
