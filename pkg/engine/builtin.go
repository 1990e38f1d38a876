package engine

import (
	"net/http"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/handlers"
	"github.com/loomworks/loom/pkg/export"
	"github.com/loomworks/loom/pkg/storage"
)

// Collaborators bundles the external systems the built-in handlers reach:
// object storage for file inputs, the analytics engine for transforms and
// quality checks, connector and export registries for external data systems,
// and an HTTP client for outbound calls.
type Collaborators struct {
	Storage    storage.ObjectStore
	Analytics  handlers.Analytics
	Connectors *connector.Registry
	Exporters  *export.Registry
	HTTPClient *http.Client
}

// NewBuiltinRegistry returns a registry with every enumerated node type
// bound to its built-in handler.
func NewBuiltinRegistry(c Collaborators) *Registry {
	reg := NewRegistry()
	RegisterBuiltinHandlers(reg, c)
	return reg
}

// RegisterBuiltinHandlers binds the built-in handler for each enumerated
// node type. Nil registries are replaced with empty defaults so lookups fail
// with the registry's own unknown-type errors rather than panicking.
func RegisterBuiltinHandlers(reg *Registry, c Collaborators) {
	if c.Connectors == nil {
		c.Connectors = connector.NewRegistry()
	}
	if c.Exporters == nil {
		c.Exporters = export.NewRegistry()
	}

	reg.Register(domain.NodeFileInput, handlers.NewStorageLoad(c.Storage))
	reg.Register(domain.NodeConnectorInput, handlers.NewConnectorLoad(c.Connectors))
	reg.Register(domain.NodeTransform, handlers.NewTransform(c.Analytics))
	reg.Register(domain.NodeValidation, handlers.NewValidate(c.Analytics))
	reg.Register(domain.NodeConditional, handlers.NewConditional())
	reg.Register(domain.NodeMerge, handlers.NewMerge(c.Analytics))
	reg.Register(domain.NodeHTTPCall, handlers.NewHTTPCall(c.HTTPClient))
	reg.Register(domain.NodeWebhookSend, handlers.NewWebhookSend(c.Exporters))
	reg.Register(domain.NodeDBInsert, handlers.NewDBInsert(c.Connectors))
	reg.Register(domain.NodeExport, handlers.NewExport(c.Exporters))
	reg.Register(domain.NodeFileOutput, handlers.NewFileOutput())
}
