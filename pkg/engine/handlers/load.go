package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
	"github.com/loomworks/loom/pkg/storage"
)

// StorageLoad resolves a logical file key to a local scratch copy via the
// object store. Config: key (required), name (display name for the log),
// record_count (stored row count, reported when known).
type StorageLoad struct {
	store storage.ObjectStore
}

// NewStorageLoad builds the file_input handler.
func NewStorageLoad(store storage.ObjectStore) *StorageLoad {
	return &StorageLoad{store: store}
}

func (h *StorageLoad) Execute(ctx context.Context, node *domain.Node, _ runtime.Invocation) (runtime.Result, error) {
	key := stringOpt(node.Config, "key", "")
	if key == "" {
		return runtime.Result{}, errors.New("file_input node has no file key")
	}

	path, err := h.store.Fetch(ctx, key)
	if err != nil {
		return runtime.Result{}, fmt.Errorf("fetch %s: %w", key, err)
	}

	name := stringOpt(node.Config, "name", key)
	return runtime.Result{
		Rows:       int64(floatOpt(node.Config, "record_count", 0)),
		Log:        fmt.Sprintf("Loaded %s", name),
		OutputPath: path,
	}, nil
}

// ConnectorLoad pulls data through a registered connector. Config: type
// (connector registry key, default csv), read_params (passed to Read), plus
// whatever the connector's Connect expects.
type ConnectorLoad struct {
	connectors *connector.Registry
}

// NewConnectorLoad builds the connector_input handler.
func NewConnectorLoad(connectors *connector.Registry) *ConnectorLoad {
	return &ConnectorLoad{connectors: connectors}
}

func (h *ConnectorLoad) Execute(ctx context.Context, node *domain.Node, _ runtime.Invocation) (runtime.Result, error) {
	ctype := stringOpt(node.Config, "type", "csv")

	conn, err := h.connectors.Get(ctype)
	if err != nil {
		return runtime.Result{}, err
	}
	if err := conn.Connect(node.Config); err != nil {
		return runtime.Result{}, fmt.Errorf("connect %s: %w", ctype, err)
	}

	path, err := conn.Read(ctx, mapOpt(node.Config, "read_params"))
	if err != nil {
		return runtime.Result{}, fmt.Errorf("read via %s: %w", ctype, err)
	}

	return runtime.Result{
		Log:        fmt.Sprintf("Connected via %s", ctype),
		OutputPath: path,
	}, nil
}
