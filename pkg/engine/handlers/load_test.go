package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
	"github.com/loomworks/loom/pkg/storage"
)

func TestStorageLoadFetchesObject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "orders.csv"), []byte("id,total\n1,9.50\n"), 0o644))
	store, err := storage.NewFSStore(root)
	require.NoError(t, err)

	h := NewStorageLoad(store)
	node := makeNode(domain.NodeFileInput, map[string]any{
		"key":          "orders.csv",
		"name":         "orders",
		"record_count": 1,
	})

	res, err := h.Execute(context.Background(), node, runtime.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows)
	assert.Equal(t, "Loaded orders", res.Log)
	assert.FileExists(t, res.OutputPath)
	assert.NotEqual(t, filepath.Join(root, "orders.csv"), res.OutputPath)
	t.Cleanup(func() { os.Remove(res.OutputPath) })
}

func TestStorageLoadMissingKey(t *testing.T) {
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	h := NewStorageLoad(store)
	_, err = h.Execute(context.Background(), makeNode(domain.NodeFileInput, nil), runtime.Invocation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file key")
}

func TestStorageLoadMissingObject(t *testing.T) {
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	h := NewStorageLoad(store)
	node := makeNode(domain.NodeFileInput, map[string]any{"key": "absent.csv"})
	_, err = h.Execute(context.Background(), node, runtime.Invocation{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConnectorLoadReadsThroughRegistry(t *testing.T) {
	src := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(src, []byte("sku,qty\nA,2\n"), 0o644))

	h := NewConnectorLoad(connector.NewRegistry())
	node := makeNode(domain.NodeConnectorInput, map[string]any{
		"type": "csv",
		"path": src,
	})

	res, err := h.Execute(context.Background(), node, runtime.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, "Connected via csv", res.Log)
	assert.FileExists(t, res.OutputPath)
	assert.NotEqual(t, src, res.OutputPath)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "sku,qty\nA,2\n", string(data))
	t.Cleanup(func() { os.Remove(res.OutputPath) })
}

func TestConnectorLoadUnknownType(t *testing.T) {
	h := NewConnectorLoad(connector.NewRegistry())
	node := makeNode(domain.NodeConnectorInput, map[string]any{"type": "oracle"})

	_, err := h.Execute(context.Background(), node, runtime.Invocation{})
	assert.ErrorIs(t, err, domain.ErrUnknownConnector)
}
