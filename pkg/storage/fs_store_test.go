package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store, err := NewFSStore(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644))

	require.NoError(t, store.Store(ctx, src, "files/team1/in.csv"))

	fetched, err := store.Fetch(ctx, "files/team1/in.csv")
	require.NoError(t, err)
	defer os.Remove(fetched)

	assert.NotEqual(t, src, fetched, "fetch returns a scratch copy, not the stored path")
	content, err := os.ReadFile(fetched)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))
	assert.Equal(t, ".csv", filepath.Ext(fetched), "extension survives for format detection")
}

func TestFSStoreFetchMissing(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "nope.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStoreDelete(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"k":1}`), 0o644))
	require.NoError(t, store.Store(ctx, src, "x.json"))

	require.NoError(t, store.Delete(ctx, "x.json"))
	assert.ErrorIs(t, store.Delete(ctx, "x.json"), ErrNotFound)
}

func TestFSStorePresign(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	url, err := store.Presign(context.Background(), "files/a.csv", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), "local store presigns as file URL, got %s", url)
	assert.True(t, strings.HasSuffix(url, "files/a.csv"))
}
