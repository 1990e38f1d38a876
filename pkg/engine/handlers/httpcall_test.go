package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

func TestHTTPCallWritesResponseToScratch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "token-1", r.Header.Get("X-Api-Key"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	h := NewHTTPCall(server.Client())
	node := makeNode(domain.NodeHTTPCall, map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Api-Key": "token-1"},
	})

	res, err := h.Execute(context.Background(), node, runtime.Invocation{Scratch: scratchFor(t)})
	require.NoError(t, err)
	assert.Equal(t, "HTTP GET "+server.URL+" -> 200", res.Log)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestHTTPCallPostsUpstreamFile(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	payload := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(payload, []byte("id\n1\n"), 0o644))

	h := NewHTTPCall(server.Client())
	node := makeNode(domain.NodeHTTPCall, map[string]any{
		"url":    server.URL,
		"method": "POST",
	})
	inv := runtime.Invocation{Upstream: []string{payload}, Scratch: scratchFor(t)}

	res, err := h.Execute(context.Background(), node, inv)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(received))
	assert.Contains(t, res.Log, "-> 201")
}

func TestHTTPCallErrorStatusStillSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	h := NewHTTPCall(server.Client())
	node := makeNode(domain.NodeHTTPCall, map[string]any{"url": server.URL})

	res, err := h.Execute(context.Background(), node, runtime.Invocation{Scratch: scratchFor(t)})
	require.NoError(t, err)
	assert.Contains(t, res.Log, "-> 500")
}

func TestHTTPCallRequiresURL(t *testing.T) {
	h := NewHTTPCall(nil)
	_, err := h.Execute(context.Background(), makeNode(domain.NodeHTTPCall, nil), runtime.Invocation{Scratch: scratchFor(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}
