package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

// HTTPCall performs one outbound HTTP request and captures the response body
// as the node's output. Config: url (required), method (default GET),
// headers, body (inline request body; a POST/PUT with an upstream file sends
// the file instead). The response status is recorded in the log but never
// fails the node; only transport errors do.
type HTTPCall struct {
	client *http.Client
}

// NewHTTPCall builds the http_call handler. A nil client gets a 30s-timeout
// default.
func NewHTTPCall(client *http.Client) *HTTPCall {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPCall{client: client}
}

func (h *HTTPCall) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	url := stringOpt(node.Config, "url", "")
	if url == "" {
		return runtime.Result{}, errors.New("http_call node has no url")
	}
	method := strings.ToUpper(stringOpt(node.Config, "method", http.MethodGet))

	var body io.Reader
	if inline := stringOpt(node.Config, "body", ""); inline != "" {
		body = strings.NewReader(inline)
	}
	if path := inv.FirstUpstream(); path != "" && (method == http.MethodPost || method == http.MethodPut) {
		data, err := os.ReadFile(path)
		if err != nil {
			return runtime.Result{}, fmt.Errorf("read request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return runtime.Result{}, fmt.Errorf("build request: %w", err)
	}
	for key, value := range mapOpt(node.Config, "headers") {
		if s, ok := value.(string); ok {
			req.Header.Set(key, s)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return runtime.Result{}, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	output := inv.Scratch.Path(".json")
	f, err := os.Create(output)
	if err != nil {
		return runtime.Result{}, fmt.Errorf("create response file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return runtime.Result{}, fmt.Errorf("write response file: %w", err)
	}
	if err := f.Close(); err != nil {
		return runtime.Result{}, fmt.Errorf("close response file: %w", err)
	}

	return runtime.Result{
		Log:        fmt.Sprintf("HTTP %s %s -> %d", method, url, resp.StatusCode),
		OutputPath: output,
	}, nil
}
