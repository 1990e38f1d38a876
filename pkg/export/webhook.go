package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// maxResponseEcho caps how much of the remote response body lands in the
// summary (and from there in node logs).
const maxResponseEcho = 500

// WebhookAdapter POSTs a file's contents as JSON to a configured URL.
type WebhookAdapter struct {
	client *http.Client
}

// NewWebhookAdapter creates a webhook adapter with a 30 second timeout.
func NewWebhookAdapter() *WebhookAdapter {
	return &WebhookAdapter{client: &http.Client{Timeout: 30 * time.Second}}
}

// Export reads the data file, wraps non-JSON content as {"data": <raw>}, and
// POSTs it. Any answer below 400 counts as success.
func (a *WebhookAdapter) Export(ctx context.Context, dataPath string, config map[string]any) (*Summary, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("webhook export: config missing url")
	}

	content, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("webhook export: read %s: %w", dataPath, err)
	}

	var payload any
	if err := json.Unmarshal(content, &payload); err != nil {
		payload = map[string]any{"data": string(content)}
	}
	switch payload.(type) {
	case map[string]any, []any:
	default:
		payload = map[string]any{"data": payload}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook export: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook export: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headerConfig(config) {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook export %s: %w", url, err)
	}
	defer resp.Body.Close()

	echo, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseEcho))
	return &Summary{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(echo),
		Success:      resp.StatusCode < 400,
	}, nil
}

// Type returns "webhook".
func (a *WebhookAdapter) Type() string {
	return "webhook"
}

func headerConfig(config map[string]any) map[string]string {
	out := map[string]string{}
	if m, ok := config["headers"].(map[string]any); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	if m, ok := config["headers"].(map[string]string); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
