package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// HTTPConnector pulls data from REST endpoints and can push file contents
// back via POST.
type HTTPConnector struct {
	url        string
	method     string
	headers    map[string]string
	authType   string
	authConfig map[string]string
	client     *http.Client
}

// NewHTTPConnector creates an HTTP connector with a 30 second client timeout.
func NewHTTPConnector() *HTTPConnector {
	return &HTTPConnector{
		method:  http.MethodGet,
		headers: map[string]string{},
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Connect captures endpoint, method, headers, and auth settings from config.
func (c *HTTPConnector) Connect(config map[string]any) error {
	u, _ := config["url"].(string)
	if u == "" {
		return fmt.Errorf("http connector: config missing url")
	}
	c.url = u

	if m, ok := config["method"].(string); ok && m != "" {
		c.method = strings.ToUpper(m)
	}
	c.headers = stringMap(config["headers"])
	c.authType, _ = config["auth_type"].(string)
	c.authConfig = stringMap(config["auth_config"])
	return nil
}

// TestConnection issues the configured request with a short deadline and
// reports whether it answered below 400.
func (c *HTTPConnector) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, nil)
	if err != nil {
		return false
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}

// Read fetches the endpoint and writes the response body to a scratch file
// whose extension follows the response content type.
func (c *HTTPConnector) Read(ctx context.Context, params map[string]any) (string, error) {
	target := c.url
	if query := stringMap(params["params"]); len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			values.Set(k, v)
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target, nil)
	if err != nil {
		return "", fmt.Errorf("http connector: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http connector %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("http connector %s: status %d", c.url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "loom-connector-*"+extensionFor(resp.Header.Get("Content-Type")))
	if err != nil {
		return "", fmt.Errorf("http connector: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("http connector %s: %w", c.url, err)
	}
	return tmp.Name(), nil
}

// Write POSTs the file contents to the configured endpoint.
func (c *HTTPConnector) Write(ctx context.Context, localPath string, _ map[string]any) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("http connector write: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, f)
	if err != nil {
		return fmt.Errorf("http connector write: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http connector write %s: %w", c.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http connector write %s: status %d", c.url, resp.StatusCode)
	}
	return nil
}

// Type returns "http".
func (c *HTTPConnector) Type() string {
	return "http"
}

func (c *HTTPConnector) applyHeaders(req *http.Request) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	switch c.authType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.authConfig["token"])
	case "api_key":
		name := c.authConfig["key_name"]
		if name == "" {
			name = "X-API-Key"
		}
		req.Header.Set(name, c.authConfig["key_value"])
	}
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "json"):
		return ".json"
	case strings.Contains(contentType, "csv"):
		return ".csv"
	case strings.Contains(contentType, "xml"):
		return ".xml"
	default:
		return ".json"
	}
}

// stringMap coerces a decoded config value into map[string]string.
func stringMap(v any) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		for k, item := range m {
			if s, ok := item.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprintf("%v", item)
			}
		}
	}
	return out
}
