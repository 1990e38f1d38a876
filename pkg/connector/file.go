package connector

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileConnector reads and writes local data files. One instance per format
// so "csv" and "json" register as distinct types.
type FileConnector struct {
	format string
	path   string
}

// NewFileConnector creates a file connector for the given format.
func NewFileConnector(format string) *FileConnector {
	return &FileConnector{format: format}
}

// Connect records the configured file path.
func (c *FileConnector) Connect(config map[string]any) error {
	path, _ := config["path"].(string)
	if path == "" {
		return fmt.Errorf("file connector: config missing path")
	}
	c.path = path
	return nil
}

// TestConnection reports whether the configured file exists.
func (c *FileConnector) TestConnection(context.Context) bool {
	if c.path == "" {
		return false
	}
	_, err := os.Stat(c.path)
	return err == nil
}

// Read copies the source file to a scratch path. A copy, so downstream
// cleanup of node outputs can never delete the user's original file.
func (c *FileConnector) Read(_ context.Context, _ map[string]any) (string, error) {
	src, err := os.Open(c.path)
	if err != nil {
		return "", fmt.Errorf("file connector read %s: %w", c.path, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "loom-connector-*"+filepath.Ext(c.path))
	if err != nil {
		return "", fmt.Errorf("file connector: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("file connector read %s: %w", c.path, err)
	}
	return tmp.Name(), nil
}

// Write copies localPath to the params output_path, or over the configured
// path when no output_path is given.
func (c *FileConnector) Write(_ context.Context, localPath string, params map[string]any) error {
	dest, _ := params["output_path"].(string)
	if dest == "" {
		dest = c.path
	}
	if dest == "" {
		return fmt.Errorf("file connector write: no output path")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("file connector write: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("file connector write %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("file connector write %s: %w", dest, err)
	}
	return nil
}

// Type returns the registered format identifier.
func (c *FileConnector) Type() string {
	return c.format
}
