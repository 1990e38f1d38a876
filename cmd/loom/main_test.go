package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	return path
}

const goodDefinition = `
id: orders-daily
name: Orders Daily
graph:
  nodes:
    - id: extract
      type: file_input
      config:
        key: raw/orders.csv
    - id: clean
      type: transform
    - id: publish
      type: file_output
  edges:
    - source: extract
      target: clean
    - source: clean
      target: publish
`

const cyclicDefinition = `
graph:
  nodes:
    - id: a
      type: transform
    - id: b
      type: transform
  edges:
    - source: a
      target: b
    - source: b
      target: a
`

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommandAcceptsGoodDefinition(t *testing.T) {
	path := writeDefinition(t, goodDefinition)

	out, err := runCommand(t, "validate", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "definition valid: 3 nodes, 2 edges") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateCommandRejectsCycle(t *testing.T) {
	path := writeDefinition(t, cyclicDefinition)

	_, err := runCommand(t, "validate", path)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPreviewCommandPrintsExecutionOrder(t *testing.T) {
	path := writeDefinition(t, goodDefinition)

	out, err := runCommand(t, "preview", path)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", out)
	}
	if !strings.Contains(lines[0], "extract (file_input)") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[2], "publish (file_output)") {
		t.Fatalf("unexpected last line %q", lines[2])
	}
}

func TestReadDefinitionMissingFile(t *testing.T) {
	if _, err := readDefinition(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing definition")
	}
}
