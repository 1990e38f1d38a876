package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine"
)

// builtinNodeTypes is the enumerated handler set; fixtures must not rely on
// the unknown-type pass-through.
var builtinNodeTypes = map[domain.NodeType]bool{
	domain.NodeFileInput:      true,
	domain.NodeConnectorInput: true,
	domain.NodeTransform:      true,
	domain.NodeValidation:     true,
	domain.NodeConditional:    true,
	domain.NodeMerge:          true,
	domain.NodeHTTPCall:       true,
	domain.NodeWebhookSend:    true,
	domain.NodeDBInsert:       true,
	domain.NodeExport:         true,
	domain.NodeFileOutput:     true,
}

// TestPipelineExamplesValidation ensures every example definition parses,
// passes graph validation, and is executable end to end by the scheduler.
func TestPipelineExamplesValidation(t *testing.T) {
	examplesDir := filepath.Join("..", "fixtures", "pipelines")

	examples := []string{
		"orders-cleanup.yaml",
		"regional-rollup.yaml",
		"crm-sync.json",
	}

	for _, example := range examples {
		t.Run(example, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(examplesDir, example))
			if err != nil {
				t.Fatalf("failed to read %s: %v", example, err)
			}

			pipeline, err := engine.ParseDefinition(data)
			if err != nil {
				t.Fatalf("failed to parse %s: %v", example, err)
			}

			if pipeline.ID == "" {
				t.Errorf("%s: missing pipeline ID", example)
			}
			if pipeline.Name == "" {
				t.Errorf("%s: missing pipeline name", example)
			}
			if pipeline.Version == 0 {
				t.Errorf("%s: missing pipeline version", example)
			}
			if len(pipeline.Graph.Nodes) == 0 {
				t.Fatalf("%s: no nodes defined", example)
			}

			ids := make(map[string]bool, len(pipeline.Graph.Nodes))
			for i, node := range pipeline.Graph.Nodes {
				if node.ID == "" {
					t.Errorf("%s: node[%d] missing ID", example, i)
				}
				if ids[node.ID] {
					t.Errorf("%s: duplicate node ID %q", example, node.ID)
				}
				ids[node.ID] = true
				if !builtinNodeTypes[node.Type] {
					t.Errorf("%s: node %q has unregistered type %q", example, node.ID, node.Type)
				}
			}

			for i, edge := range pipeline.Graph.Edges {
				if !ids[edge.Source] {
					t.Errorf("%s: edge[%d] source %q is not a node", example, i, edge.Source)
				}
				if !ids[edge.Target] {
					t.Errorf("%s: edge[%d] target %q is not a node", example, i, edge.Target)
				}
			}

			if err := engine.ValidateGraph(&pipeline.Graph); err != nil {
				t.Fatalf("%s: graph validation failed: %v", example, err)
			}

			order, err := engine.ExecutionOrder(&pipeline.Graph)
			if err != nil {
				t.Fatalf("%s: graph is not schedulable: %v", example, err)
			}
			if len(order) != len(pipeline.Graph.Nodes) {
				t.Errorf("%s: schedule covers %d of %d nodes", example, len(order), len(pipeline.Graph.Nodes))
			}
		})
	}
}
