package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/pkg/domain"
)

// ParseDefinition decodes a pipeline definition from YAML or JSON. Both a
// full pipeline document and a bare {nodes, edges} graph are accepted; the
// bare form yields a pipeline with only the graph populated.
func ParseDefinition(data []byte) (*domain.Pipeline, error) {
	var pipeline domain.Pipeline
	if err := unmarshalDefinition(data, &pipeline); err != nil {
		return nil, fmt.Errorf("parse pipeline definition: %w", err)
	}

	if len(pipeline.Graph.Nodes) == 0 {
		var graph domain.Graph
		if err := unmarshalDefinition(data, &graph); err == nil && len(graph.Nodes) > 0 {
			pipeline.Graph = graph
		}
	}

	return &pipeline, nil
}

// unmarshalDefinition sniffs the payload format: documents opening with a
// JSON delimiter decode as JSON, everything else as YAML.
func unmarshalDefinition(data []byte, v any) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return json.Unmarshal(trimmed, v)
	}
	return yaml.Unmarshal(data, v)
}
