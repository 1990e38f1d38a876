package domain

// NodeType identifies the behavior of a pipeline node. The engine dispatches
// on this tag through a handler registry; unrecognized values fall back to a
// pass-through handler so that partially-authored pipelines still execute.
type NodeType string

// Enumerated node types.
const (
	NodeFileInput      NodeType = "file_input"
	NodeConnectorInput NodeType = "connector_input"
	NodeTransform      NodeType = "transform"
	NodeValidation     NodeType = "validation"
	NodeConditional    NodeType = "conditional_branch"
	NodeMerge          NodeType = "merge"
	NodeHTTPCall       NodeType = "http_call"
	NodeWebhookSend    NodeType = "webhook_send"
	NodeDBInsert       NodeType = "db_insert"
	NodeExport         NodeType = "export"
	NodeFileOutput     NodeType = "file_output"
)

// Pipeline is a named, versioned DAG definition.
type Pipeline struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Graph       Graph  `json:"graph" yaml:"graph"`
}

// Graph is the executable shape of a pipeline: an ordered node list plus
// directed edges. Node order is significant; it is the tie-break used when
// several nodes become runnable at the same time.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node is a processing step in the pipeline DAG.
type Node struct {
	ID     string         `json:"id" yaml:"id"`
	Type   NodeType       `json:"type" yaml:"type"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Edge is a directed dependency between two nodes: Target consumes the
// output of Source. Edge order is significant; a node's upstream inputs are
// resolved in edge-list order.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Inbound returns the source node IDs of every edge targeting id,
// in edge-list order.
func (g *Graph) Inbound(id string) []string {
	var sources []string
	for _, e := range g.Edges {
		if e.Target == id {
			sources = append(sources, e.Source)
		}
	}
	return sources
}

// TransformStep is one declarative operation inside a transform node.
// Operator selects the rewrite (rename_column, filter_rows, ...); Params
// carries its operator-specific arguments.
type TransformStep struct {
	Operator string         `json:"operator" yaml:"operator"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// StringParam returns the named parameter as a string, or def when absent
// or not a string.
func (s TransformStep) StringParam(key, def string) string {
	if v, ok := s.Params[key].(string); ok {
		return v
	}
	return def
}
