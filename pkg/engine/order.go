package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loomworks/loom/pkg/domain"
)

// ValidateGraph checks the structural invariants a graph must satisfy before
// any node runs: node IDs are unique and non-empty, and every edge references
// nodes that exist. An empty graph is valid; running it is a no-op.
func ValidateGraph(graph *domain.Graph) error {
	if graph == nil {
		return &domain.GraphError{Reason: "graph is nil", Err: domain.ErrGraphInvalid}
	}

	seen := make(map[string]struct{}, len(graph.Nodes))
	for _, node := range graph.Nodes {
		if node.ID == "" {
			return &domain.GraphError{Reason: "node with empty id", Err: domain.ErrGraphInvalid}
		}
		if _, dup := seen[node.ID]; dup {
			return &domain.GraphError{Reason: fmt.Sprintf("duplicate node id %q", node.ID), Err: domain.ErrGraphInvalid}
		}
		seen[node.ID] = struct{}{}
	}

	for _, edge := range graph.Edges {
		if _, ok := seen[edge.Source]; !ok {
			return &domain.GraphError{Reason: fmt.Sprintf("edge references unknown source %q", edge.Source), Err: domain.ErrGraphInvalid}
		}
		if _, ok := seen[edge.Target]; !ok {
			return &domain.GraphError{Reason: fmt.Sprintf("edge references unknown target %q", edge.Target), Err: domain.ErrGraphInvalid}
		}
	}

	return nil
}

// ExecutionOrder validates the graph and returns its node IDs in an order
// that places every node after all of its upstream dependencies (Kahn's
// algorithm). Ties are broken by node-list order, so the result is
// deterministic for a given definition. A cycle anywhere in the graph fails
// the whole ordering; no partial schedule is returned.
func ExecutionOrder(graph *domain.Graph) ([]string, error) {
	if err := ValidateGraph(graph); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(graph.Nodes))
	adjacency := make(map[string][]string, len(graph.Nodes))
	for _, node := range graph.Nodes {
		indegree[node.ID] = 0
	}
	for _, edge := range graph.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		indegree[edge.Target]++
	}

	// FIFO queue seeded in node-list order keeps the schedule stable.
	var queue []string
	for _, node := range graph.Nodes {
		if indegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]string, 0, len(graph.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(graph.Nodes) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &domain.GraphError{
			Reason: fmt.Sprintf("nodes unreachable due to cycle: %s", strings.Join(stuck, ", ")),
			Err:    domain.ErrGraphCycle,
		}
	}

	return order, nil
}
