package builder

import (
	"fmt"

	"github.com/sicko7947/fraudflow"
)

// ValidateGraph performs comprehensive validation on a graph
func ValidateGraph(graph *fraudflow.ExecutionGraph) error {
	if err := graph.Validate(); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	if err := ValidateTerminalReachable(graph); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	return nil
}

// ValidateReachability ensures all nodes are reachable from the entry point
func ValidateReachability(graph *fraudflow.ExecutionGraph) error {
	if graph.EntryPoint == "" {
		return fmt.Errorf("no entry point set")
	}

	reachable := make(map[fraudflow.NodeID]bool)
	var visit func(fraudflow.NodeID)
	visit = func(id fraudflow.NodeID) {
		if reachable[id] {
			return
		}
		reachable[id] = true

		node, ok := graph.Nodes[id]
		if !ok {
			return
		}
		for _, nextID := range node.Next {
			visit(nextID)
		}
	}

	visit(graph.EntryPoint)

	for _, id := range graph.NodeIDs() {
		if !reachable[id] {
			return fmt.Errorf("node %s is not reachable from entry point", id)
		}
	}

	return nil
}

// ValidateTerminalReachable ensures every node can still reach a terminal
// node, so no loop can trap the walk structurally
func ValidateTerminalReachable(graph *fraudflow.ExecutionGraph) error {
	reverse := make(map[fraudflow.NodeID][]fraudflow.NodeID)
	var frontier []fraudflow.NodeID
	for _, id := range graph.NodeIDs() {
		node := graph.Nodes[id]
		if node.Kind == fraudflow.NodeKindTerminal {
			frontier = append(frontier, id)
		}
		for _, next := range node.Next {
			reverse[next] = append(reverse[next], id)
		}
	}
	if len(frontier) == 0 {
		return fmt.Errorf("graph has no terminal node")
	}

	canFinish := make(map[fraudflow.NodeID]bool)
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if canFinish[id] {
			continue
		}
		canFinish[id] = true
		frontier = append(frontier, reverse[id]...)
	}

	for _, id := range graph.NodeIDs() {
		if !canFinish[id] {
			return fmt.Errorf("node %s cannot reach a terminal node", id)
		}
	}
	return nil
}
