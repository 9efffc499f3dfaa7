package engine

import (
	"fmt"

	"github.com/sicko7947/fraudflow"
)

// GraphTraverser resolves transitions through the execution graph and
// enforces the transition limit
type GraphTraverser struct {
	graph          *fraudflow.ExecutionGraph
	maxTransitions int
	transitions    int
}

// NewGraphTraverser creates a new graph traverser. maxTransitions of 0
// disables the limit.
func NewGraphTraverser(graph *fraudflow.ExecutionGraph, maxTransitions int) *GraphTraverser {
	return &GraphTraverser{
		graph:          graph,
		maxTransitions: maxTransitions,
	}
}

// Advance returns the node that follows current for the given state
func (t *GraphTraverser) Advance(current fraudflow.NodeID, state *fraudflow.WorkflowState) (fraudflow.NodeID, error) {
	if t.maxTransitions > 0 && t.transitions >= t.maxTransitions {
		return "", fraudflow.NewWorkflowErrorWithNode(fraudflow.ErrCodeTransitionLimit,
			fmt.Sprintf("run exceeded %d transitions", t.maxTransitions), current)
	}

	next, err := t.graph.Resolve(current, state)
	if err != nil {
		return "", err
	}
	t.transitions++
	return next, nil
}

// Transitions returns how many edges have been followed
func (t *GraphTraverser) Transitions() int {
	return t.transitions
}

// IsSuspension checks if a node blocks on a human decision
func (t *GraphTraverser) IsSuspension(id fraudflow.NodeID) bool {
	node, exists := t.graph.Nodes[id]
	if !exists {
		return false
	}
	return node.Kind == fraudflow.NodeKindSuspension
}
