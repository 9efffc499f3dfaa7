package fraudflow

import (
	"fmt"
	"sort"
)

// ExecutionGraph is the state-machine transition table: for every node an
// action and, where a node has more than one successor, a router.
// Cycles are expected; regeneration and rethink loop back.
type ExecutionGraph struct {
	EntryPoint NodeID
	Nodes      map[NodeID]*GraphNode
}

// GraphNode represents a node in the execution graph
type GraphNode struct {
	ID     NodeID
	Kind   NodeKind
	Action NodeAction
	Router Router
	Next   []NodeID
}

// NewExecutionGraph creates a new execution graph
func NewExecutionGraph() *ExecutionGraph {
	return &ExecutionGraph{
		Nodes: make(map[NodeID]*GraphNode),
	}
}

// AddNode adds a node to the graph
func (g *ExecutionGraph) AddNode(id NodeID, kind NodeKind, action NodeAction) {
	if _, exists := g.Nodes[id]; !exists {
		g.Nodes[id] = &GraphNode{
			ID:     id,
			Kind:   kind,
			Action: action,
			Next:   []NodeID{},
		}
	}

	// Set entry point if this is the first node
	if g.EntryPoint == "" {
		g.EntryPoint = id
	}
}

// AddEdge adds a directed edge from one node to another
func (g *ExecutionGraph) AddEdge(from, to NodeID) error {
	fromNode, exists := g.Nodes[from]
	if !exists {
		return fmt.Errorf("source node %s not found", from)
	}

	if _, exists := g.Nodes[to]; !exists {
		return fmt.Errorf("target node %s not found", to)
	}

	for _, n := range fromNode.Next {
		if n == to {
			return nil
		}
	}
	fromNode.Next = append(fromNode.Next, to)
	return nil
}

// SetRouter attaches a router to a node and declares its possible targets
func (g *ExecutionGraph) SetRouter(id NodeID, router Router, targets ...NodeID) error {
	node, exists := g.Nodes[id]
	if !exists {
		return fmt.Errorf("node %s not found in graph", id)
	}
	if router == nil {
		return fmt.Errorf("router for node %s is nil", id)
	}
	for _, t := range targets {
		if err := g.AddEdge(id, t); err != nil {
			return err
		}
	}
	node.Router = router
	return nil
}

// SetEntryPoint sets the entry point of the graph
func (g *ExecutionGraph) SetEntryPoint(id NodeID) error {
	if _, exists := g.Nodes[id]; !exists {
		return fmt.Errorf("node %s not found in graph", id)
	}
	g.EntryPoint = id
	return nil
}

// Validate validates the graph structure
func (g *ExecutionGraph) Validate() error {
	if g.EntryPoint == "" {
		return fmt.Errorf("execution graph has no entry point")
	}

	if _, exists := g.Nodes[g.EntryPoint]; !exists {
		return fmt.Errorf("entry point %s not found in graph", g.EntryPoint)
	}

	terminals := 0
	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		if node.Action == nil {
			return fmt.Errorf("node %s has no action", id)
		}
		for _, next := range node.Next {
			if _, ok := g.Nodes[next]; !ok {
				return fmt.Errorf("node %s points to unknown node %s", id, next)
			}
		}
		switch {
		case node.Kind == NodeKindTerminal:
			terminals++
			if len(node.Next) > 0 {
				return fmt.Errorf("terminal node %s has outgoing edges", id)
			}
		case len(node.Next) == 0:
			return fmt.Errorf("node %s has no outgoing edges", id)
		case len(node.Next) > 1 && node.Router == nil:
			return fmt.Errorf("node %s has %d successors but no router", id, len(node.Next))
		}
	}
	if terminals == 0 {
		return fmt.Errorf("execution graph has no terminal node")
	}

	// Check that all nodes are reachable from entry point
	reachable := g.getReachableNodes(g.EntryPoint)
	if len(reachable) != len(g.Nodes) {
		return fmt.Errorf("not all nodes are reachable from entry point")
	}

	return nil
}

// getReachableNodes returns all nodes reachable from the given start node
func (g *ExecutionGraph) getReachableNodes(startID NodeID) map[NodeID]bool {
	reachable := make(map[NodeID]bool)
	g.dfsReachable(startID, reachable)
	return reachable
}

// dfsReachable performs DFS to find all reachable nodes
func (g *ExecutionGraph) dfsReachable(id NodeID, reachable map[NodeID]bool) {
	reachable[id] = true

	node := g.Nodes[id]
	for _, nextID := range node.Next {
		if !reachable[nextID] {
			g.dfsReachable(nextID, reachable)
		}
	}
}

// Resolve returns the node that follows id for the given state. A router
// result outside the declared successors is an INVALID_ROUTE error.
func (g *ExecutionGraph) Resolve(id NodeID, state *WorkflowState) (NodeID, error) {
	node, exists := g.Nodes[id]
	if !exists {
		return "", NewWorkflowErrorWithNode(ErrCodeNotFound, "node not found in graph", id)
	}
	if len(node.Next) == 0 {
		return "", NewWorkflowErrorWithNode(ErrCodeInvalidRoute, "terminal node has no successor", id)
	}
	if node.Router == nil {
		return node.Next[0], nil
	}

	next := node.Router(state)
	for _, candidate := range node.Next {
		if candidate == next {
			return next, nil
		}
	}
	return "", NewWorkflowErrorWithNode(ErrCodeInvalidRoute,
		fmt.Sprintf("router returned undeclared target %q", next), id)
}

// GetNextNodes returns the declared successors of a node
func (g *ExecutionGraph) GetNextNodes(id NodeID) ([]NodeID, error) {
	node, exists := g.Nodes[id]
	if !exists {
		return nil, fmt.Errorf("node %s not found in graph", id)
	}

	return node.Next, nil
}

// IsTerminal returns true if the node ends the walk
func (g *ExecutionGraph) IsTerminal(id NodeID) bool {
	node, exists := g.Nodes[id]
	if !exists {
		return false
	}
	return node.Kind == NodeKindTerminal
}

// NodeIDs returns node ids in sorted order
func (g *ExecutionGraph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
