package builder

import (
	"fmt"

	"github.com/sicko7947/fraudflow"
)

// GraphBuilder provides a fluent API for building state-machine graphs
type GraphBuilder struct {
	graph *fraudflow.ExecutionGraph
	last  fraudflow.NodeID
	err   error
}

// NewGraph creates a new graph builder
func NewGraph() *GraphBuilder {
	return &GraphBuilder{
		graph: fraudflow.NewExecutionGraph(),
	}
}

// Node registers a node without chaining it. The first node registered
// becomes the entry point.
func (b *GraphBuilder) Node(id fraudflow.NodeID, action fraudflow.NodeAction, opts ...NodeOption) *GraphBuilder {
	if b.err != nil {
		return b
	}
	if _, exists := b.graph.Nodes[id]; exists {
		b.err = fmt.Errorf("node %s registered twice", id)
		return b
	}
	if action == nil {
		b.err = fmt.Errorf("node %s has no action", id)
		return b
	}

	b.graph.AddNode(id, fraudflow.NodeKindAction, action)
	ApplyOptions(b.graph.Nodes[id], opts...)
	b.last = id
	return b
}

// Then registers a node and chains it after the last added node
func (b *GraphBuilder) Then(id fraudflow.NodeID, action fraudflow.NodeAction, opts ...NodeOption) *GraphBuilder {
	prev := b.last
	b.Node(id, action, opts...)
	if b.err == nil && prev != "" {
		b.Edge(prev, id)
	}
	return b
}

// Edge adds an unconditional edge
func (b *GraphBuilder) Edge(from, to fraudflow.NodeID) *GraphBuilder {
	if b.err != nil {
		return b
	}
	if err := b.graph.AddEdge(from, to); err != nil {
		b.err = fmt.Errorf("failed to add edge: %w", err)
	}
	return b
}

// Route attaches a router to from. Every target the router may return must
// be listed; targets are resolved at Build time so they may be registered
// later.
func (b *GraphBuilder) Route(from fraudflow.NodeID, router fraudflow.Router, targets ...fraudflow.NodeID) *GraphBuilder {
	if b.err != nil {
		return b
	}
	if len(targets) == 0 {
		b.err = fmt.Errorf("router for %s declares no targets", from)
		return b
	}
	node, exists := b.graph.Nodes[from]
	if !exists {
		b.err = fmt.Errorf("node %s not found in graph", from)
		return b
	}
	if router == nil {
		b.err = fmt.Errorf("router for node %s is nil", from)
		return b
	}
	node.Router = router
	node.Next = append(node.Next, targets...)
	return b
}

// SetEntryPoint sets the graph entry point explicitly
func (b *GraphBuilder) SetEntryPoint(id fraudflow.NodeID) *GraphBuilder {
	if b.err != nil {
		return b
	}
	if err := b.graph.SetEntryPoint(id); err != nil {
		b.err = fmt.Errorf("failed to set entry point: %w", err)
	}
	return b
}

// Build finalizes and validates the graph
func (b *GraphBuilder) Build() (*fraudflow.ExecutionGraph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := ValidateGraph(b.graph); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// MustBuild finalizes and validates the graph, panics on error
func (b *GraphBuilder) MustBuild() *fraudflow.ExecutionGraph {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build graph: %v", err))
	}
	return g
}
