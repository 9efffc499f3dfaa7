package fraudflow

import (
	"context"

	"github.com/rs/zerolog"
)

// NodeContext is handed to every node action
type NodeContext struct {
	context.Context

	// Execution metadata
	RunID string
	Node  NodeID
	Visit int

	// Logger (enriched with node context)
	Logger zerolog.Logger

	// State is the run's aggregate. Actions mutate it in place.
	State *WorkflowState
}

// NodeAction performs a node's work against the state
type NodeAction func(ctx *NodeContext) error

// Router picks the next node from the state. Routers must be pure.
type Router func(state *WorkflowState) NodeID
