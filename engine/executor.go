package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// walk runs nodes from the entry point until a terminal node completes
func (e *Engine) walk(ctx context.Context, state *fraudflow.WorkflowState, runLogger zerolog.Logger) error {
	traverser := NewGraphTraverser(e.graph, e.config.MaxTransitions)
	current := e.graph.EntryPoint

	for {
		// Check for cancellation
		if err := ctx.Err(); err != nil {
			return fraudflow.NewWorkflowErrorWithNode(fraudflow.ErrCodeCancelled, "run cancelled", current).WithCause(err)
		}

		node, exists := e.graph.Nodes[current]
		if !exists {
			return fraudflow.NewWorkflowErrorWithNode(fraudflow.ErrCodeNotFound, "node not found in graph", current)
		}

		if err := e.executeNode(ctx, state, node, runLogger, traverser.IsSuspension(current)); err != nil {
			return err
		}

		if node.Kind == fraudflow.NodeKindTerminal {
			return nil
		}

		next, err := traverser.Advance(current, state)
		if err != nil {
			return err
		}
		current = next
	}
}

// executeNode runs a single node action inside a span, with panic recovery
func (e *Engine) executeNode(
	ctx context.Context,
	state *fraudflow.WorkflowState,
	node *fraudflow.GraphNode,
	runLogger zerolog.Logger,
	suspension bool,
) (err error) {
	state.Visits[node.ID]++
	visit := state.Visits[node.ID]
	state.Trace = append(state.Trace, node.ID)

	nodeLogger := fraudflow.NodeLogger(runLogger, node.ID, visit)
	fraudflow.LogNodeEntered(nodeLogger, node.ID, visit)
	e.metrics.IncNodeVisited(node.ID.String())

	spanCtx, span := e.tracer.Start(ctx, "fraudflow."+node.ID.String(),
		trace.WithAttributes(
			attribute.String("fraudflow.run_id", state.RunID),
			attribute.String("fraudflow.pattern_id", state.PatternID),
			attribute.String("fraudflow.node_kind", string(node.Kind)),
			attribute.Int("fraudflow.visit", visit),
		))
	defer span.End()

	nodeCtx := &fraudflow.NodeContext{
		Context: spanCtx,
		RunID:   state.RunID,
		Node:    node.ID,
		Visit:   visit,
		Logger:  nodeLogger,
		State:   state,
	}

	startTime := e.now()

	// Execute node (with panic recovery)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fraudflow.NewWorkflowErrorWithNode(fraudflow.ErrCodePanic, fmt.Sprintf("node panicked: %v", r), node.ID)
				nodeLogger.Error().Interface("panic", r).Msg("Node panicked")
			}
		}()

		err = node.Action(nodeCtx)
	}()

	if suspension {
		e.metrics.ObserveDecisionWait(node.ID.String(), e.now().Sub(startTime).Seconds())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fraudflow.ToWorkflowError(err, node.ID)
	}
	return nil
}
