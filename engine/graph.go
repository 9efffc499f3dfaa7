package engine

import (
	"github.com/sicko7947/fraudflow"
	"github.com/sicko7947/fraudflow/builder"
)

// buildGraph wires node actions and routers into the transition table
func (e *Engine) buildGraph() (*fraudflow.ExecutionGraph, error) {
	return builder.NewGraph().
		Node(fraudflow.NodeParsePattern, e.parsePattern).
		Route(fraudflow.NodeParsePattern, routeParsed,
			fraudflow.NodeGenerateSQL, fraudflow.NodeCombineFunction).
		Node(fraudflow.NodeGenerateSQL, e.generateSQL).
		Then(fraudflow.NodeAwaitSQLApproval, e.awaitSQLApproval, builder.AsSuspension()).
		Route(fraudflow.NodeAwaitSQLApproval, routeSQLApproval,
			fraudflow.NodeExecuteStep, fraudflow.NodeGenerateSQL, fraudflow.NodeAwaitSQLApproval).
		Node(fraudflow.NodeExecuteStep, e.executeStep).
		Then(fraudflow.NodeAwaitExecutionFeedback, e.awaitExecutionFeedback, builder.AsSuspension()).
		Route(fraudflow.NodeAwaitExecutionFeedback, routeExecutionFeedback,
			fraudflow.NodeStoreStep, fraudflow.NodeGenerateSQL).
		Node(fraudflow.NodeStoreStep, e.storeStep).
		Then(fraudflow.NodeNextStep, e.nextStep).
		Route(fraudflow.NodeNextStep, routeNextStep,
			fraudflow.NodeGenerateSQL, fraudflow.NodeCombineFunction).
		Node(fraudflow.NodeCombineFunction, e.combineFunction).
		Then(fraudflow.NodeExecuteFinal, e.executeFinal).
		Then(fraudflow.NodeAwaitFinalApproval, e.awaitFinalApproval, builder.AsSuspension()).
		Route(fraudflow.NodeAwaitFinalApproval, routeFinalApproval,
			fraudflow.NodeInsertTool, fraudflow.NodeRethink).
		Node(fraudflow.NodeRethink, e.rethink, builder.AsSuspension()).
		Edge(fraudflow.NodeRethink, fraudflow.NodeCombineFunction).
		Node(fraudflow.NodeInsertTool, e.insertTool).
		Then(fraudflow.NodeComplete, e.complete, builder.AsTerminal()).
		SetEntryPoint(fraudflow.NodeParsePattern).
		Build()
}
