package engine

import "github.com/sicko7947/fraudflow"

// Routers are pure functions of the state. Each conditional edge in the
// graph is resolved by exactly one of them.

func routeParsed(s *fraudflow.WorkflowState) fraudflow.NodeID {
	if s.StepsExhausted() {
		return fraudflow.NodeCombineFunction
	}
	return fraudflow.NodeGenerateSQL
}

func routeSQLApproval(s *fraudflow.WorkflowState) fraudflow.NodeID {
	switch {
	case s.CurrentSQLApproved:
		return fraudflow.NodeExecuteStep
	case s.LastDecision == fraudflow.DecisionEdited:
		// edit produced no SQL; ask again
		return fraudflow.NodeAwaitSQLApproval
	default:
		return fraudflow.NodeGenerateSQL
	}
}

func routeExecutionFeedback(s *fraudflow.WorkflowState) fraudflow.NodeID {
	if s.LastDecision == fraudflow.DecisionApproved {
		return fraudflow.NodeStoreStep
	}
	return fraudflow.NodeGenerateSQL
}

func routeNextStep(s *fraudflow.WorkflowState) fraudflow.NodeID {
	if s.StepsExhausted() {
		return fraudflow.NodeCombineFunction
	}
	return fraudflow.NodeGenerateSQL
}

func routeFinalApproval(s *fraudflow.WorkflowState) fraudflow.NodeID {
	if s.FinalApproved {
		return fraudflow.NodeInsertTool
	}
	return fraudflow.NodeRethink
}
