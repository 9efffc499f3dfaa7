package fraudflow

import (
	"time"

	"github.com/rs/zerolog"
)

// Log event names
const (
	// Run-level events
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"

	// Node-level events
	EventNodeEntered     = "node_entered"
	EventGenerationRetry = "generation_fallback"
	EventDecisionCoerced = "decision_coerced"

	// Persistence events
	EventStepStored        = "step_stored"
	EventToolInserted      = "tool_inserted"
	EventToolInsertFailed  = "tool_insert_failed"
	EventPatternLinkFailed = "pattern_link_failed"
)

// LogRunStarted logs when a pattern run starts
func LogRunStarted(logger zerolog.Logger, runID, patternID string, totalSteps int) {
	logger.Info().
		Str("event", EventRunStarted).
		Str("run_id", runID).
		Str("pattern_id", patternID).
		Int("total_steps", totalSteps).
		Msg("Run started")
}

// LogNodeEntered logs every node visit
func LogNodeEntered(logger zerolog.Logger, node NodeID, visit int) {
	logger.Debug().
		Str("event", EventNodeEntered).
		Str("node", node.String()).
		Int("visit", visit).
		Msg("Node entered")
}

// LogGenerationFallback logs a failed generation port call that falls back to
// a direct completion
func LogGenerationFallback(logger zerolog.Logger, stepIndex int, err error) {
	logger.Warn().
		Str("event", EventGenerationRetry).
		Int("step_index", stepIndex).
		Err(err).
		Msg("SQL generation failed, falling back to direct completion")
}

// LogDecisionCoerced logs an approval turned into a rejection
func LogDecisionCoerced(logger zerolog.Logger, node NodeID, reason string) {
	logger.Warn().
		Str("event", EventDecisionCoerced).
		Str("node", node.String()).
		Str("reason", reason).
		Msg("Approval coerced to rejection")
}

// LogStepStored logs a persisted step record
func LogStepStored(logger zerolog.Logger, rec StepRecord) {
	logger.Info().
		Str("event", EventStepStored).
		Str("step_id", rec.StepID).
		Bool("edited", rec.Edited).
		Int("row_count", rec.RowCount).
		Msg("Step stored")
}

// LogToolInserted logs a successful tool upsert
func LogToolInserted(logger zerolog.Logger, toolID, patternID string) {
	logger.Info().
		Str("event", EventToolInserted).
		Str("tool_id", toolID).
		Str("pattern_id", patternID).
		Msg("Tool inserted")
}

// LogToolInsertFailed logs a failed tool upsert; the run still completes
func LogToolInsertFailed(logger zerolog.Logger, toolID string, err error) {
	logger.Error().
		Str("event", EventToolInsertFailed).
		Str("tool_id", toolID).
		Err(err).
		Msg("Tool insertion failed")
}

// LogPatternLinkFailed logs a failed pattern/tool link
func LogPatternLinkFailed(logger zerolog.Logger, patternID, toolID string, err error) {
	logger.Warn().
		Str("event", EventPatternLinkFailed).
		Str("pattern_id", patternID).
		Str("tool_id", toolID).
		Err(err).
		Msg("Could not link tool to pattern")
}

// LogRunCompleted logs the run summary
func LogRunCompleted(logger zerolog.Logger, state *WorkflowState, location string, duration time.Duration) {
	logger.Info().
		Str("event", EventRunCompleted).
		Str("run_id", state.RunID).
		Str("pattern_id", state.PatternID).
		Str("tool_id", state.ToolID).
		Bool("tool_inserted", state.ToolInserted).
		Int("steps", len(state.AccumulatedSteps)).
		Int("final_rows", state.FinalExecutionResult.RowCount()).
		Int("transitions", len(state.Trace)).
		Str("location", location).
		Dur("duration", duration).
		Msg("Run completed")
}

// LogRunFailed logs run failure
func LogRunFailed(logger zerolog.Logger, runID string, err error) {
	logger.Error().
		Str("event", EventRunFailed).
		Str("run_id", runID).
		Err(err).
		Msg("Run failed")
}

// RunLogger creates a logger enriched with run context
func RunLogger(baseLogger zerolog.Logger, runID, patternID string) zerolog.Logger {
	return baseLogger.With().
		Str("run_id", runID).
		Str("pattern_id", patternID).
		Logger()
}

// NodeLogger creates a logger enriched with node context
func NodeLogger(runLogger zerolog.Logger, node NodeID, visit int) zerolog.Logger {
	return runLogger.With().
		Str("node", node.String()).
		Int("visit", visit).
		Logger()
}
