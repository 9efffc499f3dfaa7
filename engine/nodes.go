package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sicko7947/fraudflow"
)

func (e *Engine) parsePattern(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	s.CurrentStepIndex = 0
	s.CurrentStepDescription = ""
	if len(s.Steps) > 0 {
		s.CurrentStepDescription = s.Steps[0]
	}
	s.Status = fraudflow.RunStatusProcessing

	ctx.Logger.Info().
		Str("pattern_name", s.PatternName).
		Int("total_steps", s.TotalSteps()).
		Msg("Pattern parsed")
	return nil
}

func (e *Engine) generateSQL(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	prompt := buildStepPrompt(s, e.config)

	sql, err := e.ports.Generator.GenerateSQL(ctx, prompt)
	sql = strings.TrimSpace(sql)
	if err == nil && sql == "" {
		err = errors.New("generator returned empty SQL")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		fraudflow.LogGenerationFallback(ctx.Logger, s.CurrentStepIndex, err)
		sql, err = e.completeWithRetry(ctx, generationSystemPrompt, prompt)
		if err != nil {
			return fraudflow.NewWorkflowErrorWithNode(fraudflow.ErrCodeGenerationFailed,
				"SQL generation and fallback completion both failed", ctx.Node).WithCause(err)
		}
	}

	s.SetCandidateSQL(sql)
	ctx.Logger.Info().
		Int("step", s.CurrentStepIndex+1).
		Int("sql_length", len(sql)).
		Msg("Candidate SQL generated")
	return nil
}

func (e *Engine) awaitSQLApproval(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	review, err := e.ports.Reviewer.ReviewSQL(ctx, s.View(ctx.Node))
	if err != nil {
		return err
	}

	switch review.Decision {
	case fraudflow.DecisionApproved:
		s.CurrentSQLApproved = true
		s.LastDecision = fraudflow.DecisionApproved
	case fraudflow.DecisionEdited:
		s.LastDecision = fraudflow.DecisionEdited
		edited := strings.TrimSpace(review.SQL)
		if edited == "" {
			s.CurrentSQLApproved = false
			ctx.Logger.Warn().Msg("Edit produced no SQL, asking again")
			break
		}
		s.AcceptEditedSQL(edited)
	default:
		s.CurrentSQLApproved = false
		s.LastDecision = fraudflow.DecisionRejected
	}

	e.metrics.IncDecision(ctx.Node.String(), s.LastDecision.String())
	return nil
}

func (e *Engine) executeStep(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	res, err := e.ports.Executor.Run(ctx, s.CurrentSQL, e.config.StepRowLimit)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	s.RecordExecution(res, err)

	if err != nil {
		ctx.Logger.Warn().Err(err).Msg("Step SQL failed")
	} else {
		ctx.Logger.Info().Int("row_count", res.RowCount()).Msg("Step SQL executed")
	}
	return nil
}

func (e *Engine) awaitExecutionFeedback(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	decision, err := e.ports.Reviewer.ReviewExecution(ctx, s.View(ctx.Node))
	if err != nil {
		return err
	}

	if decision == fraudflow.DecisionApproved && s.CurrentExecutionError != "" {
		fraudflow.LogDecisionCoerced(ctx.Logger, ctx.Node, "step execution failed")
		decision = fraudflow.DecisionRejected
	}
	if decision != fraudflow.DecisionApproved {
		decision = fraudflow.DecisionRejected
	}
	s.LastDecision = decision

	e.metrics.IncDecision(ctx.Node.String(), decision.String())
	return nil
}

func (e *Engine) storeStep(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	rec := fraudflow.StepRecord{
		StepIndex:   s.CurrentStepIndex,
		StepID:      fraudflow.StepID(s.CurrentStepIndex),
		Description: s.CurrentStepDescription,
		SQL:         s.CurrentSQL,
		Approved:    true,
		Edited:      s.CurrentSQLEdited,
		RowCount:    s.CurrentExecutionResult.RowCount(),
		Timestamp:   e.now(),
	}

	if err := e.ports.Records.AppendStep(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist %s: %w", rec.StepID, err)
	}
	s.AppendStep(rec)
	s.CurrentSQLEdited = false

	fraudflow.LogStepStored(ctx.Logger, rec)
	return nil
}

func (e *Engine) nextStep(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	more := s.AdvanceStep()

	ctx.Logger.Info().
		Int("step_index", s.CurrentStepIndex).
		Int("total_steps", s.TotalSteps()).
		Bool("more", more).
		Msg("Step advanced")
	return nil
}

func (e *Engine) combineFunction(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	steps, err := e.ports.Records.Steps(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored steps: %w", err)
	}

	prompt := buildCombinePrompt(s, steps, s.FinalSQL, e.config)
	sql, err := e.completeWithRetry(ctx, combinationSystemPrompt, prompt)
	if err != nil {
		return fraudflow.NewWorkflowErrorWithNode(fraudflow.ErrCodeGenerationFailed,
			"failed to combine step queries", ctx.Node).WithCause(err)
	}

	name := fraudflow.FunctionName(s.PatternID)
	if err := e.ports.Records.SetFinalFunction(ctx, sql, name); err != nil {
		return fmt.Errorf("failed to persist final function: %w", err)
	}
	s.SetFinalFunction(sql, name)
	s.RethinkFeedback = ""

	ctx.Logger.Info().
		Str("function_name", name).
		Int("steps", len(steps)).
		Msg("Final function combined")
	return nil
}

func (e *Engine) executeFinal(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	res, err := e.ports.Executor.Run(ctx, s.FinalSQL, e.config.FinalRowLimit)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	s.RecordFinalExecution(res, err)

	if err != nil {
		ctx.Logger.Warn().Err(err).Msg("Final SQL failed")
	} else {
		ctx.Logger.Info().Int("row_count", res.RowCount()).Msg("Final SQL executed")
	}
	return nil
}

func (e *Engine) awaitFinalApproval(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	decision, err := e.ports.Reviewer.ReviewFinal(ctx, s.View(ctx.Node))
	if err != nil {
		return err
	}

	if decision == fraudflow.DecisionApproved && s.FinalExecutionError != "" {
		fraudflow.LogDecisionCoerced(ctx.Logger, ctx.Node, "final execution failed")
		decision = fraudflow.DecisionRejected
	}
	s.FinalApproved = decision == fraudflow.DecisionApproved
	if !s.FinalApproved {
		decision = fraudflow.DecisionRejected
	}
	s.LastDecision = decision

	e.metrics.IncDecision(ctx.Node.String(), decision.String())
	return nil
}

func (e *Engine) rethink(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	feedback, err := e.ports.Reviewer.Rethink(ctx, s.View(ctx.Node))
	if err != nil {
		return err
	}
	s.RethinkFeedback = strings.TrimSpace(feedback)
	s.FinalApproved = false

	ctx.Logger.Info().Bool("has_feedback", s.RethinkFeedback != "").Msg("Rethinking final function")
	return nil
}

func (e *Engine) insertTool(ctx *fraudflow.NodeContext) error {
	s := ctx.State
	s.ToolID = fraudflow.ToolID(s.PatternID)

	err := e.ports.Executor.UpsertTool(ctx, fraudflow.ToolRecord{
		ToolID:      s.ToolID,
		PatternID:   s.PatternID,
		PolicyID:    e.config.PolicyID,
		SQL:         s.FinalSQL,
		TargetTable: e.config.ToolsTable,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.ToolInserted = false
		s.ToolError = err.Error()
		e.metrics.IncToolInsert("failed")
		fraudflow.LogToolInsertFailed(ctx.Logger, s.ToolID, err)
		return nil
	}

	s.ToolInserted = true
	s.ToolError = ""
	e.metrics.IncToolInsert("inserted")
	fraudflow.LogToolInserted(ctx.Logger, s.ToolID, s.PatternID)

	if err := e.ports.Executor.LinkPatternTool(ctx, s.PatternID, s.ToolID, e.config.PatternsTable); err != nil {
		fraudflow.LogPatternLinkFailed(ctx.Logger, s.PatternID, s.ToolID, err)
	}
	return nil
}

func (e *Engine) complete(ctx *fraudflow.NodeContext) error {
	ctx.State.Status = fraudflow.RunStatusCompleted
	return nil
}

// completeWithRetry asks the completer up to CompletionAttempts times and
// strips any code fence from the answer
func (e *Engine) completeWithRetry(ctx *fraudflow.NodeContext, system, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < e.config.CompletionAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, calculateBackoff(e.retryDelay, attempt)); err != nil {
				return "", err
			}
		}

		text, err := e.ports.Completer.Complete(ctx, system, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			ctx.Logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Completion failed")
			continue
		}
		if sql := fraudflow.StripCodeFence(text); sql != "" {
			return sql, nil
		}
		lastErr = errors.New("completion returned no SQL")
	}
	return "", fmt.Errorf("after %d attempts: %w", e.config.CompletionAttempts, lastErr)
}
