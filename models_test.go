package fraudflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.False(t, RunStatusPending.IsTerminal())
	assert.False(t, RunStatusProcessing.IsTerminal())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
}

func TestPattern_Validate(t *testing.T) {
	assert.NoError(t, Pattern{ID: "P1", Name: "Pattern"}.Validate())

	err := Pattern{Name: "Pattern"}.Validate()
	assert.True(t, IsCode(err, ErrCodeValidation))

	err = Pattern{ID: "P1"}.Validate()
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestNewWorkflowState_CopiesSteps(t *testing.T) {
	p := Pattern{ID: "P1", Name: "Pattern", Steps: []string{"a", "b"}}
	state := NewWorkflowState(p)
	p.Steps[0] = "changed"

	assert.Equal(t, []string{"a", "b"}, state.Steps)
	assert.Equal(t, RunStatusPending, state.Status)
	assert.Empty(t, state.AccumulatedSteps)
	assert.NotNil(t, state.Visits)
}

func TestWorkflowState_AdvanceStep_NeverPassesEnd(t *testing.T) {
	state := NewWorkflowState(Pattern{ID: "P1", Name: "n", Steps: []string{"a", "b"}})
	state.CurrentStepDescription = "a"
	state.CurrentSQL = "SELECT 1"
	state.CurrentSQLApproved = true
	state.CurrentExecutionError = "boom"

	require.True(t, state.AdvanceStep())
	assert.Equal(t, 1, state.CurrentStepIndex)
	assert.Equal(t, "b", state.CurrentStepDescription)
	assert.Empty(t, state.CurrentSQL)
	assert.False(t, state.CurrentSQLApproved)
	assert.Empty(t, state.CurrentExecutionError)

	assert.False(t, state.AdvanceStep())
	assert.Equal(t, 2, state.CurrentStepIndex)
	assert.True(t, state.StepsExhausted())

	assert.False(t, state.AdvanceStep())
	assert.Equal(t, 2, state.CurrentStepIndex)
}

func TestWorkflowState_RecordExecution(t *testing.T) {
	state := NewWorkflowState(Pattern{ID: "P1", Name: "n"})
	res := &QueryResult{Columns: []string{"a"}, Rows: [][]any{{1}}}

	state.RecordExecution(res, nil)
	assert.Equal(t, 1, state.CurrentExecutionResult.RowCount())
	assert.Empty(t, state.CurrentExecutionError)

	state.RecordExecution(nil, errors.New("syntax error"))
	assert.Nil(t, state.CurrentExecutionResult)
	assert.Equal(t, "syntax error", state.CurrentExecutionError)

	state.RecordFinalExecution(nil, errors.New(""))
	assert.Nil(t, state.FinalExecutionResult)
	assert.NotEmpty(t, state.FinalExecutionError)
}

func TestWorkflowState_View(t *testing.T) {
	state := NewWorkflowState(Pattern{ID: "P1", Name: "n", Steps: []string{"a"}})
	state.CurrentStepDescription = "a"
	state.CurrentSQL = "SELECT step"
	state.SetFinalFunction("SELECT final", "detect_p1")
	state.RecordFinalExecution(nil, errors.New("bad"))

	step := state.View(NodeAwaitSQLApproval)
	assert.Equal(t, "SELECT step", step.SQL)
	assert.Equal(t, 1, step.StepNumber)
	assert.Equal(t, 1, step.TotalSteps)

	final := state.View(NodeAwaitFinalApproval)
	assert.Equal(t, "SELECT final", final.SQL)
	assert.Equal(t, "detect_p1", final.FunctionName)
	assert.Equal(t, "bad", final.Error)
	assert.Nil(t, final.Result)

	// Once steps are exhausted the step number stays within range
	state.AdvanceStep()
	assert.Equal(t, 1, state.View(NodeAwaitFinalApproval).StepNumber)
}

func TestQueryResult_Records(t *testing.T) {
	var nilResult *QueryResult
	assert.Equal(t, 0, nilResult.RowCount())
	assert.Nil(t, nilResult.Records())

	res := &QueryResult{Columns: []string{"id", "amount"}, Rows: [][]any{{"c1", 10.5}}}
	assert.Equal(t, []map[string]any{{"id": "c1", "amount": 10.5}}, res.Records())
}
