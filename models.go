package fraudflow

import (
	"time"
)

// RunStatus represents the current state of a pattern run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// IsTerminal returns true if the status is a final state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// String returns the string representation
func (s RunStatus) String() string {
	return string(s)
}

// Decision is the outcome of a human review
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApproved Decision = "approved"
	DecisionEdited   Decision = "edited"
	DecisionRejected Decision = "rejected"
)

// String returns the string representation
func (d Decision) String() string {
	return string(d)
}

// NodeID identifies a state-machine node
type NodeID string

const (
	NodeParsePattern           NodeID = "parse_pattern"
	NodeGenerateSQL            NodeID = "generate_sql"
	NodeAwaitSQLApproval       NodeID = "await_sql_approval"
	NodeExecuteStep            NodeID = "execute_step"
	NodeAwaitExecutionFeedback NodeID = "await_execution_feedback"
	NodeStoreStep              NodeID = "store_step"
	NodeNextStep               NodeID = "next_step"
	NodeCombineFunction        NodeID = "combine_function"
	NodeExecuteFinal           NodeID = "execute_final"
	NodeAwaitFinalApproval     NodeID = "await_final_approval"
	NodeRethink                NodeID = "rethink"
	NodeInsertTool             NodeID = "insert_tool"
	NodeComplete               NodeID = "complete"
)

// String returns the string representation
func (n NodeID) String() string {
	return string(n)
}

// NodeKind classifies a node in the execution graph
type NodeKind string

const (
	NodeKindAction     NodeKind = "ACTION"
	NodeKindSuspension NodeKind = "SUSPENSION"
	NodeKindTerminal   NodeKind = "TERMINAL"
)

// Pattern is a fraud-detection scenario with ordered natural-language steps
type Pattern struct {
	ID          string   `json:"pattern_id" yaml:"pattern_id"`
	Name        string   `json:"pattern_name" yaml:"pattern_name"`
	Severity    string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Steps       []string `json:"steps" yaml:"steps"`
}

// Validate checks the fields a run cannot proceed without
func (p Pattern) Validate() error {
	if p.ID == "" {
		return NewWorkflowError(ErrCodeValidation, "pattern_id is required")
	}
	if p.Name == "" {
		return NewWorkflowError(ErrCodeValidation, "pattern_name is required").
			WithDetails(map[string]interface{}{"pattern_id": p.ID})
	}
	return nil
}

// QueryResult holds the columns and rows returned by the execution port
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RowCount returns the number of rows, zero for a nil result
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Records returns the rows keyed by column name
func (r *QueryResult) Records() []map[string]any {
	if r == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// StepRecord is an approved, executed step. Immutable once stored.
type StepRecord struct {
	StepIndex   int       `json:"stepIndex" dynamodbav:"step_index"`
	StepID      string    `json:"stepId" dynamodbav:"step_id"`
	Description string    `json:"description" dynamodbav:"description"`
	SQL         string    `json:"sql" dynamodbav:"sql"`
	Approved    bool      `json:"approved" dynamodbav:"approved"`
	Edited      bool      `json:"edited" dynamodbav:"edited"`
	RowCount    int       `json:"rowCount" dynamodbav:"row_count"`
	Timestamp   time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// FinalFunction is the combined detection query
type FinalFunction struct {
	Name      string    `json:"name" dynamodbav:"name"`
	SQL       string    `json:"sql" dynamodbav:"sql"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// WorkflowState is the mutable aggregate for one pattern run. It is owned by
// a single engine walk and mutated only by node actions.
type WorkflowState struct {
	RunID string `json:"runId"`

	// Pattern identity, copied at start
	PatternID          string   `json:"patternId"`
	PatternName        string   `json:"patternName"`
	PatternDescription string   `json:"patternDescription"`
	Steps              []string `json:"steps"`

	// Current step
	CurrentStepIndex       int          `json:"currentStepIndex"`
	CurrentStepDescription string       `json:"currentStepDescription"`
	CurrentSQL             string       `json:"currentSql"`
	CurrentSQLApproved     bool         `json:"currentSqlApproved"`
	CurrentSQLEdited       bool         `json:"currentSqlEdited"`
	CurrentExecutionResult *QueryResult `json:"currentExecutionResult,omitempty"`
	CurrentExecutionError  string       `json:"currentExecutionError,omitempty"`

	AccumulatedSteps []StepRecord `json:"accumulatedSteps"`

	// Final function
	FinalSQL             string       `json:"finalSql"`
	FinalFunctionName    string       `json:"finalFunctionName"`
	FinalExecutionResult *QueryResult `json:"finalExecutionResult,omitempty"`
	FinalExecutionError  string       `json:"finalExecutionError,omitempty"`
	FinalApproved        bool         `json:"finalApproved"`
	RethinkFeedback      string       `json:"rethinkFeedback,omitempty"`

	// Tool
	ToolID       string `json:"toolId"`
	ToolInserted bool   `json:"toolInserted"`
	ToolError    string `json:"toolError,omitempty"`

	Status       RunStatus `json:"status"`
	LastDecision Decision  `json:"lastDecision"`

	// Walk bookkeeping
	Visits map[NodeID]int `json:"visits"`
	Trace  []NodeID       `json:"trace"`
}

// NewWorkflowState creates the state for one run of the given pattern
func NewWorkflowState(p Pattern) *WorkflowState {
	steps := make([]string, len(p.Steps))
	copy(steps, p.Steps)
	return &WorkflowState{
		PatternID:          p.ID,
		PatternName:        p.Name,
		PatternDescription: p.Description,
		Steps:              steps,
		AccumulatedSteps:   []StepRecord{},
		Status:             RunStatusPending,
		Visits:             make(map[NodeID]int),
		Trace:              []NodeID{},
	}
}

// TotalSteps returns the number of detection steps
func (s *WorkflowState) TotalSteps() int {
	return len(s.Steps)
}

// StepsExhausted reports whether every step has been stored
func (s *WorkflowState) StepsExhausted() bool {
	return s.CurrentStepIndex >= len(s.Steps)
}

// AppendStep adds an approved record to the accumulated steps
func (s *WorkflowState) AppendStep(rec StepRecord) {
	s.AccumulatedSteps = append(s.AccumulatedSteps, rec)
}

// ResetCurrentStep clears the per-step transient fields
func (s *WorkflowState) ResetCurrentStep() {
	s.CurrentSQL = ""
	s.CurrentSQLApproved = false
	s.CurrentSQLEdited = false
	s.CurrentExecutionResult = nil
	s.CurrentExecutionError = ""
}

// AdvanceStep moves to the next step and reports whether one remains.
// The index never passes len(Steps).
func (s *WorkflowState) AdvanceStep() bool {
	if s.CurrentStepIndex < len(s.Steps) {
		s.CurrentStepIndex++
	}
	s.ResetCurrentStep()
	if s.StepsExhausted() {
		s.CurrentStepDescription = ""
		return false
	}
	s.CurrentStepDescription = s.Steps[s.CurrentStepIndex]
	return true
}

// SetCandidateSQL installs freshly generated SQL awaiting review
func (s *WorkflowState) SetCandidateSQL(sql string) {
	s.CurrentSQL = sql
	s.CurrentSQLApproved = false
	s.CurrentSQLEdited = false
	s.CurrentExecutionResult = nil
	s.CurrentExecutionError = ""
}

// AcceptEditedSQL replaces the candidate with reviewer-supplied SQL
func (s *WorkflowState) AcceptEditedSQL(sql string) {
	s.CurrentSQL = sql
	s.CurrentSQLApproved = true
	s.CurrentSQLEdited = true
}

// RecordExecution captures a step execution outcome. Errors are data.
func (s *WorkflowState) RecordExecution(res *QueryResult, err error) {
	if err != nil {
		s.CurrentExecutionResult = nil
		s.CurrentExecutionError = errorText(err)
		return
	}
	s.CurrentExecutionResult = res
	s.CurrentExecutionError = ""
}

// SetFinalFunction installs a newly combined final query
func (s *WorkflowState) SetFinalFunction(sql, name string) {
	s.FinalSQL = sql
	s.FinalFunctionName = name
	s.FinalExecutionResult = nil
	s.FinalExecutionError = ""
	s.FinalApproved = false
}

// RecordFinalExecution captures the final execution outcome
func (s *WorkflowState) RecordFinalExecution(res *QueryResult, err error) {
	if err != nil {
		s.FinalExecutionResult = nil
		s.FinalExecutionError = errorText(err)
		return
	}
	s.FinalExecutionResult = res
	s.FinalExecutionError = ""
}

// View returns a read-only snapshot for a reviewer
func (s *WorkflowState) View(node NodeID) ReviewView {
	v := ReviewView{
		Node:            node,
		PatternID:       s.PatternID,
		PatternName:     s.PatternName,
		StepNumber:      s.CurrentStepIndex + 1,
		TotalSteps:      len(s.Steps),
		StepDescription: s.CurrentStepDescription,
	}
	if v.StepNumber > v.TotalSteps {
		v.StepNumber = v.TotalSteps
	}
	switch node {
	case NodeAwaitFinalApproval, NodeRethink:
		v.FunctionName = s.FinalFunctionName
		v.SQL = s.FinalSQL
		v.Result = s.FinalExecutionResult
		v.Error = s.FinalExecutionError
	default:
		v.SQL = s.CurrentSQL
		v.Result = s.CurrentExecutionResult
		v.Error = s.CurrentExecutionError
	}
	return v
}

func errorText(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown execution error"
}
