package fraudflow

import "context"

// SQLGenerator turns a natural-language prompt into candidate SQL. It returns
// either non-empty SQL and a nil error, or an error.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, prompt string) (string, error)
}

// Completer is a direct LLM completion, used as the generation fallback and
// to combine step queries.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ToolRecord is the row written when a final query becomes a reusable tool
type ToolRecord struct {
	ToolID    string
	PatternID string
	PolicyID  string
	SQL       string
	// Table the tool row is written to
	TargetTable string
}

// SQLExecutor runs SQL against the claims data source
type SQLExecutor interface {
	// Run executes sql and returns at most rowLimit rows
	Run(ctx context.Context, sql string, rowLimit int) (*QueryResult, error)

	// UpsertTool deletes any record with the same tool id, then inserts
	UpsertTool(ctx context.Context, tool ToolRecord) error

	// LinkPatternTool points the pattern record at the tool and activates it
	LinkPatternTool(ctx context.Context, patternID, toolID, patternsTable string) error
}

// RecordStore is the durable log of approved step SQL and the final function.
// Every write re-renders the human-readable document.
type RecordStore interface {
	// Clear empties the records and deletes the rendered document
	Clear(ctx context.Context) error

	// AppendStep records an approved step
	AppendStep(ctx context.Context, rec StepRecord) error

	// SetFinalFunction records or replaces the combined function
	SetFinalFunction(ctx context.Context, sql, name string) error

	// Steps returns stored records in step order
	Steps(ctx context.Context) ([]StepRecord, error)

	// Final returns the combined function, or nil when none is stored
	Final(ctx context.Context) (*FinalFunction, error)

	// Location names where the rendered document lives
	Location() string
}

// ReviewView is a read-only snapshot handed to a reviewer
type ReviewView struct {
	Node            NodeID       `json:"node"`
	PatternID       string       `json:"patternId"`
	PatternName     string       `json:"patternName"`
	StepNumber      int          `json:"stepNumber"`
	TotalSteps      int          `json:"totalSteps"`
	StepDescription string       `json:"stepDescription,omitempty"`
	FunctionName    string       `json:"functionName,omitempty"`
	SQL             string       `json:"sql"`
	Result          *QueryResult `json:"result,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// SQLReview is the outcome of reviewing candidate SQL
type SQLReview struct {
	Decision Decision
	// SQL holds the replacement text when Decision is DecisionEdited
	SQL string
}

// Reviewer is the human decision port. Every method blocks until a decision
// is made or ctx is done.
type Reviewer interface {
	ReviewSQL(ctx context.Context, view ReviewView) (SQLReview, error)
	ReviewExecution(ctx context.Context, view ReviewView) (Decision, error)
	ReviewFinal(ctx context.Context, view ReviewView) (Decision, error)
	Rethink(ctx context.Context, view ReviewView) (string, error)
}
