package fraudflow

// RunConfig holds engine-level run parameters
type RunConfig struct {
	// Row limits applied by the execution port
	StepRowLimit  int
	FinalRowLimit int

	// Target tables
	ClaimsTable   string
	ToolsTable    string
	PatternsTable string

	PolicyID string

	// MaxTransitions bounds the graph walk. 0 disables the limit.
	MaxTransitions int

	// Attempts made against the completer when generation or combination fails
	CompletionAttempts int

	SchemaDescription string
}

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "LINEAR"
	BackoffExponential BackoffStrategy = "EXPONENTIAL"
	BackoffNone        BackoffStrategy = "NONE"
)

// PollConfig controls how the generation port polls its backend
type PollConfig struct {
	MaxRetries   int
	RetryDelayMs int
	// Backoff NONE keeps the delay fixed at RetryDelayMs
	Backoff BackoffStrategy
}

// DefaultSchemaDescription describes the claims table to the SQL generators
const DefaultSchemaDescription = `Table: fraud_detection.test_data.claims
Columns:
  - claim_id STRING (primary key)
  - patient_id STRING
  - provider_npi STRING
  - provider_tin STRING
  - provider_specialty STRING
  - service_date DATE
  - procedure_code STRING (surgical procedure codes like 27447, 29881)
  - global_days_value STRING (values: '010', '090', '000', 'XXX')
  - em_code STRING (E/M codes like 99213, 99214; NULL if not E/M)
  - modifier_24 STRING (NULL if missing)
  - modifier_58 STRING (NULL if missing)
  - fare_amount DOUBLE
  - claim_status STRING
  - created_at TIMESTAMP`

// DefaultRunConfig provides sensible defaults
var DefaultRunConfig = RunConfig{
	StepRowLimit:       20,
	FinalRowLimit:      50,
	ClaimsTable:        "fraud_detection.test_data.claims",
	ToolsTable:         "fraud_detection.policies.sql_tools",
	PatternsTable:      "fraud_detection.policies.patterns",
	PolicyID:           "UHC-POL-2026-0005A",
	MaxTransitions:     100,
	CompletionAttempts: 3,
	SchemaDescription:  DefaultSchemaDescription,
}

// DefaultPollConfig polls every two seconds for up to a minute
var DefaultPollConfig = PollConfig{
	MaxRetries:   30,
	RetryDelayMs: 2000,
	Backoff:      BackoffNone,
}

// WithDefaults fills zero fields from DefaultRunConfig
func (c RunConfig) WithDefaults() RunConfig {
	d := DefaultRunConfig
	if c.StepRowLimit <= 0 {
		c.StepRowLimit = d.StepRowLimit
	}
	if c.FinalRowLimit <= 0 {
		c.FinalRowLimit = d.FinalRowLimit
	}
	if c.ClaimsTable == "" {
		c.ClaimsTable = d.ClaimsTable
	}
	if c.ToolsTable == "" {
		c.ToolsTable = d.ToolsTable
	}
	if c.PatternsTable == "" {
		c.PatternsTable = d.PatternsTable
	}
	if c.PolicyID == "" {
		c.PolicyID = d.PolicyID
	}
	if c.MaxTransitions < 0 {
		c.MaxTransitions = 0
	}
	if c.CompletionAttempts <= 0 {
		c.CompletionAttempts = d.CompletionAttempts
	}
	if c.SchemaDescription == "" {
		c.SchemaDescription = d.SchemaDescription
	}
	return c
}
