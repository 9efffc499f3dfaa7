package engine

import (
	"fmt"
	"strings"

	"github.com/sicko7947/fraudflow"
)

const (
	generationSystemPrompt  = "You are a SQL expert. Generate ONLY SQL code, no explanations."
	combinationSystemPrompt = "You are a SQL expert. Generate ONLY SQL code, no markdown."

	// SQL shown per previous step in the continuity summary
	previousSQLPreview = 100
)

// buildStepPrompt asks for the SQL of the current step, with the schema and
// a summary of the steps already stored
func buildStepPrompt(state *fraudflow.WorkflowState, cfg fraudflow.RunConfig) string {
	var b strings.Builder

	b.WriteString("Generate Spark SQL for this fraud detection step:\n\n")
	fmt.Fprintf(&b, "Pattern: %s\n", state.PatternName)
	fmt.Fprintf(&b, "Overall Goal: %s\n\n", state.PatternDescription)
	b.WriteString(cfg.SchemaDescription)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Current Step (Step %d of %d):\n%s\n",
		state.CurrentStepIndex+1, state.TotalSteps(), state.CurrentStepDescription)

	if len(state.AccumulatedSteps) > 0 {
		b.WriteString("\nPrevious steps completed:\n")
		for _, rec := range state.AccumulatedSteps {
			fmt.Fprintf(&b, "- Step %d: %s\n", rec.StepIndex+1, rec.Description)
			fmt.Fprintf(&b, "  SQL: %s\n", fraudflow.Truncate(rec.SQL, previousSQLPreview))
		}
	}

	b.WriteString("\nRequirements:\n")
	fmt.Fprintf(&b, "1. Use table: %s\n", cfg.ClaimsTable)
	b.WriteString("2. Use EXACT column names from the schema above\n")
	b.WriteString("3. Return ONLY SQL (no markdown, no explanations)\n")
	b.WriteString("4. Use proper Spark SQL syntax\n")
	fmt.Fprintf(&b, "5. Include LIMIT %d\n", cfg.FinalRowLimit)
	b.WriteString("6. Build upon previous steps if applicable\n")
	b.WriteString("\nGenerate the SQL query:")

	return b.String()
}

// buildCombinePrompt asks for one query merging every stored step. When the
// reviewer rejected a previous attempt, that attempt and the feedback are
// included.
func buildCombinePrompt(state *fraudflow.WorkflowState, steps []fraudflow.StepRecord, previousSQL string, cfg fraudflow.RunConfig) string {
	var b strings.Builder

	b.WriteString("Combine these SQL steps into a single, optimized SQL query for fraud detection:\n\n")
	fmt.Fprintf(&b, "Pattern: %s\n", state.PatternName)
	fmt.Fprintf(&b, "Goal: %s\n\n", state.PatternDescription)

	b.WriteString("Individual Steps:\n")
	if len(steps) == 0 {
		b.WriteString("(no individual steps were recorded; derive the query from the goal and the schema)\n\n")
		b.WriteString(cfg.SchemaDescription)
		b.WriteString("\n")
	}
	for i, rec := range steps {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "-- Step %d: %s\n%s\n", rec.StepIndex+1, rec.Description, rec.SQL)
	}

	if state.RethinkFeedback != "" {
		b.WriteString("\nReviewer feedback on the previous attempt:\n")
		b.WriteString(state.RethinkFeedback)
		b.WriteString("\n")
		if previousSQL != "" {
			fmt.Fprintf(&b, "\nPrevious attempt:\n%s\n", previousSQL)
		}
	}

	b.WriteString("\nRequirements:\n")
	b.WriteString("1. Combine into a single SELECT query\n")
	b.WriteString("2. Use CTEs (WITH clauses) if needed for clarity\n")
	b.WriteString("3. Return the final fraudulent claims with all relevant columns\n")
	fmt.Fprintf(&b, "4. Include LIMIT %d\n", cfg.FinalRowLimit)
	fmt.Fprintf(&b, "5. Use table: %s\n", cfg.ClaimsTable)
	b.WriteString("6. Optimize for performance\n")
	b.WriteString("7. Return ONLY the SQL, no explanations\n")
	b.WriteString("\nGenerate the combined SQL:")

	return b.String()
}
