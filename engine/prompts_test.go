package engine

import (
	"strings"
	"testing"

	"github.com/sicko7947/fraudflow"
	"github.com/stretchr/testify/assert"
)

func TestBuildStepPrompt(t *testing.T) {
	cfg := fraudflow.DefaultRunConfig
	s := fraudflow.NewWorkflowState(testPattern("find duplicates", "filter amounts"))
	s.CurrentStepIndex = 1
	s.CurrentStepDescription = "filter amounts"
	s.AppendStep(fraudflow.StepRecord{
		StepIndex:   0,
		Description: "find duplicates",
		SQL:         "SELECT " + strings.Repeat("x", 200),
	})

	prompt := buildStepPrompt(s, cfg)

	assert.Contains(t, prompt, "Pattern: Duplicate Billing")
	assert.Contains(t, prompt, "Current Step (Step 2 of 2):\nfilter amounts")
	assert.Contains(t, prompt, "- Step 1: find duplicates")
	assert.Contains(t, prompt, "...")
	assert.NotContains(t, prompt, strings.Repeat("x", 150))
	assert.Contains(t, prompt, cfg.ClaimsTable)
	assert.Contains(t, prompt, cfg.SchemaDescription)
}

func TestBuildCombinePrompt(t *testing.T) {
	cfg := fraudflow.DefaultRunConfig
	s := fraudflow.NewWorkflowState(testPattern("a", "b"))
	steps := []fraudflow.StepRecord{
		{StepIndex: 0, Description: "a", SQL: "SELECT a"},
		{StepIndex: 1, Description: "b", SQL: "SELECT b"},
	}

	prompt := buildCombinePrompt(s, steps, "", cfg)
	assert.Contains(t, prompt, "-- Step 1: a\nSELECT a")
	assert.Contains(t, prompt, "-- Step 2: b\nSELECT b")
	assert.NotContains(t, prompt, "Reviewer feedback")
	assert.NotContains(t, prompt, "no individual steps")

	s.RethinkFeedback = "exclude refunds"
	prompt = buildCombinePrompt(s, steps, "SELECT old", cfg)
	assert.Contains(t, prompt, "Reviewer feedback on the previous attempt:\nexclude refunds")
	assert.Contains(t, prompt, "Previous attempt:\nSELECT old")
}
