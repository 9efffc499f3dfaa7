package review

import (
	"context"
	"io"

	"github.com/sicko7947/fraudflow"
)

// Auto approves everything. Artifacts are still printed when out is set so
// unattended runs leave a readable transcript.
type Auto struct {
	out io.Writer
}

// NewAuto creates an auto-approving reviewer; out may be nil
func NewAuto(out io.Writer) *Auto {
	if out == nil {
		out = io.Discard
	}
	return &Auto{out: out}
}

// ReviewSQL approves the generated SQL as is
func (a *Auto) ReviewSQL(ctx context.Context, view fraudflow.ReviewView) (fraudflow.SQLReview, error) {
	PrintView(a.out, "AUTO-APPROVING SQL", view)
	return fraudflow.SQLReview{Decision: fraudflow.DecisionApproved}, ctx.Err()
}

// ReviewExecution approves the step result
func (a *Auto) ReviewExecution(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	PrintView(a.out, "AUTO-APPROVING EXECUTION", view)
	return fraudflow.DecisionApproved, ctx.Err()
}

// ReviewFinal approves the final function
func (a *Auto) ReviewFinal(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	PrintView(a.out, "AUTO-APPROVING FINAL FUNCTION", view)
	return fraudflow.DecisionApproved, ctx.Err()
}

// Rethink returns no feedback
func (a *Auto) Rethink(ctx context.Context, view fraudflow.ReviewView) (string, error) {
	return "", ctx.Err()
}
