// Package review implements the human decision port: an interactive console,
// an unattended auto-approver and an HTTP decision server.
package review

import (
	"fmt"
	"io"
	"strings"

	"github.com/sicko7947/fraudflow"
)

// Kind names the question a reviewer is answering
type Kind string

const (
	KindSQL       Kind = "sql"
	KindExecution Kind = "execution"
	KindFinal     Kind = "final"
	KindRethink   Kind = "rethink"
)

// ParseDecision maps a typed answer to a decision. ok is false for input
// that is not a recognised answer.
func ParseDecision(input string) (decision fraudflow.Decision, ok bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y", "approve", "approved":
		return fraudflow.DecisionApproved, true
	case "edit", "edited":
		return fraudflow.DecisionEdited, true
	case "no", "n", "reject", "rejected":
		return fraudflow.DecisionRejected, true
	default:
		return fraudflow.DecisionRejected, false
	}
}

const (
	stepPreviewRows  = 5
	finalPreviewRows = 10
	banner           = "============================================================"
)

// PrintView writes the artifact under review
func PrintView(w io.Writer, title string, view fraudflow.ReviewView) {
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", banner, title, banner)

	switch view.Node {
	case fraudflow.NodeAwaitFinalApproval, fraudflow.NodeRethink:
		fmt.Fprintf(w, "\nPattern: %s (%s)\n", view.PatternName, view.PatternID)
		if view.FunctionName != "" {
			fmt.Fprintf(w, "Function: %s\n", view.FunctionName)
		}
	default:
		fmt.Fprintf(w, "\nStep %d/%d: %s\n", view.StepNumber, view.TotalSteps, view.StepDescription)
	}

	if view.SQL != "" {
		fmt.Fprintf(w, "\n```sql\n%s\n```\n", view.SQL)
	}

	if view.Node == fraudflow.NodeAwaitSQLApproval {
		return
	}
	if view.Error != "" {
		fmt.Fprintf(w, "\nExecution Error: %s\n", view.Error)
		return
	}
	if view.Result == nil {
		return
	}

	limit := stepPreviewRows
	if view.Node == fraudflow.NodeAwaitFinalApproval {
		limit = finalPreviewRows
	}
	printResult(w, view.Result, limit)
}

func printResult(w io.Writer, res *fraudflow.QueryResult, limit int) {
	records := res.Records()
	fmt.Fprintf(w, "\nReturned %d rows\n", len(records))
	for i, rec := range records {
		if i == limit {
			fmt.Fprintf(w, "  ... and %d more rows\n", len(records)-limit)
			break
		}
		parts := make([]string, 0, len(res.Columns))
		for _, col := range res.Columns {
			parts = append(parts, fmt.Sprintf("%s=%v", col, rec[col]))
		}
		fmt.Fprintf(w, "  Row %d: %s\n", i+1, strings.Join(parts, ", "))
	}
}
