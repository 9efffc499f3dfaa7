package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sicko7947/fraudflow"
)

var sqlBlockPattern = regexp.MustCompile("(?s)```sql\n(.*?)\n```")

// Render produces the SQL storage document for the given records
func Render(steps []fraudflow.StepRecord, final *fraudflow.FinalFunction, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# SQL Code Storage\n")
	fmt.Fprintf(&b, "\nGenerated at: %s\n\n", generatedAt.Format(time.RFC3339))

	b.WriteString("## Step Queries\n\n")
	for i, step := range steps {
		status := "Pending"
		if step.Approved {
			status = "Approved"
		}
		edited := ""
		if step.Edited {
			edited = " (Edited)"
		}

		fmt.Fprintf(&b, "### Step %d: %s%s\n", i+1, step.StepID, edited)
		fmt.Fprintf(&b, "\n**Description:** %s\n", step.Description)
		fmt.Fprintf(&b, "\n**Status:** %s\n", status)
		fmt.Fprintf(&b, "\n**Timestamp:** %s\n", step.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(&b, "\n```sql\n%s\n```\n\n", strings.TrimSpace(step.SQL))
	}

	if final != nil {
		b.WriteString("## Final Combined Function\n\n")
		fmt.Fprintf(&b, "**Function Name:** %s\n", final.Name)
		fmt.Fprintf(&b, "\n**Timestamp:** %s\n", final.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(&b, "\n```sql\n%s\n```\n", strings.TrimSpace(final.SQL))
	}

	return b.String()
}

// ParseFinalSQL returns the last SQL block of a rendered document, which is
// the final function when one was stored
func ParseFinalSQL(doc string) (string, error) {
	blocks := sqlBlockPattern.FindAllStringSubmatch(doc, -1)
	if len(blocks) == 0 {
		return "", fraudflow.NewWorkflowError(fraudflow.ErrCodeNotFound, "no SQL blocks found in document")
	}
	return strings.TrimSpace(blocks[len(blocks)-1][1]), nil
}
