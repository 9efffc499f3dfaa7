package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sicko7947/fraudflow"
)

// ErrInputClosed is returned when the console input ends while a decision
// is pending
var ErrInputClosed = errors.New("review input closed")

// Console asks for decisions on a line-oriented terminal
type Console struct {
	out io.Writer

	once  sync.Once
	in    *bufio.Scanner
	lines chan string
	done  chan struct{}
	err   error
}

// NewConsole reads answers from in and writes artifacts and prompts to out
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		out:   out,
		in:    bufio.NewScanner(in),
		lines: make(chan string),
		done:  make(chan struct{}),
	}
}

// start feeds input lines to the channel until EOF. Reads happen on their
// own goroutine so a pending read can be abandoned on cancellation.
func (c *Console) start() {
	c.once.Do(func() {
		go func() {
			defer close(c.done)
			for c.in.Scan() {
				c.lines <- c.in.Text()
			}
			c.err = c.in.Err()
		}()
	})
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	c.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-c.lines:
		return line, nil
	case <-c.done:
		if c.err != nil {
			return "", fmt.Errorf("%w: %v", ErrInputClosed, c.err)
		}
		return "", ErrInputClosed
	}
}

// Ask prints prompt and returns the trimmed answer
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := c.Ask(ctx, question+" [yes/no]: ")
	if err != nil {
		return false, err
	}
	d, _ := ParseDecision(answer)
	return d == fraudflow.DecisionApproved, nil
}

// ReviewSQL prompts for a decision and reads edited SQL until an empty line
func (c *Console) ReviewSQL(ctx context.Context, view fraudflow.ReviewView) (fraudflow.SQLReview, error) {
	PrintView(c.out, "AWAITING SQL APPROVAL", view)
	fmt.Fprintln(c.out, "\nOptions:")
	fmt.Fprintln(c.out, "  [yes/y] - Approve and execute")
	fmt.Fprintln(c.out, "  [no/n]  - Reject and regenerate")
	fmt.Fprintln(c.out, "  [edit]  - Edit the SQL manually")

	answer, err := c.Ask(ctx, "\nYour choice: ")
	if err != nil {
		return fraudflow.SQLReview{}, err
	}

	decision, _ := ParseDecision(answer)
	if decision != fraudflow.DecisionEdited {
		return fraudflow.SQLReview{Decision: decision}, nil
	}

	fmt.Fprintln(c.out, "\nEnter your edited SQL (end with an empty line):")
	var lines []string
	for {
		line, err := c.readLine(ctx)
		if err != nil {
			return fraudflow.SQLReview{}, err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return fraudflow.SQLReview{Decision: fraudflow.DecisionEdited, SQL: strings.Join(lines, "\n")}, nil
}

// ReviewExecution asks whether the step result is acceptable
func (c *Console) ReviewExecution(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	PrintView(c.out, "AWAITING EXECUTION FEEDBACK", view)
	if view.Error != "" {
		fmt.Fprintln(c.out, "\nThe query failed. Answering yes regenerates the SQL either way.")
	} else {
		fmt.Fprintf(c.out, "\nResults look correct? (%d rows)\n", view.Result.RowCount())
	}
	fmt.Fprintln(c.out, "  [yes/y] - Results are correct, continue")
	fmt.Fprintln(c.out, "  [no/n]  - Results are wrong, regenerate SQL")

	return c.yesNo(ctx)
}

// ReviewFinal asks whether the final function should be inserted
func (c *Console) ReviewFinal(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	PrintView(c.out, "AWAITING FINAL APPROVAL", view)
	fmt.Fprintln(c.out, "\nAre these results correct?")
	fmt.Fprintln(c.out, "  [yes/y] - Approve and save as tool")
	fmt.Fprintln(c.out, "  [no/n]  - Reject and rethink")

	return c.yesNo(ctx)
}

// Rethink reads optional guidance for regenerating the final function
func (c *Console) Rethink(ctx context.Context, view fraudflow.ReviewView) (string, error) {
	fmt.Fprintf(c.out, "\n%s\nRETHINKING...\n%s\n", banner, banner)
	fmt.Fprintln(c.out, "\nWhat would you like to change?")
	return c.Ask(ctx, "Your feedback: ")
}

// yesNo reads one answer; anything but yes is a rejection
func (c *Console) yesNo(ctx context.Context) (fraudflow.Decision, error) {
	answer, err := c.Ask(ctx, "\nYour choice: ")
	if err != nil {
		return "", err
	}
	if d, _ := ParseDecision(answer); d == fraudflow.DecisionApproved {
		return d, nil
	}
	return fraudflow.DecisionRejected, nil
}
