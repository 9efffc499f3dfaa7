package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/sicko7947/fraudflow"
	"github.com/sicko7947/fraudflow/engine"
	"github.com/sicko7947/fraudflow/metrics"
	"github.com/sicko7947/fraudflow/review"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection workflow for a pattern",
	Long: `Generate SQL for each step of a pattern with Genie, review and execute every
step, combine the steps into a final detection query and insert it as a tool.`,
	Args: cobra.NoArgs,
	RunE: runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(out, "Configuration validation failed. Set the missing values in config.yaml or the environment.")
		return err
	}

	patterns, err := fraudflow.LoadPatterns(cfg.Patterns.File)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		return fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation, "no patterns found in "+cfg.Patterns.File)
	}
	log.Info().Int("count", len(patterns)).Str("file", cfg.Patterns.File).Msg("Patterns loaded")

	pattern := patterns[0]
	if id, _ := cmd.Flags().GetString("pattern-id"); id != "" {
		if pattern, err = fraudflow.FindPattern(patterns, id); err != nil {
			return err
		}
	}
	printPattern(out, pattern)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auto, _ := cmd.Flags().GetBool("auto")
	yes, _ := cmd.Flags().GetBool("yes")
	reviewAddr, _ := cmd.Flags().GetString("review-addr")

	var console *review.Console
	if !auto && (reviewAddr == "" || !yes) {
		console = review.NewConsole(cmd.InOrStdin(), out)
	}

	if !auto && !yes {
		printPlan(out)
		proceed, err := console.Confirm(ctx, "\nProceed?")
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(out, "Aborted by user.")
			return nil
		}
	}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return err
	}

	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	executor, err := openExecutor(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize SQL executor: %w", err)
	}
	defer executor.Close()

	records, err := openStore(ctx, cfg, pattern.ID)
	if err != nil {
		return fmt.Errorf("failed to initialize SQL storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	workflowMetrics := metrics.NewProm(cfg.Metrics.Namespace, registry)

	var reviewer fraudflow.Reviewer
	switch {
	case auto:
		reviewer = review.NewAuto(out)
	case reviewAddr != "":
		server := review.NewHTTPReviewer(
			review.WithLogger(log.Logger),
			review.WithMetricsHandler(metrics.HandlerFor(registry)),
		)
		go func() {
			if err := server.Listen(reviewAddr); err != nil {
				log.Error().Err(err).Str("address", reviewAddr).Msg("Review server stopped")
				stop()
			}
		}()
		defer func() {
			if err := server.Shutdown(5 * time.Second); err != nil {
				log.Warn().Err(err).Msg("Review server shutdown failed")
			}
		}()
		reviewer = server
	default:
		reviewer = console
	}

	eng, err := engine.NewEngine(engine.Ports{
		Generator: generator,
		Completer: completer,
		Executor:  executor,
		Records:   records,
		Reviewer:  reviewer,
	},
		engine.WithLogger(log.Logger),
		engine.WithConfig(cfg.RunConfig()),
		engine.WithMetrics(workflowMetrics),
	)
	if err != nil {
		return err
	}

	state, err := eng.Run(ctx, pattern)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "\nWorkflow interrupted by user.")
		}
		return err
	}

	printSummary(out, state, records.Location())
	return nil
}

func printPlan(w io.Writer) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\nREADY TO START THE WORKFLOW\n%s\n", rule, rule)
	fmt.Fprintln(w, "This will:")
	fmt.Fprintln(w, "  1. Generate SQL for each step using Genie")
	fmt.Fprintln(w, "  2. Ask for your approval at each step")
	fmt.Fprintln(w, "  3. Execute and validate each step")
	fmt.Fprintln(w, "  4. Combine the steps into a final function")
	fmt.Fprintln(w, "  5. Insert the tool into the database")
}

func printSummary(w io.Writer, state *fraudflow.WorkflowState, location string) {
	rule := strings.Repeat("=", 60)
	flagged := 0
	if state.FinalExecutionResult != nil {
		flagged = state.FinalExecutionResult.RowCount()
	}

	fmt.Fprintf(w, "\n%s\nWORKFLOW COMPLETE\n%s\n", rule, rule)
	fmt.Fprintf(w, "  Pattern:           %s\n", state.PatternName)
	fmt.Fprintf(w, "  Status:            %s\n", state.Status)
	fmt.Fprintf(w, "  Tool ID:           %s\n", orNA(state.ToolID))
	fmt.Fprintf(w, "  Tool Inserted:     %t\n", state.ToolInserted)
	if state.ToolError != "" {
		fmt.Fprintf(w, "  Tool Error:        %s\n", state.ToolError)
	}
	fmt.Fprintf(w, "  Fraudulent Claims: %d\n", flagged)
	fmt.Fprintf(w, "  SQL Code saved to: %s\n", location)
	fmt.Fprintln(w, rule)
}
