package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sicko7947/fraudflow"
	"github.com/sicko7947/fraudflow/store"
	"github.com/spf13/cobra"
)

var insertToolCmd = &cobra.Command{
	Use:   "insert-tool",
	Short: "Insert the final SQL function as a tool",
	Long: `Read the last SQL block of the generated document, upsert it into the tools
table and point the pattern at the new tool.`,
	Args: cobra.NoArgs,
	RunE: runInsertTool,
}

func runInsertTool(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	patternID, _ := cmd.Flags().GetString("pattern-id")
	file, _ := cmd.Flags().GetString("file")

	var doc string
	switch {
	case file != "" || cfg.Storage.Backend != "dynamodb":
		if file == "" {
			file = cfg.SQLCodePath()
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("SQL file not found: %w", err)
		}
		doc = string(data)
	default:
		records, err := openStore(ctx, cfg, patternID)
		if err != nil {
			return err
		}
		if doc, err = records.Document(ctx); err != nil {
			return err
		}
	}

	finalSQL, err := store.ParseFinalSQL(doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Found final SQL function (%d characters)\n", len(finalSQL))

	executor, err := openExecutor(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize SQL executor: %w", err)
	}
	defer executor.Close()

	run := cfg.RunConfig()
	tool := fraudflow.ToolRecord{
		ToolID:      fraudflow.ToolID(patternID),
		PatternID:   patternID,
		PolicyID:    run.PolicyID,
		SQL:         finalSQL,
		TargetTable: run.ToolsTable,
	}
	if err := executor.UpsertTool(ctx, tool); err != nil {
		fraudflow.LogToolInsertFailed(log.Logger, tool.ToolID, err)
		return err
	}
	fraudflow.LogToolInserted(log.Logger, tool.ToolID, patternID)

	status := "Inserted and Active"
	if err := executor.LinkPatternTool(ctx, patternID, tool.ToolID, run.PatternsTable); err != nil {
		fraudflow.LogPatternLinkFailed(log.Logger, patternID, tool.ToolID, err)
		status = "Inserted, pattern not linked"
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n%s\nTOOL INSERTION COMPLETE\n%s\n", rule, rule)
	fmt.Fprintf(out, "  Tool ID:    %s\n", tool.ToolID)
	fmt.Fprintf(out, "  Pattern ID: %s\n", patternID)
	fmt.Fprintf(out, "  Policy ID:  %s\n", tool.PolicyID)
	fmt.Fprintf(out, "  Status:     %s\n", status)
	fmt.Fprintf(out, "  SQL Length: %d characters\n", len(finalSQL))
	fmt.Fprintln(out, rule)
	return nil
}
