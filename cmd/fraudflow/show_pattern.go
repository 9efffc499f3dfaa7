package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sicko7947/fraudflow"
	"github.com/spf13/cobra"
)

var showPatternCmd = &cobra.Command{
	Use:   "show-pattern [pattern-id]",
	Short: "Show the configured patterns",
	Long:  "Print a summary of every pattern in the patterns file, or of one pattern by ID",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShowPattern,
}

func runShowPattern(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	patterns, err := fraudflow.LoadPatterns(cfg.Patterns.File)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		p, err := fraudflow.FindPattern(patterns, args[0])
		if err != nil {
			return err
		}
		printPattern(out, p)
		return nil
	}

	fmt.Fprintf(out, "Loaded %d pattern(s) from %s\n", len(patterns), cfg.Patterns.File)
	for _, p := range patterns {
		printPattern(out, p)
	}
	return nil
}

func printPattern(w io.Writer, p fraudflow.Pattern) {
	rule := strings.Repeat("-", 50)
	fmt.Fprintf(w, "\n%s\nPATTERN INFORMATION\n%s\n", rule, rule)
	fmt.Fprintf(w, "  Pattern ID:   %s\n", p.ID)
	fmt.Fprintf(w, "  Pattern Name: %s\n", p.Name)
	fmt.Fprintf(w, "  Severity:     %s\n", orNA(p.Severity))
	fmt.Fprintf(w, "  Description:  %s\n", fraudflow.Truncate(orNA(p.Description), 80))
	fmt.Fprintf(w, "  Total Steps:  %d\n", len(p.Steps))

	if len(p.Steps) > 0 {
		fmt.Fprintln(w, "\n  Detection Steps:")
		for i, step := range p.Steps {
			fmt.Fprintf(w, "    Step %d: %s\n", i+1, fraudflow.Truncate(step, 70))
		}
	}
	fmt.Fprintln(w, rule)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
