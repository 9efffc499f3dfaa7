package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sicko7947/fraudflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "fraudflow",
	Short:         "Build fraud detection SQL tools with human review",
	Long:          "Turn a fraud pattern into step-by-step SQL, review every step, combine the steps into one detection query and register it as a reusable tool.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("patterns", "", "patterns file, overrides patterns.file")

	runCmd.Flags().Bool("auto", false, "approve every decision without prompting")
	runCmd.Flags().BoolP("yes", "y", false, "skip the start confirmation")
	runCmd.Flags().String("review-addr", "", "serve review decisions over HTTP on this address instead of the console")
	runCmd.Flags().String("pattern-id", "", "run this pattern instead of the first one")

	insertToolCmd.Flags().String("pattern-id", "", "pattern the tool belongs to")
	insertToolCmd.Flags().String("file", "", "markdown document holding the final SQL (default output.dir/output.sql_code_file)")
	_ = insertToolCmd.MarkFlagRequired("pattern-id")

	rootCmd.AddCommand(runCmd, insertToolCmd, showPatternCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("fraudflow failed")
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config and applies the log level
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)

	if patterns, _ := cmd.Flags().GetString("patterns"); patterns != "" {
		cfg.Patterns.File = patterns
	}
	if cfg.File != "" {
		log.Debug().Str("file", cfg.File).Msg("Config loaded")
	}
	return cfg, nil
}
