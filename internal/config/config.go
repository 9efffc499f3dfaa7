package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sicko7947/fraudflow"
	"github.com/spf13/viper"
)

// Config holds the configuration for the CLI.
type Config struct {
	Databricks struct {
		Host  string `mapstructure:"host"`
		Token string `mapstructure:"token"`
	} `mapstructure:"databricks"`
	Genie struct {
		SpaceID      string `mapstructure:"space_id"`
		MaxRetries   int    `mapstructure:"max_retries"`
		RetryDelayMs int    `mapstructure:"retry_delay_ms"`
		Backoff      string `mapstructure:"backoff"`
	} `mapstructure:"genie"`
	SQL struct {
		Driver         string `mapstructure:"driver"`
		DSN            string `mapstructure:"dsn"`
		ServerHostname string `mapstructure:"server_hostname"`
		HTTPPath       string `mapstructure:"http_path"`
	} `mapstructure:"sql"`
	LLM struct {
		Provider        string `mapstructure:"provider"`
		AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
		AnthropicModel  string `mapstructure:"anthropic_model"`
		OpenAIAPIKey    string `mapstructure:"openai_api_key"`
		OpenAIModel     string `mapstructure:"openai_model"`
		// BaseURL overrides the provider endpoint, e.g. for a gateway
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"llm"`
	Output struct {
		Dir         string `mapstructure:"dir"`
		SQLCodeFile string `mapstructure:"sql_code_file"`
	} `mapstructure:"output"`
	Storage struct {
		Backend       string `mapstructure:"backend"`
		DynamoDBTable string `mapstructure:"dynamodb_table"`
		TTLHours      int    `mapstructure:"ttl_hours"`
	} `mapstructure:"storage"`
	Tables struct {
		Claims   string `mapstructure:"claims"`
		Tools    string `mapstructure:"tools"`
		Patterns string `mapstructure:"patterns"`
	} `mapstructure:"tables"`
	PolicyID string `mapstructure:"policy_id"`
	Patterns struct {
		File string `mapstructure:"file"`
	} `mapstructure:"patterns"`
	Engine struct {
		MaxTransitions     int `mapstructure:"max_transitions"`
		StepRowLimit       int `mapstructure:"step_row_limit"`
		FinalRowLimit      int `mapstructure:"final_row_limit"`
		CompletionAttempts int `mapstructure:"completion_attempts"`
	} `mapstructure:"engine"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Metrics struct {
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"metrics"`

	// File is the config file that was read, if any
	File string `mapstructure:"-"`
}

// legacyEnv maps keys to the environment names used by earlier deployments.
// Keys without an entry are read from their upper-cased, underscored form.
var legacyEnv = map[string][]string{
	"sql.server_hostname":   {"SQL_SERVER_HOSTNAME", "DBSQL_SERVER_HOSTNAME"},
	"sql.http_path":         {"SQL_HTTP_PATH", "DBSQL_HTTP_PATH"},
	"llm.anthropic_api_key": {"LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	"llm.anthropic_model":   {"LLM_ANTHROPIC_MODEL", "ANTHROPIC_MODEL"},
	"llm.openai_api_key":    {"LLM_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"llm.openai_model":      {"LLM_OPENAI_MODEL", "OPENAI_MODEL"},
	"output.sql_code_file":  {"OUTPUT_SQL_CODE_FILE", "SQL_CODE_FILE"},
}

func setDefaults(v *viper.Viper) {
	d := fraudflow.DefaultRunConfig
	p := fraudflow.DefaultPollConfig

	v.SetDefault("databricks.host", "")
	v.SetDefault("databricks.token", "")
	v.SetDefault("genie.space_id", "")
	v.SetDefault("genie.max_retries", p.MaxRetries)
	v.SetDefault("genie.retry_delay_ms", p.RetryDelayMs)
	v.SetDefault("genie.backoff", string(p.Backoff))
	v.SetDefault("sql.driver", "databricks")
	v.SetDefault("sql.dsn", "")
	v.SetDefault("sql.server_hostname", "")
	v.SetDefault("sql.http_path", "")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_model", "gpt-4o")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.sql_code_file", "sqlcode.md")
	v.SetDefault("storage.backend", "markdown")
	v.SetDefault("storage.dynamodb_table", "")
	v.SetDefault("storage.ttl_hours", 0)
	v.SetDefault("tables.claims", d.ClaimsTable)
	v.SetDefault("tables.tools", d.ToolsTable)
	v.SetDefault("tables.patterns", d.PatternsTable)
	v.SetDefault("policy_id", d.PolicyID)
	v.SetDefault("patterns.file", "policydb/patterns.json")
	v.SetDefault("engine.max_transitions", d.MaxTransitions)
	v.SetDefault("engine.step_row_limit", d.StepRowLimit)
	v.SetDefault("engine.final_row_limit", d.FinalRowLimit)
	v.SetDefault("engine.completion_attempts", d.CompletionAttempts)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "fraudflow")
}

// Load reads path (or config.yaml in . or ./config when path is empty) and
// the environment. A missing default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.Databricks.Host = strings.TrimRight(strings.TrimSpace(cfg.Databricks.Host), "/")
	cfg.SQL.Driver = strings.ToLower(strings.TrimSpace(cfg.SQL.Driver))
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	return &cfg, nil
}

// Validate reports every missing or invalid required setting at once
func (c *Config) Validate() error {
	var missing, invalid []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("databricks.host", c.Databricks.Host)
	require("databricks.token", c.Databricks.Token)
	require("genie.space_id", c.Genie.SpaceID)

	switch c.SQL.Driver {
	case "databricks":
		require("sql.server_hostname", c.SQL.ServerHostname)
		require("sql.http_path", c.SQL.HTTPPath)
	case "postgres", "sqlite":
		require("sql.dsn", c.SQL.DSN)
	default:
		invalid = append(invalid, fmt.Sprintf("sql.driver=%q", c.SQL.Driver))
	}

	switch c.LLM.Provider {
	case "anthropic":
		require("llm.anthropic_api_key", c.LLM.AnthropicAPIKey)
	case "openai":
		require("llm.openai_api_key", c.LLM.OpenAIAPIKey)
	default:
		invalid = append(invalid, fmt.Sprintf("llm.provider=%q", c.LLM.Provider))
	}

	switch c.Storage.Backend {
	case "markdown":
	case "dynamodb":
		require("storage.dynamodb_table", c.Storage.DynamoDBTable)
	default:
		invalid = append(invalid, fmt.Sprintf("storage.backend=%q", c.Storage.Backend))
	}

	switch fraudflow.BackoffStrategy(strings.ToUpper(c.Genie.Backoff)) {
	case fraudflow.BackoffNone, fraudflow.BackoffLinear, fraudflow.BackoffExponential:
	default:
		invalid = append(invalid, fmt.Sprintf("genie.backoff=%q", c.Genie.Backoff))
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(invalid, ", "))
	}
	return fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation, strings.Join(parts, "; ")).
		WithDetails(map[string]interface{}{
			"missing": missing,
			"invalid": invalid,
		})
}

// RunConfig converts the engine settings
func (c *Config) RunConfig() fraudflow.RunConfig {
	return fraudflow.RunConfig{
		StepRowLimit:       c.Engine.StepRowLimit,
		FinalRowLimit:      c.Engine.FinalRowLimit,
		ClaimsTable:        c.Tables.Claims,
		ToolsTable:         c.Tables.Tools,
		PatternsTable:      c.Tables.Patterns,
		PolicyID:           c.PolicyID,
		MaxTransitions:     c.Engine.MaxTransitions,
		CompletionAttempts: c.Engine.CompletionAttempts,
	}.WithDefaults()
}

// PollConfig converts the Genie polling settings
func (c *Config) PollConfig() fraudflow.PollConfig {
	return fraudflow.PollConfig{
		MaxRetries:   c.Genie.MaxRetries,
		RetryDelayMs: c.Genie.RetryDelayMs,
		Backoff:      fraudflow.BackoffStrategy(strings.ToUpper(c.Genie.Backoff)),
	}
}

// SQLCodePath is where the markdown document is written
func (c *Config) SQLCodePath() string {
	return filepath.Join(c.Output.Dir, c.Output.SQLCodeFile)
}
