package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog/log"
	"github.com/sicko7947/fraudflow"
	"github.com/sicko7947/fraudflow/genie"
	"github.com/sicko7947/fraudflow/internal/config"
	"github.com/sicko7947/fraudflow/llm"
	"github.com/sicko7947/fraudflow/sqlexec"
	"github.com/sicko7947/fraudflow/store"
)

func newGenerator(cfg *config.Config) (*genie.Client, error) {
	return genie.New(cfg.Databricks.Host, cfg.Databricks.Token, cfg.Genie.SpaceID,
		genie.WithPollConfig(cfg.PollConfig()),
		genie.WithLogger(log.Logger),
	)
}

func newCompleter(ctx context.Context, cfg *config.Config) (fraudflow.Completer, error) {
	settings := llm.Settings{Provider: cfg.LLM.Provider, BaseURL: cfg.LLM.BaseURL}
	switch cfg.LLM.Provider {
	case llm.ProviderOpenAI:
		settings.APIKey = cfg.LLM.OpenAIAPIKey
		settings.Model = cfg.LLM.OpenAIModel
	default:
		settings.APIKey = cfg.LLM.AnthropicAPIKey
		settings.Model = cfg.LLM.AnthropicModel
	}
	return llm.New(ctx, settings)
}

func openExecutor(ctx context.Context, cfg *config.Config) (*sqlexec.Executor, error) {
	dialect, err := sqlexec.ParseDialect(cfg.SQL.Driver)
	if err != nil {
		return nil, err
	}

	if dialect == sqlexec.DialectDatabricks {
		return sqlexec.OpenDatabricks(ctx, sqlexec.WarehouseConfig{
			ServerHostname: cfg.SQL.ServerHostname,
			HTTPPath:       cfg.SQL.HTTPPath,
			AccessToken:    cfg.Databricks.Token,
		}, sqlexec.WithLogger(log.Logger))
	}
	return sqlexec.Open(ctx, dialect, cfg.SQL.DSN, sqlexec.WithLogger(log.Logger))
}

// documentStore is a record store that can return its rendered document
type documentStore interface {
	fraudflow.RecordStore
	Document(ctx context.Context) (string, error)
}

// markdownDocument adapts MarkdownStore, whose document lives on disk
type markdownDocument struct {
	*store.MarkdownStore
}

func (m markdownDocument) Document(context.Context) (string, error) {
	return m.MarkdownStore.Document()
}

// openStore builds the configured record store. DynamoDB records are
// partitioned by pattern so runs of different patterns do not collide.
func openStore(ctx context.Context, cfg *config.Config, patternID string) (documentStore, error) {
	switch cfg.Storage.Backend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		var opts []store.DynamoDBOption
		if cfg.Storage.TTLHours > 0 {
			opts = append(opts, store.WithTTL(time.Duration(cfg.Storage.TTLHours)*time.Hour))
		}
		return store.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), cfg.Storage.DynamoDBTable, patternID, opts...), nil
	default:
		md, err := store.NewMarkdownStore(cfg.Output.Dir, cfg.Output.SQLCodeFile)
		if err != nil {
			return nil, err
		}
		return markdownDocument{md}, nil
	}
}
