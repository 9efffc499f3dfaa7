// Package genie generates SQL through the Databricks Genie conversation API.
//
// A Client keeps one conversation open per instance so that successive
// prompts for the same pattern share context, the same way a human would
// keep talking to Genie in a single thread.
package genie

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/dashboards"
	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
)

const greeting = "Hello, I need help generating SQL queries for fraud detection."

// ErrNoSQL is returned when Genie completes with a text-only answer
var ErrNoSQL = errors.New("no SQL query generated, Genie provided a text response only")

// ConversationAPI is the part of the Genie service a Client drives
type ConversationAPI interface {
	// StartConversation opens a conversation and returns its id
	StartConversation(ctx context.Context, spaceID, content string) (string, error)

	// CreateMessage posts content and returns the new message id
	CreateMessage(ctx context.Context, spaceID, conversationID, content string) (string, error)

	GetMessage(ctx context.Context, spaceID, conversationID, messageID string) (*dashboards.GenieMessage, error)
}

// workspaceAPI calls Genie through the workspace client. The SDK's waiters
// are not used; polling follows the client's PollConfig.
type workspaceAPI struct {
	genie dashboards.GenieInterface
}

func (w workspaceAPI) StartConversation(ctx context.Context, spaceID, content string) (string, error) {
	wait, err := w.genie.StartConversation(ctx, dashboards.GenieStartConversationMessageRequest{
		SpaceId: spaceID,
		Content: content,
	})
	if err != nil {
		return "", err
	}
	return wait.ConversationId, nil
}

func (w workspaceAPI) CreateMessage(ctx context.Context, spaceID, conversationID, content string) (string, error) {
	wait, err := w.genie.CreateMessage(ctx, dashboards.GenieCreateConversationMessageRequest{
		SpaceId:        spaceID,
		ConversationId: conversationID,
		Content:        content,
	})
	if err != nil {
		return "", err
	}
	return wait.MessageId, nil
}

func (w workspaceAPI) GetMessage(ctx context.Context, spaceID, conversationID, messageID string) (*dashboards.GenieMessage, error) {
	return w.genie.GetMessage(ctx, dashboards.GenieGetConversationMessageRequest{
		SpaceId:        spaceID,
		ConversationId: conversationID,
		MessageId:      messageID,
	})
}

// Client implements fraudflow.SQLGenerator
type Client struct {
	api     ConversationAPI
	spaceID string

	poll   fraudflow.PollConfig
	logger zerolog.Logger

	mu             sync.Mutex
	conversationID string
}

// Option configures a Client
type Option func(*Client)

// WithPollConfig sets how message status is polled
func WithPollConfig(cfg fraudflow.PollConfig) Option {
	return func(g *Client) {
		g.poll = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Client) {
		g.logger = logger
	}
}

// New creates a Genie client for a workspace host and space, authenticating
// with a personal access token
func New(host, token, spaceID string, opts ...Option) (*Client, error) {
	w, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:     normalizeHost(host),
		Token:    token,
		AuthType: "pat",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create databricks workspace client: %w", err)
	}
	return NewWithAPI(workspaceAPI{genie: w.Genie}, spaceID, opts...), nil
}

// NewWithAPI creates a client over an existing Genie API
func NewWithAPI(api ConversationAPI, spaceID string, opts ...Option) *Client {
	c := &Client{
		api:     api,
		spaceID: spaceID,
		poll:    fraudflow.DefaultPollConfig,
		logger:  zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeHost(host string) string {
	base := strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}

// GenerateSQL sends prompt to the space and waits for a query attachment
func (c *Client) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	conversationID, err := c.conversation(ctx)
	if err != nil {
		return "", err
	}

	messageID, err := c.api.CreateMessage(ctx, c.spaceID, conversationID, prompt)
	if err != nil {
		// a stale conversation is replaced on the next call
		c.resetConversation(conversationID)
		return "", fmt.Errorf("failed to create genie message: %w", err)
	}

	msg, err := c.waitForMessage(ctx, conversationID, messageID)
	if err != nil {
		return "", err
	}
	return extractSQL(msg)
}

// ConversationID returns the open conversation, if any
func (c *Client) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *Client) conversation(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conversationID != "" {
		return c.conversationID, nil
	}

	id, err := c.api.StartConversation(ctx, c.spaceID, greeting)
	if err != nil {
		return "", fmt.Errorf("failed to start genie conversation: %w", err)
	}
	if id == "" {
		return "", errors.New("genie returned no conversation id")
	}

	c.conversationID = id
	c.logger.Debug().Str("conversation_id", id).Msg("Genie conversation started")
	return c.conversationID, nil
}

func (c *Client) resetConversation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID == id {
		c.conversationID = ""
	}
}

// waitForMessage polls until the message reaches a final status or the
// retry budget is spent
func (c *Client) waitForMessage(ctx context.Context, conversationID, messageID string) (*dashboards.GenieMessage, error) {
	var status dashboards.MessageStatus
	for attempt := 0; attempt < c.poll.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := fraudflow.CalculateBackoff(c.poll.RetryDelayMs, attempt, c.poll.Backoff)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		msg, err := c.api.GetMessage(ctx, c.spaceID, conversationID, messageID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll genie message: %w", err)
		}

		status = msg.Status
		switch status {
		case dashboards.MessageStatusCompleted, dashboards.MessageStatusFailed, dashboards.MessageStatusCancelled:
			return msg, nil
		}

		c.logger.Debug().
			Str("message_id", messageID).
			Str("status", string(status)).
			Int("attempt", attempt+1).
			Msg("Waiting for Genie")
	}

	return nil, fmt.Errorf("genie message %s still %s after %d polls", messageID, status, c.poll.MaxRetries)
}

func extractSQL(msg *dashboards.GenieMessage) (string, error) {
	if msg.Status != dashboards.MessageStatusCompleted {
		if msg.Error != nil && msg.Error.Error != "" {
			return "", fmt.Errorf("genie request failed with status %s: %s", msg.Status, msg.Error.Error)
		}
		return "", fmt.Errorf("genie request failed with status %s", msg.Status)
	}

	for _, a := range msg.Attachments {
		if a.Query == nil {
			continue
		}
		if sql := strings.TrimSpace(a.Query.Query); sql != "" {
			return sql, nil
		}
	}
	return "", ErrNoSQL
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
