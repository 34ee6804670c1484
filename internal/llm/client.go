// Package llm provides the language-model backend used by the analysis
// agents. Any OpenAI-compatible chat completions endpoint works, which
// covers both hosted OpenAI and a local Ollama instance.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/skysift/shiftwatch/pkg/logger"
)

// ErrTimeout marks a backend call that exceeded its response-time budget.
// Callers treat it as retryable.
var ErrTimeout = errors.New("llm backend timeout")

// Backend is the single point where model nondeterminism enters the
// pipeline
type Backend interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config represents the chat completions client configuration
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Client implements Backend using the OpenAI chat completions API
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *logger.Logger
}

// NewClient creates a new chat completions client
func NewClient(cfg Config, log *logger.Logger) *Client {
	opts := []option.RequestOption{
		// The pipeline owns the retry policy, so the SDK must not add its own
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      log.Named("llm-client"),
	}
}

// Complete sends a single-turn prompt to the backend and returns the raw
// assistant reply. Timeouts surface as ErrTimeout so the caller can apply
// its retry policy.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("backend returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("Completion finished",
		logger.String("model", c.model),
		logger.Int("prompt_chars", len(prompt)),
		logger.Int("reply_chars", len(content)),
		logger.Duration("duration", time.Since(start)))

	return content, nil
}

// isTimeout reports whether the error is a deadline or network timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
