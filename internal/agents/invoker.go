// Package agents implements the three language-model agents that judge a
// shift transcript: fatigue, safety, and the summarizer that folds both
// results into a supervisor report.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/skysift/shiftwatch/internal/extract"
	"github.com/skysift/shiftwatch/internal/llm"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// clarifier is appended to the prompt on the retry that follows a
// malformed or schema-violating reply
const clarifier = "\n\nIMPORTANT: Your previous reply could not be parsed. " +
	"Respond with ONLY a single valid JSON object exactly matching the " +
	"requested structure. No prose, no markdown fences, no commentary."

// Config represents invoker configuration
type Config struct {
	// Timeout bounds each individual backend call
	Timeout time.Duration
	// MaxTokens is the response token budget per call
	MaxTokens int
	// SampleSize is how many transcript entries the fatigue prompt samples
	SampleSize int
	// MaxConcurrentCalls caps in-flight backend calls across all shifts
	MaxConcurrentCalls int64
}

// Invoker renders agent prompts, calls the backend, and turns raw model
// replies into validated results. One invoker is shared by all pipeline
// runs.
type Invoker struct {
	backend   llm.Backend
	templates *TemplateSet
	config    Config
	gate      *semaphore.Weighted
	logger    *logger.Logger
}

// NewInvoker creates a new agent invoker
func NewInvoker(backend llm.Backend, templates *TemplateSet, config Config, log *logger.Logger) *Invoker {
	if config.SampleSize <= 0 {
		config.SampleSize = 10
	}
	if config.MaxConcurrentCalls <= 0 {
		config.MaxConcurrentCalls = 4
	}
	return &Invoker{
		backend:   backend,
		templates: templates,
		config:    config,
		gate:      semaphore.NewWeighted(config.MaxConcurrentCalls),
		logger:    log.Named("agent-invoker"),
	}
}

// invoke renders the template, calls the backend, extracts the JSON
// payload, and hands it to decode. A backend timeout or a payload that
// fails extraction, key, or schema checks is retried exactly once; the
// retry after a malformed reply carries a clarifying instruction. Any
// other backend error is terminal immediately.
func (inv *Invoker) invoke(ctx context.Context, templateID string, data any, required []string, decode func(json.RawMessage) error) error {
	prompt, err := inv.templates.Render(templateID, data)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		attemptPrompt := prompt
		if attempt > 0 && !errors.Is(lastErr, llm.ErrTimeout) {
			attemptPrompt += clarifier
		}
		if attempt > 0 {
			inv.logger.Warn("Retrying agent call",
				logger.String("agent", templateID),
				logger.Error(lastErr))
		}

		raw, err := inv.complete(ctx, attemptPrompt)
		if err != nil {
			if errors.Is(err, llm.ErrTimeout) {
				lastErr = err
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("agent %s backend call failed: %w", templateID, err)
		}

		payload, err := extract.JSON(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if err := requireKeys(payload, required); err != nil {
			lastErr = err
			continue
		}
		if err := decode(payload); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("agent %s failed after retry: %w", templateID, lastErr)
}

// complete runs one backend call under the concurrency gate and the
// per-call timeout
func (inv *Invoker) complete(ctx context.Context, prompt string) (string, error) {
	if err := inv.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer inv.gate.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, inv.config.Timeout)
	defer cancel()

	return inv.backend.Complete(callCtx, prompt, inv.config.MaxTokens)
}

// requireKeys checks that every required key is present in the payload.
// Presence matters separately from decoding because absent booleans and
// zero values are indistinguishable after unmarshaling.
func requireKeys(payload json.RawMessage, keys []string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			return fmt.Errorf("required field %q missing from payload", key)
		}
	}
	return nil
}
