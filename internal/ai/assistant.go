package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/murailochat/internal/sanitize"
)

// Querier is the part of Router the Assistant depends on.
type Querier interface {
	Query(ctx context.Context, displayName, prompt string) (string, error)
}

// Reply is the outcome of QueryWithFallback. It carries no error: a failed
// provider call still yields a Reply, with Fallback set.
type Reply struct {
	Text     string
	Model    string
	Fallback bool
	Duration time.Duration
}

// Assistant is the single recovery boundary between the chat flow and the
// providers.
type Assistant struct {
	router  Querier
	log     *slog.Logger
	timeout time.Duration
	pick    func() string
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithTimeout bounds each provider call. Zero disables the bound.
func WithTimeout(d time.Duration) AssistantOption {
	return func(a *Assistant) { a.timeout = d }
}

// WithFallbackPicker replaces the canned reply picker.
func WithFallbackPicker(pick func() string) AssistantOption {
	return func(a *Assistant) { a.pick = pick }
}

// NewAssistant creates an Assistant over router.
func NewAssistant(router Querier, log *slog.Logger, opts ...AssistantOption) *Assistant {
	if log == nil {
		log = slog.Default()
	}
	a := &Assistant{
		router: router,
		log:    log.With("component", "assistant"),
		pick:   PickFallback,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// QueryWithFallback sanitizes prompt, sends it to the provider for
// displayName, and returns its text. Any failure is logged and replaced by a
// canned reply; the error never reaches the caller.
func (a *Assistant) QueryWithFallback(ctx context.Context, displayName, prompt, userID, memory string) Reply {
	clean := sanitize.Prompt(prompt)
	startTime := time.Now()

	queryCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	text, err := a.router.Query(queryCtx, displayName, clean)
	duration := time.Since(startTime)

	if err != nil {
		a.log.WarnContext(ctx, "AI query failed, returning fallback response",
			"model", displayName,
			"user_id", userID,
			"has_memory", memory != "",
			"prompt_length", len(clean),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error())
		return Reply{Text: a.pick(), Model: displayName, Fallback: true, Duration: duration}
	}

	a.log.InfoContext(ctx, "AI query succeeded",
		"model", displayName,
		"user_id", userID,
		"has_memory", memory != "",
		"prompt_length", len(clean),
		"response_length", len(text),
		"duration_ms", duration.Milliseconds())
	return Reply{Text: text, Model: displayName, Duration: duration}
}
