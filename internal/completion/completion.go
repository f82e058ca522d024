// Package completion implements the provider clients that speak the OpenAI
// chat-completions protocol: Mistral and OpenRouter.
package completion

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/config"
)

const (
	mistralName    = "mistral"
	openRouterName = "openrouter"
)

// Client sends single-turn chat completions to one OpenAI-compatible
// provider. Without an API key every call fails with a ConfigurationError.
type Client struct {
	name        string
	client      *openai.Client
	temperature float32
	maxTokens   int
	log         *slog.Logger
}

// NewMistralClient creates the Mistral client.
func NewMistralClient(cfg config.CompletionConfig, log *slog.Logger) *Client {
	return newClient(mistralName, cfg, nil, log)
}

// NewOpenRouterClient creates the OpenRouter client. Referer and Title are
// sent as the attribution headers OpenRouter expects.
func NewOpenRouterClient(cfg config.CompletionConfig, log *slog.Logger) *Client {
	headers := map[string]string{}
	if cfg.Referer != "" {
		headers["HTTP-Referer"] = cfg.Referer
	}
	if cfg.Title != "" {
		headers["X-Title"] = cfg.Title
	}
	return newClient(openRouterName, cfg, headers, log)
}

func newClient(name string, cfg config.CompletionConfig, headers map[string]string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		name:        name,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		log:         log.With("component", name+"_client"),
	}

	if cfg.APIKey == "" {
		c.log.Warn("API key not configured, requests routed to this provider will fail")
		return c
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if len(headers) > 0 {
		httpClient.Transport = &headerTransport{headers: headers, base: http.DefaultTransport}
	}
	clientCfg.HTTPClient = httpClient

	c.client = openai.NewClientWithConfig(clientCfg)
	c.log.Info("Client initialized successfully", "base_url", clientCfg.BaseURL)
	return c
}

// Name returns the provider name used in logs and errors.
func (c *Client) Name() string { return c.name }

// Generate sends prompt as a single user message to modelID.
func (c *Client) Generate(ctx context.Context, modelID, prompt string) (string, error) {
	if c.client == nil {
		return "", &ai.ConfigurationError{Provider: c.name}
	}

	req := openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.ErrorContext(ctx, "Chat completion failed", "model_id", modelID, "error", err)
		return "", c.toProviderError(err)
	}

	if len(resp.Choices) == 0 {
		c.log.WarnContext(ctx, "Chat completion returned no choices", "model_id", modelID)
		return ai.NoResponseText, nil
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		c.log.WarnContext(ctx, "Chat completion returned empty content",
			"model_id", modelID,
			"finish_reason", string(resp.Choices[0].FinishReason))
		return ai.NoResponseText, nil
	}

	return text, nil
}

func (c *Client) toProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ai.NewProviderError(c.name, apiErr.HTTPStatusCode, "", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ai.NewProviderError(c.name, reqErr.HTTPStatusCode, "", err)
	}
	return ai.NewProviderError(c.name, 0, "", err)
}

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
