// Package gemini implements the primary provider client on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/config"
)

const providerName = "gemini"

// Client calls the Gemini generateContent endpoint. It is built once at
// startup; without an API key every call fails with a ConfigurationError.
type Client struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
}

// NewClient creates a Gemini client from cfg. An empty API key is not an
// error here; it is reported per call.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With("component", "gemini_client")

	c := &Client{
		log: logger,
		contentConfig: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}

	if cfg.APIKey == "" {
		logger.Warn("Gemini API key not configured, requests routed to Gemini will fail")
		return c, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = gi

	logger.Info("Gemini client initialized successfully")
	return c, nil
}

// Generate sends a single-turn prompt to modelID.
func (c *Client) Generate(ctx context.Context, modelID, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	return c.generate(ctx, modelID, contents)
}

// GenerateWithContext sends a multi-turn exchange. Assistant turns are sent
// with Gemini's "model" role, everything else as "user".
func (c *Client) GenerateWithContext(ctx context.Context, modelID string, turns []ai.Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("at least one turn is required")
	}
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, genai.NewContentFromText(t.Content, roleFor(t.Role)))
	}
	return c.generate(ctx, modelID, contents)
}

// AnalyzeImage asks modelID to describe an image. The MIME type is looked up
// from the filename extension.
func (c *Client) AnalyzeImage(ctx context.Context, modelID, prompt, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data is required for analysis")
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, ImageMIMEType(filename)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return c.generate(ctx, modelID, contents)
}

func roleFor(role string) genai.Role {
	if role == "assistant" || role == "model" {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func (c *Client) generate(ctx context.Context, modelID string, contents []*genai.Content) (string, error) {
	if c.genaiClient == nil {
		return "", &ai.ConfigurationError{Provider: providerName}
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, modelID, contents, c.contentConfig)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini API call failed", "model_id", modelID, "error", err)
		return "", toProviderError(err)
	}

	return c.extractText(ctx, resp)
}

func toProviderError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return ai.NewProviderError(providerName, apiErr.Code, apiErr.Status, err)
	}
	return ai.NewProviderError(providerName, 0, "", err)
}

func (c *Client) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		c.log.WarnContext(ctx, "Gemini returned a nil response")
		return ai.NoResponseText, nil
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			reason = fb.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "reason", reason)
		return "", ai.NewProviderError(providerName, 0, "blocked", fmt.Errorf("prompt blocked by safety filter: %s", reason))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response has no text", "finish_reason", finishReason)
		return ai.NoResponseText, nil
	}

	return text, nil
}
