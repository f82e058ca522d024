package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/edgard/murailochat/internal/config"
)

const youtubeWatchURL = "https://www.youtube.com/watch?v="

// Client calls Google Custom Search and the YouTube Data API. A source whose
// credentials are missing has no service and fails with ErrMissingCredentials.
type Client struct {
	cse        *customsearch.Service
	youtube    *youtube.Service
	googleCX   string
	maxResults int64
	timeout    time.Duration
	log        *slog.Logger
}

type clientOptions struct {
	customSearchEndpoint string
	youtubeEndpoint      string
}

// Option configures a Client.
type Option func(*clientOptions)

// WithEndpoints overrides the API root URLs, e.g. "http://127.0.0.1:8080/".
func WithEndpoints(customSearchURL, youtubeURL string) Option {
	return func(o *clientOptions) {
		o.customSearchEndpoint = customSearchURL
		o.youtubeEndpoint = youtubeURL
	}
}

// NewClient creates a search client from cfg.
func NewClient(ctx context.Context, cfg config.SearchConfig, log *slog.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		googleCX:   cfg.GoogleCX,
		maxResults: int64(cfg.MaxResults),
		timeout:    cfg.Timeout,
		log:        log.With("component", "search_client"),
	}
	if c.maxResults <= 0 {
		c.maxResults = 5
	}

	if cfg.GoogleAPIKey != "" && cfg.GoogleCX != "" {
		svc, err := customsearch.NewService(ctx, serviceOptions(cfg.GoogleAPIKey, o.customSearchEndpoint)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create custom search service: %w", err)
		}
		c.cse = svc
	} else {
		c.log.Warn("Google Custom Search not configured, web and image blocks disabled")
	}

	if cfg.YouTubeAPIKey != "" {
		svc, err := youtube.NewService(ctx, serviceOptions(cfg.YouTubeAPIKey, o.youtubeEndpoint)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create youtube service: %w", err)
		}
		c.youtube = svc
	} else {
		c.log.Warn("YouTube API key not configured, video block disabled")
	}

	return c, nil
}

func serviceOptions(apiKey, endpoint string) []option.ClientOption {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

// Web searches web pages with Google Custom Search.
func (c *Client) Web(ctx context.Context, query string) ([]WebResult, error) {
	items, err := c.customSearch(ctx, SourceWeb, query, false)
	if err != nil {
		return nil, err
	}

	results := make([]WebResult, 0, len(items))
	for _, item := range items {
		results = append(results, WebResult{Title: item.Title, Link: item.Link, Snippet: clean(item.Snippet)})
	}
	return results, nil
}

// Images searches images with Google Custom Search.
func (c *Client) Images(ctx context.Context, query string) ([]ImageResult, error) {
	items, err := c.customSearch(ctx, SourceImages, query, true)
	if err != nil {
		return nil, err
	}

	results := make([]ImageResult, 0, len(items))
	for _, item := range items {
		results = append(results, ImageResult{Title: item.Title, Link: item.Link, DisplayLink: item.DisplayLink})
	}
	return results, nil
}

// YouTube searches videos with the YouTube Data API.
func (c *Client) YouTube(ctx context.Context, query string) ([]VideoResult, error) {
	if c.youtube == nil {
		return nil, fmt.Errorf("%s: %w", SourceYouTube, ErrMissingCredentials)
	}

	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.youtube.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(c.maxResults).
		Context(callCtx).
		Do()
	if err != nil {
		return nil, c.apiError(ctx, SourceYouTube, err)
	}

	results := make([]VideoResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		results = append(results, VideoResult{
			Title:       item.Snippet.Title,
			Description: clean(item.Snippet.Description),
			URL:         youtubeWatchURL + item.Id.VideoId,
		})
	}
	return results, nil
}

func (c *Client) customSearch(ctx context.Context, source, query string, images bool) ([]*customsearch.Result, error) {
	if c.cse == nil {
		return nil, fmt.Errorf("%s: %w", source, ErrMissingCredentials)
	}

	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	call := c.cse.Cse.List().Cx(c.googleCX).Q(query).Num(c.maxResults)
	if images {
		call = call.SearchType("image")
	}
	resp, err := call.Context(callCtx).Do()
	if err != nil {
		return nil, c.apiError(ctx, source, err)
	}
	return resp.Items, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) apiError(ctx context.Context, source string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		c.log.WarnContext(ctx, "Search API returned an error",
			"source", source,
			"status", gErr.Code,
			"message", gErr.Message)
		return fmt.Errorf("%s: unexpected status %d: %w", source, gErr.Code, err)
	}
	return fmt.Errorf("%s: request failed: %w", source, err)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
