// Package search implements the enrichment sources: Google Custom Search for
// web pages and images, and the YouTube Data API for videos.
package search

import (
	"context"
	"errors"
)

// ErrMissingCredentials is returned by a source whose API key is not configured.
var ErrMissingCredentials = errors.New("search credentials are not configured")

// WebResult is one web page hit.
type WebResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// VideoResult is one YouTube hit.
type VideoResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// ImageResult is one image hit.
type ImageResult struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
}

// Results groups the hits of every source used for one prompt.
type Results struct {
	Web     []WebResult   `json:"web,omitempty"`
	YouTube []VideoResult `json:"youtube,omitempty"`
	Images  []ImageResult `json:"images,omitempty"`
}

// Empty reports whether no source returned anything.
func (r Results) Empty() bool {
	return len(r.Web) == 0 && len(r.YouTube) == 0 && len(r.Images) == 0
}

// Source names, used for logging and as cache key prefixes.
const (
	SourceWeb     = "web"
	SourceYouTube = "youtube"
	SourceImages  = "images"
)

// Searcher looks up one query in each source.
type Searcher interface {
	Web(ctx context.Context, query string) ([]WebResult, error)
	YouTube(ctx context.Context, query string) ([]VideoResult, error)
	Images(ctx context.Context, query string) ([]ImageResult, error)
}
