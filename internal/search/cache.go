package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/murailochat/internal/database"
)

// CacheStore is the part of database.Store the cache uses.
type CacheStore interface {
	GetCachedSearch(ctx context.Context, key string, now time.Time) (*database.SearchCacheEntry, error)
	SaveCachedSearch(ctx context.Context, entry *database.SearchCacheEntry) error
}

// Cached serves repeated queries from the search cache table. Cache failures
// are logged and bypassed; only upstream errors are returned.
type Cached struct {
	next  Searcher
	store CacheStore
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// NewCached wraps next with a cache whose entries live for ttl.
func NewCached(next Searcher, store CacheStore, ttl time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{
		next:  next,
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With("component", "search_cache"),
	}
}

func (c *Cached) Web(ctx context.Context, query string) ([]WebResult, error) {
	return lookup(ctx, c, SourceWeb, query, c.next.Web)
}

func (c *Cached) YouTube(ctx context.Context, query string) ([]VideoResult, error) {
	return lookup(ctx, c, SourceYouTube, query, c.next.YouTube)
}

func (c *Cached) Images(ctx context.Context, query string) ([]ImageResult, error) {
	return lookup(ctx, c, SourceImages, query, c.next.Images)
}

// CacheKey returns the cache key of query for source.
func CacheKey(source, query string) string {
	return source + ":" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func lookup[T any](ctx context.Context, c *Cached, source, query string,
	fetch func(context.Context, string) ([]T, error),
) ([]T, error) {
	key := CacheKey(source, query)
	now := c.now().UTC()

	entry, err := c.store.GetCachedSearch(ctx, key, now)
	if err != nil {
		c.log.WarnContext(ctx, "Search cache read failed", "key", key, "error", err)
	}
	if entry != nil {
		var results []T
		if err := json.Unmarshal([]byte(entry.Payload), &results); err == nil {
			c.log.DebugContext(ctx, "Search cache hit", "key", key, "count", len(results))
			return results, nil
		}
		c.log.WarnContext(ctx, "Discarding undecodable search cache entry", "key", key)
	}

	results, err := fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}

	payload, err := json.Marshal(results)
	if err != nil {
		c.log.WarnContext(ctx, "Failed to encode search results for cache", "key", key, "error", err)
		return results, nil
	}
	saveErr := c.store.SaveCachedSearch(ctx, &database.SearchCacheEntry{
		Key:       key,
		Source:    source,
		Query:     query,
		Payload:   string(payload),
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
	if saveErr != nil {
		c.log.WarnContext(ctx, "Search cache write failed", "key", key, "error", saveErr)
	}
	return results, nil
}
