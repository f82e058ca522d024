package prompt

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/murailochat/internal/database"
	"github.com/edgard/murailochat/internal/sanitize"
	"github.com/edgard/murailochat/internal/search"
)

// AttachmentGetter is the part of database.Store the enricher reads.
type AttachmentGetter interface {
	GetAttachment(ctx context.Context, id int64) (*database.Attachment, error)
}

// EnrichRequest selects the context added to one user message.
type EnrichRequest struct {
	// UserID owns the request; attachments of other users are not found.
	UserID string
	Prompt        string
	Memory        string
	Web           bool
	YouTube       bool
	Images        bool
	AttachmentIDs []int64
}

// Enriched is the sanitized prompt and the search results it embeds.
type Enriched struct {
	Prompt string
	Search search.Results
}

// Enricher gathers search results and attachment summaries for a message.
// A failing source only loses its own block.
type Enricher struct {
	searcher    search.Searcher
	attachments AttachmentGetter
	name        string
	log         *slog.Logger
}

// NewEnricher creates an Enricher. searcher and attachments may be nil, in
// which case the matching blocks are never added.
func NewEnricher(searcher search.Searcher, attachments AttachmentGetter, name string, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{
		searcher:    searcher,
		attachments: attachments,
		name:        name,
		log:         log.With("component", "prompt_enricher"),
	}
}

// Enrich runs the requested searches concurrently, resolves the attachment
// summaries in order, and returns the assembled prompt, sanitized once.
func (e *Enricher) Enrich(ctx context.Context, req EnrichRequest) Enriched {
	query := strings.TrimSpace(req.Prompt)

	var results search.Results
	if e.searcher != nil && query != "" {
		var g errgroup.Group
		if req.Web {
			g.Go(func() error {
				r, err := e.searcher.Web(ctx, query)
				if e.absorb(ctx, search.SourceWeb, len(r), err) {
					results.Web = r
				}
				return nil
			})
		}
		if req.YouTube {
			g.Go(func() error {
				r, err := e.searcher.YouTube(ctx, query)
				if e.absorb(ctx, search.SourceYouTube, len(r), err) {
					results.YouTube = r
				}
				return nil
			})
		}
		if req.Images {
			g.Go(func() error {
				r, err := e.searcher.Images(ctx, query)
				if e.absorb(ctx, search.SourceImages, len(r), err) {
					results.Images = r
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	files := e.describeAttachments(ctx, req.UserID, req.AttachmentIDs)

	assembled := Build(req.Prompt,
		WithAssistantName(e.name),
		WithMemory(req.Memory),
		WithSearchResults(results),
		WithFileSummaries(files),
	)
	return Enriched{Prompt: sanitize.Prompt(assembled), Search: results}
}

// absorb logs a source failure and reports whether its results are usable.
func (e *Enricher) absorb(ctx context.Context, source string, count int, err error) bool {
	if err != nil {
		e.log.WarnContext(ctx, "Search source failed, skipping block", "source", source, "error", err)
		return false
	}
	e.log.DebugContext(ctx, "Search source returned results", "source", source, "count", count)
	return true
}

func (e *Enricher) describeAttachments(ctx context.Context, userID string, ids []int64) []string {
	if len(ids) == 0 || e.attachments == nil {
		return nil
	}

	summaries := make([]string, 0, len(ids))
	for _, id := range ids {
		att, err := e.attachments.GetAttachment(ctx, id)
		if err != nil {
			e.log.WarnContext(ctx, "Attachment lookup failed, skipping", "attachment_id", id, "error", err)
			continue
		}
		if att != nil && att.UserID != userID {
			e.log.WarnContext(ctx, "Attachment belongs to another user, treating as not found",
				"attachment_id", id, "user_id", userID)
			att = nil
		}
		summaries = append(summaries, DescribeAttachment(att))
	}
	return summaries
}
