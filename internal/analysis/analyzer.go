// Package analysis describes uploaded attachments so their content can be
// added to prompts. It fills the analysisStatus and aiAnalysis keys of the
// attachment metadata bag.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/database"
)

const (
	imagePrompt = "Describe de forma detallada y objetiva el contenido de esta imagen. " +
		"Si contiene texto, transcríbelo. Responde en español."
	maxExcerptRunes = 2000
	defaultBatch    = 10
)

// ImageAnalyzer is the vision call of the primary provider.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, modelID, prompt, filename string, data []byte) (string, error)
}

// Store is the part of database.Store the analyzer uses.
type Store interface {
	GetPendingAttachments(ctx context.Context, limit int) ([]*database.Attachment, error)
	UpdateAttachmentMetadata(ctx context.Context, id int64, metadata database.Metadata) error
}

// Analyzer processes attachments whose analysis is pending.
type Analyzer struct {
	images   ImageAnalyzer
	store    Store
	modelID  string
	readFile func(string) ([]byte, error)
	log      *slog.Logger
}

// NewAnalyzer creates an Analyzer. model is a display name resolved against
// the Gemini table.
func NewAnalyzer(images ImageAnalyzer, store Store, model string, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{
		images:   images,
		store:    store,
		modelID:  ai.ModelID(ai.FamilyGemini, model),
		readFile: os.ReadFile,
		log:      log.With("component", "attachment_analyzer"),
	}
}

// ProcessPending analyzes up to limit pending attachments and stores the
// outcome of each. It returns how many were updated.
func (a *Analyzer) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultBatch
	}

	pending, err := a.store.GetPendingAttachments(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending attachments: %w", err)
	}
	if len(pending) == 0 {
		a.log.DebugContext(ctx, "No pending attachments")
		return 0, nil
	}

	updated := 0
	for _, att := range pending {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		metadata := a.Analyze(ctx, att)
		if err := a.store.UpdateAttachmentMetadata(ctx, att.ID, metadata); err != nil {
			a.log.ErrorContext(ctx, "Failed to store attachment analysis", "attachment_id", att.ID, "error", err)
			continue
		}
		updated++
	}

	a.log.InfoContext(ctx, "Processed pending attachments", "found", len(pending), "updated", updated)
	return updated, nil
}

// Analyze returns att's metadata with the analysis outcome merged in. It
// never returns a pending status.
func (a *Analyzer) Analyze(ctx context.Context, att *database.Attachment) database.Metadata {
	metadata := database.Metadata{}
	for k, v := range att.Metadata {
		metadata[k] = v
	}
	delete(metadata, database.MetadataAnalysisError)

	fail := func(err error) database.Metadata {
		a.log.WarnContext(ctx, "Attachment analysis failed", "attachment_id", att.ID, "filename", att.Filename, "error", err)
		metadata[database.MetadataAnalysisStatus] = database.AnalysisError
		metadata[database.MetadataAnalysisError] = err.Error()
		return metadata
	}

	mimeType := mimeTypeOf(att)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		data, err := a.readFile(att.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to read file: %w", err))
		}
		text, err := a.images.AnalyzeImage(ctx, a.modelID, imagePrompt, att.Filename, data)
		if err != nil {
			return fail(err)
		}
		metadata[database.MetadataAnalysisStatus] = database.AnalysisCompleted
		metadata[database.MetadataAIAnalysis] = strings.TrimSpace(text)

	case isText(mimeType):
		data, err := a.readFile(att.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to read file: %w", err))
		}
		if !utf8.Valid(data) {
			return fail(fmt.Errorf("file is not valid UTF-8 text"))
		}
		metadata[database.MetadataAnalysisStatus] = database.AnalysisCompleted
		metadata[database.MetadataAIAnalysis] = "Contenido del archivo (extracto): " + excerpt(string(data), maxExcerptRunes)

	default:
		a.log.InfoContext(ctx, "Attachment type not supported for analysis", "attachment_id", att.ID, "mime_type", mimeType)
		metadata[database.MetadataAnalysisStatus] = database.AnalysisUnsupported
	}

	return metadata
}

// textExtensions covers plain-text formats missing from the builtin MIME table.
var textExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".log":  "text/plain",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

func mimeTypeOf(att *database.Attachment) string {
	if att.MimeType != "" {
		mt, _, err := mime.ParseMediaType(att.MimeType)
		if err == nil {
			return mt
		}
	}
	ext := strings.ToLower(filepath.Ext(att.Filename))
	if mt, ok := textExtensions[ext]; ok {
		return mt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		mt, _, _ := mime.ParseMediaType(byExt)
		return mt
	}
	return "application/octet-stream"
}

func isText(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml", "application/yaml":
		return true
	}
	return false
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
