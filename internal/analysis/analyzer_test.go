package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/murailochat/internal/database"
	"github.com/edgard/murailochat/internal/logger"
)

type fakeVision struct {
	modelID  string
	filename string
	text     string
	err      error
}

func (f *fakeVision) AnalyzeImage(_ context.Context, modelID, _, filename string, _ []byte) (string, error) {
	f.modelID, f.filename = modelID, filename
	return f.text, f.err
}

type fakeStore struct {
	pending []*database.Attachment
	updated map[int64]database.Metadata
	listErr error
}

func (s *fakeStore) GetPendingAttachments(_ context.Context, limit int) ([]*database.Attachment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) UpdateAttachmentMetadata(_ context.Context, id int64, md database.Metadata) error {
	if s.updated == nil {
		s.updated = map[int64]database.Metadata{}
	}
	s.updated[id] = md
	return nil
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	imgPath := writeFile(t, "foto.png", []byte{0x89, 'P', 'N', 'G'})
	txtPath := writeFile(t, "notas.md", []byte("# Lista\n\n- arroz\n- azafrán\n"))
	binPath := writeFile(t, "bad.txt", []byte{0xff, 0xfe, 0xfd})

	tests := []struct {
		name       string
		att        *database.Attachment
		vision     *fakeVision
		wantStatus string
		wantText   string
	}{
		{
			name:       "image",
			att:        &database.Attachment{ID: 1, Filename: "foto.png", MimeType: "image/png", Path: imgPath},
			vision:     &fakeVision{text: "  Una paella.  "},
			wantStatus: database.AnalysisCompleted,
			wantText:   "Una paella.",
		},
		{
			name:       "image provider error",
			att:        &database.Attachment{ID: 2, Filename: "foto.png", MimeType: "image/png", Path: imgPath},
			vision:     &fakeVision{err: errors.New("quota")},
			wantStatus: database.AnalysisError,
		},
		{
			name:       "text by extension",
			att:        &database.Attachment{ID: 3, Filename: "notas.md", Path: txtPath},
			vision:     &fakeVision{},
			wantStatus: database.AnalysisCompleted,
			wantText:   "Contenido del archivo (extracto): # Lista",
		},
		{
			name:       "invalid text",
			att:        &database.Attachment{ID: 4, Filename: "bad.txt", MimeType: "text/plain; charset=utf-8", Path: binPath},
			vision:     &fakeVision{},
			wantStatus: database.AnalysisError,
		},
		{
			name:       "missing file",
			att:        &database.Attachment{ID: 5, Filename: "x.png", MimeType: "image/png", Path: filepath.Join(t.TempDir(), "gone.png")},
			vision:     &fakeVision{},
			wantStatus: database.AnalysisError,
		},
		{
			name:       "unsupported",
			att:        &database.Attachment{ID: 6, Filename: "video.mp4", MimeType: "video/mp4", Path: imgPath},
			vision:     &fakeVision{},
			wantStatus: database.AnalysisUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := NewAnalyzer(tt.vision, &fakeStore{}, "Gemini 2.5 Pro", logger.Discard())
			md := a.Analyze(context.Background(), tt.att)

			assert.Equal(t, tt.wantStatus, md.String(database.MetadataAnalysisStatus))
			if tt.wantText != "" {
				assert.True(t, strings.HasPrefix(md.String(database.MetadataAIAnalysis), tt.wantText),
					"analysis %q does not start with %q", md.String(database.MetadataAIAnalysis), tt.wantText)
			}
			if tt.wantStatus == database.AnalysisError {
				assert.NotEmpty(t, md.String(database.MetadataAnalysisError))
			}
		})
	}
}

func TestAnalyze_UsesGeminiModelID(t *testing.T) {
	t.Parallel()

	vision := &fakeVision{text: "ok"}
	imgPath := writeFile(t, "a.jpg", []byte{1, 2, 3})

	NewAnalyzer(vision, &fakeStore{}, "Gemini 2.5 Pro", logger.Discard()).
		Analyze(context.Background(), &database.Attachment{ID: 1, Filename: "a.jpg", MimeType: "image/jpeg", Path: imgPath})
	assert.Equal(t, "gemini-2.5-pro", vision.modelID)
	assert.Equal(t, "a.jpg", vision.filename)

	NewAnalyzer(vision, &fakeStore{}, "Mistral Large", logger.Discard()).
		Analyze(context.Background(), &database.Attachment{ID: 1, Filename: "a.jpg", MimeType: "image/jpeg", Path: imgPath})
	assert.Equal(t, "gemini-2.5-flash", vision.modelID, "non-Gemini names use the Gemini default")
}

func TestAnalyze_KeepsExistingMetadata(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "a.txt", []byte("hola"))
	att := &database.Attachment{
		ID: 1, Filename: "a.txt", MimeType: "text/plain", Path: path,
		Metadata: database.Metadata{"uploadedVia": "api", database.MetadataAnalysisStatus: database.AnalysisPending},
	}

	md := NewAnalyzer(&fakeVision{}, &fakeStore{}, "", logger.Discard()).Analyze(context.Background(), att)
	assert.Equal(t, "api", md["uploadedVia"])
	assert.Equal(t, database.AnalysisCompleted, md.String(database.MetadataAnalysisStatus))
	assert.Equal(t, database.AnalysisPending, att.Metadata.String(database.MetadataAnalysisStatus), "input is not mutated")
}

func TestProcessPending(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "a.txt", []byte("hola"))
	store := &fakeStore{pending: []*database.Attachment{
		{ID: 1, Filename: "a.txt", MimeType: "text/plain", Path: path},
		{ID: 2, Filename: "b.bin", MimeType: "application/octet-stream", Path: path},
		{ID: 3, Filename: "c.txt", MimeType: "text/plain", Path: path},
	}}
	a := NewAnalyzer(&fakeVision{}, store, "Gemini 2.5 Flash", logger.Discard())

	n, err := a.ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, database.AnalysisCompleted, store.updated[1].String(database.MetadataAnalysisStatus))
	assert.Equal(t, database.AnalysisUnsupported, store.updated[2].String(database.MetadataAnalysisStatus))
	assert.NotContains(t, store.updated, int64(3))

	_, err = NewAnalyzer(&fakeVision{}, &fakeStore{listErr: errors.New("locked")}, "", logger.Discard()).
		ProcessPending(context.Background(), 5)
	assert.Error(t, err)
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", excerpt("  abc  ", 5))
	assert.Equal(t, "äöü...", excerpt("äöüßé", 3))
}
