package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/chat"
	"github.com/edgard/murailochat/internal/config"
	"github.com/edgard/murailochat/internal/database"
	"github.com/edgard/murailochat/internal/logger"
	"github.com/edgard/murailochat/internal/server"
)

type fakeChat struct {
	sendReq   chat.SendRequest
	sendErr   error
	getErr    error
	memoryFor string
	memory    string
	created   []string
}

func (f *fakeChat) SendMessage(_ context.Context, req chat.SendRequest) (*chat.SendResult, error) {
	f.sendReq = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &chat.SendResult{
		Conversation:     &database.Conversation{ID: req.ConversationID, UserID: req.UserID},
		UserMessage:      &database.Message{Role: database.RoleUser, Content: req.Content},
		AssistantMessage: &database.Message{Role: database.RoleAssistant, Content: "hola"},
	}, nil
}

func (f *fakeChat) CreateConversation(_ context.Context, userID, model, title string) (*database.Conversation, error) {
	f.created = append(f.created, userID+"|"+model+"|"+title)
	return &database.Conversation{ID: 7, UserID: userID, Model: model, Title: title}, nil
}

func (f *fakeChat) GetConversation(_ context.Context, userID string, id int64) (*database.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &database.Conversation{ID: id, UserID: userID}, nil
}

func (f *fakeChat) ListConversations(context.Context, string, int) ([]*database.Conversation, error) {
	return nil, nil
}

func (f *fakeChat) ListMessages(_ context.Context, _ string, _ int64, _ int) ([]*database.Message, error) {
	return []*database.Message{{Role: database.RoleUser, Content: "hi"}}, nil
}

func (f *fakeChat) SetUserMemory(_ context.Context, userID, memory string) error {
	f.memoryFor = userID
	f.memory = memory
	return nil
}

type fakeAttachments struct {
	saved *database.Attachment
}

func (f *fakeAttachments) CreateAttachment(_ context.Context, att *database.Attachment) error {
	att.ID = 42
	att.AnalysisStatus = database.AnalysisPending
	f.saved = att
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(t *testing.T, c *fakeChat, atts *fakeAttachments, ping error) http.Handler {
	t.Helper()
	return server.NewRouter(server.Deps{
		Chat:        c,
		Attachments: atts,
		Health:      fakePinger{err: ping},
		Upload:      config.AttachmentsConfig{Dir: t.TempDir(), MaxUploadSize: 1 << 20},
		Logger:      logger.Discard(),
	})
}

func do(t *testing.T, h http.Handler, method, path, user string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(server.UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, errors.New("down")), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListModels(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodGet, "/api/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []ai.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ai.Catalog(), got)
}

func TestRequiresUserHeader(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListConversationsEmptyArray(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodGet, "/api/conversations", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateConversation(t *testing.T) {
	t.Parallel()

	c := &fakeChat{}
	rec := do(t, newTestRouter(t, c, &fakeAttachments{}, nil), http.MethodPost, "/api/conversations", "u1",
		[]byte(`{"model":"Mistral Large","title":"Hola"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"u1|Mistral Large|Hola"}, c.created)
}

func TestGetConversationNotFound(t *testing.T) {
	t.Parallel()

	c := &fakeChat{getErr: chat.ErrConversationNotFound}
	rec := do(t, newTestRouter(t, c, &fakeAttachments{}, nil), http.MethodGet, "/api/conversations/3", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidConversationID(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodGet, "/api/conversations/abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessagesInvalidLimit(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodGet, "/api/conversations/3/messages?limit=-1", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	c := &fakeChat{}
	body := []byte(`{"model":"Gemini 2.5 Flash","content":"hola","web":true,"attachmentIds":[4,5]}`)
	rec := do(t, newTestRouter(t, c, &fakeAttachments{}, nil), http.MethodPost, "/api/conversations/9/messages", "u1", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "u1", c.sendReq.UserID)
	assert.Equal(t, int64(9), c.sendReq.ConversationID)
	assert.True(t, c.sendReq.Web)
	assert.Equal(t, []int64{4, 5}, c.sendReq.AttachmentIDs)

	var res chat.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "hola", res.AssistantMessage.Content)
}

func TestSendMessageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty prompt", chat.ErrEmptyPrompt, http.StatusBadRequest},
		{"not found", chat.ErrConversationNotFound, http.StatusNotFound},
		{"internal", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &fakeChat{sendErr: tt.err}
			rec := do(t, newTestRouter(t, c, &fakeAttachments{}, nil), http.MethodPost, "/api/conversations/1/messages", "u1",
				[]byte(`{"content":"x"}`))
			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "disk full")
		})
	}
}

func TestSendMessageRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil), http.MethodPost, "/api/conversations/1/messages", "u1",
		[]byte(`{"content":"x","userId":"someone-else"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetMemory(t *testing.T) {
	t.Parallel()

	c := &fakeChat{}
	h := newTestRouter(t, c, &fakeAttachments{}, nil)

	rec := do(t, h, http.MethodPut, "/api/users/u1/memory", "u1", []byte(`{"memory":"le gusta el cine"}`))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", c.memoryFor)
	assert.Equal(t, "le gusta el cine", c.memory)

	rec = do(t, h, http.MethodPut, "/api/users/u2/memory", "u1", []byte(`{"memory":"x"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadAttachment(t *testing.T) {
	t.Parallel()

	atts := &fakeAttachments{}
	h := newTestRouter(t, &fakeChat{}, atts, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "../photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("contenido del archivo"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(server.UserHeader, "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, atts.saved)
	assert.Equal(t, "u1", atts.saved.UserID)
	assert.Equal(t, "photo.png", atts.saved.Filename)
	assert.Equal(t, "image/png", atts.saved.MimeType)
	assert.Equal(t, int64(len("contenido del archivo")), atts.saved.Size)

	data, err := os.ReadFile(atts.saved.Path)
	require.NoError(t, err)
	assert.Equal(t, "contenido del archivo", string(data))
	assert.NotContains(t, rec.Body.String(), atts.saved.Path)
}

func TestUploadAttachmentTooLarge(t *testing.T) {
	t.Parallel()

	atts := &fakeAttachments{}
	h := server.NewRouter(server.Deps{
		Chat:        &fakeChat{},
		Attachments: atts,
		Health:      fakePinger{},
		Upload:      config.AttachmentsConfig{Dir: t.TempDir(), MaxUploadSize: 1024},
		Logger:      logger.Discard(),
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "grande.bin")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(server.UserHeader, "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "upload too large")
	assert.Nil(t, atts.saved)
}

func TestUploadAttachmentMissingFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(server.UserHeader, "u1")
	rec := httptest.NewRecorder()
	newTestRouter(t, &fakeChat{}, &fakeAttachments{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewHTTPServer(t *testing.T) {
	t.Parallel()

	srv := server.NewHTTPServer(config.HTTPConfig{Addr: ":9090"}, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
