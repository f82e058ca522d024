package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/chat"
	"github.com/edgard/murailochat/internal/database"
)

const defaultListLimit = 50

type createConversationRequest struct {
	Model string `json:"model"`
	Title string `json:"title"`
}

type memoryRequest struct {
	Memory string `json:"memory"`
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.log.WarnContext(r.Context(), "Health check failed", "error", err)
			writeMessage(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ai.Catalog())
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	convs, err := h.chat.ListConversations(r.Context(), userFrom(r.Context()), limit)
	if err != nil {
		writeError(w, r, err, h.log)
		return
	}
	if convs == nil {
		convs = []*database.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conv, err := h.chat.CreateConversation(r.Context(), userFrom(r.Context()), req.Model, req.Title)
	if err != nil {
		writeError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *handler) getConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	conv, err := h.chat.GetConversation(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	msgs, err := h.chat.ListMessages(r.Context(), userFrom(r.Context()), id, limit)
	if err != nil {
		writeError(w, r, err, h.log)
		return
	}
	if msgs == nil {
		msgs = []*database.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req chat.SendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = userFrom(r.Context())
	req.ConversationID = id

	res, err := h.chat.SendMessage(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	limit := h.upload.MaxUploadSize
	if r.ContentLength > limit {
		writeError(w, r, &http.MaxBytesError{Limit: limit}, h.log)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, err, h.log)
			return
		}
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.upload.Dir, 0o750); err != nil {
		writeError(w, r, fmt.Errorf("failed to create upload dir: %w", err), h.log)
		return
	}

	filename := filepath.Base(header.Filename)
	path := filepath.Join(h.upload.Dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filename))
	size, err := saveFile(path, file)
	if err != nil {
		writeError(w, r, err, h.log)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
			mimeType = byExt
		}
	}

	att := &database.Attachment{
		UserID:   userFrom(r.Context()),
		Filename: filename,
		MimeType: mimeType,
		Path:     path,
		Size:     size,
	}
	if err := h.attachments.CreateAttachment(r.Context(), att); err != nil {
		_ = os.Remove(path)
		writeError(w, r, err, h.log)
		return
	}

	h.log.InfoContext(r.Context(), "Attachment uploaded",
		"attachment_id", att.ID,
		"user_id", att.UserID,
		"size", size)
	writeJSON(w, http.StatusCreated, att)
}

func (h *handler) setMemory(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	if chi.URLParam(r, "id") != userID {
		writeMessage(w, http.StatusForbidden, "cannot modify another user's memory")
		return
	}
	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.chat.SetUserMemory(r.Context(), userID, req.Memory); err != nil {
		writeError(w, r, err, h.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func saveFile(path string, src io.Reader) (int64, error) {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("failed to create attachment file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write attachment file: %w", err)
	}
	return size, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid conversation id")
		return 0, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return limit, true
}
