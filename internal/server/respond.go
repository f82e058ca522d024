package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/edgard/murailochat/internal/chat"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps service errors to status codes. Unknown errors are logged
// and reported as 500 without their detail.
func writeError(w http.ResponseWriter, r *http.Request, err error, log *slog.Logger) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrConversationNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &maxErr):
		writeMessage(w, http.StatusRequestEntityTooLarge, "upload too large")
	default:
		log.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
