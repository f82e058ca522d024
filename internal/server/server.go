// Package server exposes the chat service over a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/edgard/murailochat/internal/chat"
	"github.com/edgard/murailochat/internal/config"
	"github.com/edgard/murailochat/internal/database"
	"github.com/edgard/murailochat/internal/logger"
)

// UserHeader carries the caller's user id on every /api request.
const UserHeader = "X-User-ID"

// ChatService is the part of chat.Service the API depends on.
type ChatService interface {
	SendMessage(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	CreateConversation(ctx context.Context, userID, model, title string) (*database.Conversation, error)
	GetConversation(ctx context.Context, userID string, id int64) (*database.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]*database.Conversation, error)
	ListMessages(ctx context.Context, userID string, conversationID int64, limit int) ([]*database.Message, error)
	SetUserMemory(ctx context.Context, userID, memory string) error
}

// AttachmentStore persists uploaded file records.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, att *database.Attachment) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Chat        ChatService
	Attachments AttachmentStore
	Health      Pinger
	Upload      config.AttachmentsConfig
	Origins     []string
	Logger      *slog.Logger
}

type handler struct {
	chat        ChatService
	attachments AttachmentStore
	health      Pinger
	upload      config.AttachmentsConfig
	log         *slog.Logger
}

// NewRouter builds the chi router with middleware and all API routes.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &handler{
		chat:        deps.Chat,
		attachments: deps.Attachments,
		health:      deps.Health,
		upload:      deps.Upload,
		log:         log.With("component", "http_server"),
	}

	origins := deps.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.HTTPMiddleware(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", h.listModels)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/conversations", h.listConversations)
			r.Post("/conversations", h.createConversation)
			r.Get("/conversations/{id}", h.getConversation)
			r.Get("/conversations/{id}/messages", h.listMessages)
			r.Post("/conversations/{id}/messages", h.sendMessage)
			r.Post("/attachments", h.uploadAttachment)
			r.Put("/users/{id}/memory", h.setMemory)
		})
	})

	return r
}

// NewHTTPServer wraps handler in an http.Server configured from cfg.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}
