// Package chat runs one chat turn end to end: it persists the user message,
// enriches the prompt, asks the assistant, and persists the reply.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/database"
	"github.com/edgard/murailochat/internal/prompt"
	"github.com/edgard/murailochat/internal/sanitize"
)

var (
	// ErrEmptyPrompt is returned when the message is blank after trimming.
	ErrEmptyPrompt = errors.New("message content is empty")
	// ErrConversationNotFound is returned for a missing conversation or one
	// owned by another user.
	ErrConversationNotFound = errors.New("conversation not found")
)

const (
	maxTitleRunes = 60
	titlePrompt   = "Genera un título breve, de como máximo seis palabras, para una conversación que empieza con este mensaje. " +
		"Responde solo con el título, sin comillas.\n\nMensaje: %s"
)

// Enricher builds the provider prompt for a message.
type Enricher interface {
	Enrich(ctx context.Context, req prompt.EnrichRequest) prompt.Enriched
}

// Assistant answers a prompt and never fails.
type Assistant interface {
	QueryWithFallback(ctx context.Context, displayName, prompt, userID, memory string) ai.Reply
}

// Options holds the model defaults of a Service.
type Options struct {
	DefaultModel string
	TitleModel   string
}

// Service implements the chat operations shared by the HTTP API and the
// Telegram transport.
type Service struct {
	store     database.Store
	enricher  Enricher
	assistant Assistant
	titles    ai.Querier
	opts      Options
	log       *slog.Logger
}

// NewService creates a Service. titles is called directly so title
// generation sees real provider errors.
func NewService(store database.Store, enricher Enricher, assistant Assistant, titles ai.Querier, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.TitleModel == "" {
		opts.TitleModel = opts.DefaultModel
	}
	return &Service{
		store:     store,
		enricher:  enricher,
		assistant: assistant,
		titles:    titles,
		opts:      opts,
		log:       log.With("component", "chat_service"),
	}
}

// SendRequest is one user message and the context to enrich it with.
type SendRequest struct {
	UserID         string  `json:"-"`
	ConversationID int64   `json:"-"`
	Model          string  `json:"model"`
	Content        string  `json:"content"`
	Web            bool    `json:"web"`
	YouTube        bool    `json:"youtube"`
	Images         bool    `json:"images"`
	AttachmentIDs  []int64 `json:"attachmentIds"`
}

// SendResult is the persisted outcome of SendMessage.
type SendResult struct {
	Conversation     *database.Conversation `json:"conversation"`
	UserMessage      *database.Message      `json:"userMessage"`
	AssistantMessage *database.Message      `json:"assistantMessage"`
	Fallback         bool                   `json:"fallback"`
}

// SendMessage stores the user turn, queries the assistant, and stores the
// assistant turn with its model and search metadata. Provider failures do not
// surface here; only storage errors do.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyPrompt
	}

	conv, err := s.GetConversation(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	model := s.resolveModel(req.Model, conv.Model)
	if model != conv.Model {
		conv.Model = model
		if err := s.store.UpdateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to switch conversation model: %w", err)
		}
	}

	memory, err := s.store.GetUserMemory(ctx, req.UserID)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load user memory, continuing without it", "user_id", req.UserID, "error", err)
		memory = ""
	}

	userMsg := &database.Message{ConversationID: conv.ID, Role: database.RoleUser, Content: content}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	enriched := s.enricher.Enrich(ctx, prompt.EnrichRequest{
		UserID:        req.UserID,
		Prompt:        content,
		Memory:        memory,
		Web:           req.Web,
		YouTube:       req.YouTube,
		Images:        req.Images,
		AttachmentIDs: req.AttachmentIDs,
	})

	reply := s.assistant.QueryWithFallback(ctx, model, enriched.Prompt, req.UserID, memory)

	assistantMsg := &database.Message{
		ConversationID: conv.ID,
		Role:           database.RoleAssistant,
		Content:        reply.Text,
		Model:          model,
	}
	if !enriched.Search.Empty() {
		if b, err := json.Marshal(enriched.Search); err == nil {
			assistantMsg.SearchResults = string(b)
		}
	}
	if err := s.store.SaveMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	if conv.Title == "" {
		conv.Title = s.GenerateTitle(ctx, content)
		if err := s.store.UpdateConversation(ctx, conv); err != nil {
			s.log.WarnContext(ctx, "Failed to store conversation title", "conversation_id", conv.ID, "error", err)
		}
	}

	return &SendResult{
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Fallback:         reply.Fallback,
	}, nil
}

// GenerateTitle asks the title model for a short title. On any failure it
// returns the truncated first message.
func (s *Service) GenerateTitle(ctx context.Context, firstMessage string) string {
	fallback := truncate(firstMessage, maxTitleRunes)

	text, err := s.titles.Query(ctx, s.opts.TitleModel, sanitize.Prompt(fmt.Sprintf(titlePrompt, firstMessage)))
	if err != nil {
		s.log.WarnContext(ctx, "Title generation failed, using message prefix", "model", s.opts.TitleModel, "error", err)
		return fallback
	}

	title := strings.Trim(strings.TrimSpace(text), "\"'«».")
	if title == "" || title == ai.NoResponseText {
		return fallback
	}
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	return truncate(title, maxTitleRunes)
}

// CreateConversation starts a conversation for userID. An empty model selects
// the default.
func (s *Service) CreateConversation(ctx context.Context, userID, model, title string) (*database.Conversation, error) {
	conv := &database.Conversation{
		UserID: userID,
		Model:  s.resolveModel(model, ""),
		Title:  strings.TrimSpace(title),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "Conversation created", "conversation_id", conv.ID, "user_id", userID, "model", conv.Model)
	return conv, nil
}

// ConversationForExternal returns the conversation linked to externalID,
// creating it with model on first use. An empty model selects the default.
func (s *Service) ConversationForExternal(ctx context.Context, externalID, userID, model string) (*database.Conversation, error) {
	conv, err := s.store.GetConversationByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &database.Conversation{
		UserID:     userID,
		ExternalID: sql.NullString{String: externalID, Valid: true},
		Model:      s.resolveModel(model, ""),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SetModel switches the model of a conversation owned by userID.
func (s *Service) SetModel(ctx context.Context, userID string, conversationID int64, model string) (*database.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Model = s.resolveModel(model, conv.Model)
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation returns the conversation if userID owns it.
func (s *Service) GetConversation(ctx context.Context, userID string, id int64) (*database.Conversation, error) {
	if id <= 0 {
		return nil, ErrConversationNotFound
	}
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations returns the user's conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int) ([]*database.Conversation, error) {
	return s.store.ListConversations(ctx, userID, limit)
}

// ListMessages returns the last limit messages of a conversation owned by userID.
func (s *Service) ListMessages(ctx context.Context, userID string, conversationID int64, limit int) ([]*database.Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.GetMessages(ctx, conversationID, limit)
}

// SetUserMemory replaces what is remembered about userID.
func (s *Service) SetUserMemory(ctx context.Context, userID, memory string) error {
	return s.store.SetUserMemory(ctx, userID, strings.TrimSpace(memory))
}

func (s *Service) resolveModel(requested, current string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if current != "" {
		return current
	}
	return s.opts.DefaultModel
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
