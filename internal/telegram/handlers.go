package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/chat"
	"github.com/edgard/murailochat/internal/database"
)

const (
	sendMessageTimeout = 10 * time.Second
	maxMessageRunes    = 4096

	welcomeMsg      = "¡Hola! Soy %s. Escríbeme lo que quieras y te respondo.\n\n/model <nombre> cambia el modelo\n/memory <texto> guarda lo que debo recordar de ti"
	modelCurrentFmt = "Modelo actual: %s\n\nDisponibles:\n%s"
	modelSetFmt     = "Modelo cambiado a %s."
	modelUnknownFmt = "No conozco el modelo %q.\n\nDisponibles:\n%s"
	memorySavedMsg  = "Lo recordaré."
	memoryClearMsg  = "He olvidado lo que sabía de ti."
	errorGeneralMsg = "Algo salió mal. Inténtalo de nuevo en un momento."
)

// ChatService is the part of chat.Service the Telegram handlers depend on.
type ChatService interface {
	ConversationForExternal(ctx context.Context, externalID, userID, model string) (*database.Conversation, error)
	SendMessage(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	SetModel(ctx context.Context, userID string, conversationID int64, model string) (*database.Conversation, error)
	SetUserMemory(ctx context.Context, userID, memory string) error
}

// Sender is the part of *bot.Bot used to reply.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger        *slog.Logger
	Chat          ChatService
	AssistantName string
	DefaultModel  string
}

// RegisterAllCommands returns the command handlers keyed by command.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	return map[string]RegisteredHandler{
		"/start": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "start",
			Handler:     NewStartHandler(deps),
			MatchType:   bot.MatchTypeCommandStartOnly,
		},
		"/model": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "model",
			Handler:     NewModelHandler(deps),
			MatchType:   bot.MatchTypeCommandStartOnly,
		},
		"/memory": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "memory",
			Handler:     NewMemoryHandler(deps),
			MatchType:   bot.MatchTypeCommandStartOnly,
		},
	}
}

type handlers struct {
	deps HandlerDeps
	log  *slog.Logger
}

func newHandlers(deps HandlerDeps) handlers {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return handlers{deps: deps, log: log.With("component", "telegram_handlers")}
}

// NewStartHandler returns a handler for /start.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	h := newHandlers(deps)
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.start(ctx, b, update) }
}

// NewModelHandler returns a handler for /model [name].
func NewModelHandler(deps HandlerDeps) bot.HandlerFunc {
	h := newHandlers(deps)
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.model(ctx, b, update) }
}

// NewMemoryHandler returns a handler for /memory [text].
func NewMemoryHandler(deps HandlerDeps) bot.HandlerFunc {
	h := newHandlers(deps)
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.memory(ctx, b, update) }
}

// NewMessageHandler returns the default handler: every other text message
// is sent to the chat's conversation and the reply is posted back.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	h := newHandlers(deps)
	return func(ctx context.Context, b *bot.Bot, update *models.Update) { h.message(ctx, b, update) }
}

func (h handlers) start(ctx context.Context, s Sender, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	h.reply(ctx, s, msg.Chat.ID, 0, fmt.Sprintf(welcomeMsg, h.deps.AssistantName))
}

func (h handlers) model(ctx context.Context, s Sender, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	conv, err := h.conversation(ctx, msg)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to load conversation", "chat_id", msg.Chat.ID, "error", err)
		h.reply(ctx, s, msg.Chat.ID, msg.ID, errorGeneralMsg)
		return
	}

	name := commandArgs(msg.Text)
	if name == "" {
		h.reply(ctx, s, msg.Chat.ID, msg.ID, fmt.Sprintf(modelCurrentFmt, conv.Model, modelList()))
		return
	}
	display, ok := lookupModel(name)
	if !ok {
		h.reply(ctx, s, msg.Chat.ID, msg.ID, fmt.Sprintf(modelUnknownFmt, name, modelList()))
		return
	}

	if _, err := h.deps.Chat.SetModel(ctx, conv.UserID, conv.ID, display); err != nil {
		h.log.ErrorContext(ctx, "Failed to switch model", "chat_id", msg.Chat.ID, "model", display, "error", err)
		h.reply(ctx, s, msg.Chat.ID, msg.ID, errorGeneralMsg)
		return
	}
	h.log.InfoContext(ctx, "Switched Telegram chat model", "chat_id", msg.Chat.ID, "model", display)
	h.reply(ctx, s, msg.Chat.ID, msg.ID, fmt.Sprintf(modelSetFmt, display))
}

func (h handlers) memory(ctx context.Context, s Sender, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	text := commandArgs(msg.Text)
	if err := h.deps.Chat.SetUserMemory(ctx, userID(msg.From.ID), text); err != nil {
		h.log.ErrorContext(ctx, "Failed to store user memory", "user_id", msg.From.ID, "error", err)
		h.reply(ctx, s, msg.Chat.ID, msg.ID, errorGeneralMsg)
		return
	}
	if text == "" {
		h.reply(ctx, s, msg.Chat.ID, msg.ID, memoryClearMsg)
		return
	}
	h.reply(ctx, s, msg.Chat.ID, msg.ID, memorySavedMsg)
}

func (h handlers) message(ctx context.Context, s Sender, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		h.log.DebugContext(ctx, "Ignoring unknown command", "chat_id", msg.Chat.ID, "text", msg.Text)
		return
	}

	conv, err := h.conversation(ctx, msg)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to load conversation", "chat_id", msg.Chat.ID, "error", err)
		h.reply(ctx, s, msg.Chat.ID, msg.ID, errorGeneralMsg)
		return
	}

	_, _ = s.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: msg.Chat.ID, Action: models.ChatActionTyping})

	res, err := h.deps.Chat.SendMessage(ctx, chat.SendRequest{
		UserID:         conv.UserID,
		ConversationID: conv.ID,
		Content:        msg.Text,
	})
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to process message", "chat_id", msg.Chat.ID, "conversation_id", conv.ID, "error", err)
		h.reply(ctx, s, msg.Chat.ID, msg.ID, errorGeneralMsg)
		return
	}

	h.reply(ctx, s, msg.Chat.ID, msg.ID, res.AssistantMessage.Content)
}

func (h handlers) conversation(ctx context.Context, msg *models.Message) (*database.Conversation, error) {
	return h.deps.Chat.ConversationForExternal(ctx, externalID(msg.Chat.ID), userID(msg.From.ID), h.deps.DefaultModel)
}

// reply sends text to chatID, split into Telegram-sized chunks. A zero
// replyTo sends a plain message.
func (h handlers) reply(ctx context.Context, s Sender, chatID int64, replyTo int, text string) {
	for _, chunk := range splitMessage(text, maxMessageRunes) {
		params := &bot.SendMessageParams{ChatID: chatID, Text: chunk}
		if replyTo > 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
		}
		sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
		_, err := s.SendMessage(sendCtx, params)
		cancel()
		if err != nil {
			h.log.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
			return
		}
	}
}

func externalID(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func userID(telegramID int64) string {
	return "telegram:" + strconv.FormatInt(telegramID, 10)
}

// commandArgs returns what follows the command word, trimmed.
func commandArgs(text string) string {
	_, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(args)
}

func lookupModel(name string) (string, bool) {
	for _, m := range ai.Catalog() {
		if strings.EqualFold(m.DisplayName, name) {
			return m.DisplayName, true
		}
	}
	return "", false
}

func modelList() string {
	var b strings.Builder
	for i, m := range ai.Catalog() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(m.DisplayName)
	}
	return b.String()
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// newline boundaries.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
