package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Getters return nil, nil when the row does not exist.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationByExternalID(ctx context.Context, externalID string) (*Conversation, error)
	// UpdateConversation writes the title and model of conv.
	UpdateConversation(ctx context.Context, conv *Conversation) error
	// ListConversations returns the user's conversations, most recently updated first.
	ListConversations(ctx context.Context, userID string, limit int) ([]*Conversation, error)

	// SaveMessage inserts msg and bumps the conversation's updated_at.
	SaveMessage(ctx context.Context, msg *Message) error
	// GetMessages returns the last limit messages of a conversation in chronological order.
	GetMessages(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int, error)

	CreateAttachment(ctx context.Context, att *Attachment) error
	GetAttachment(ctx context.Context, id int64) (*Attachment, error)
	// UpdateAttachmentMetadata replaces the metadata bag and syncs analysis_status.
	UpdateAttachmentMetadata(ctx context.Context, id int64, metadata Metadata) error
	GetPendingAttachments(ctx context.Context, limit int) ([]*Attachment, error)

	// GetCachedSearch returns the entry for key unless it expired before now.
	GetCachedSearch(ctx context.Context, key string, now time.Time) (*SearchCacheEntry, error)
	// SaveCachedSearch inserts or replaces the entry for entry.Key.
	SaveCachedSearch(ctx context.Context, entry *SearchCacheEntry) error
	// PurgeExpiredSearchCache deletes entries expired at now and returns how many.
	PurgeExpiredSearchCache(ctx context.Context, now time.Time) (int64, error)

	// GetUserMemory returns "" when nothing is remembered about the user.
	GetUserMemory(ctx context.Context, userID string) (string, error)
	SetUserMemory(ctx context.Context, userID, memory string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// now returns the current UTC time without a monotonic reading, so stored
// timestamps compare consistently as text.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return fmt.Errorf("cannot save nil conversation")
	}
	if conv.UserID == "" {
		return fmt.Errorf("conversation must have a user_id")
	}
	if conv.Model == "" {
		return fmt.Errorf("conversation must have a model")
	}

	ts := now()
	conv.CreatedAt = ts
	conv.UpdatedAt = ts

	query := `
        INSERT INTO conversations (user_id, external_id, title, model, created_at, updated_at)
        VALUES (:user_id, :external_id, :title, :model, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, conv)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating conversation", "user_id", conv.UserID, "error", err)
		return fmt.Errorf("failed to create conversation for user %s: %w", conv.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read conversation id: %w", err)
	}
	conv.ID = id

	s.logger.DebugContext(ctx, "Conversation created", "conversation_id", id, "user_id", conv.UserID)
	return nil
}

const conversationColumns = `id, user_id, external_id, title, model, created_at, updated_at`

func (s *sqlxStore) getConversation(ctx context.Context, where string, arg any) (*Conversation, error) {
	var conv Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE ` + where
	err := s.db.GetContext(ctx, &conv, query, arg)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isContextErr(err):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting conversation", "filter", where, "error", err)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *sqlxStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	if id <= 0 {
		return nil, fmt.Errorf("conversation id must be positive")
	}
	return s.getConversation(ctx, "id = ?", id)
}

func (s *sqlxStore) GetConversationByExternalID(ctx context.Context, externalID string) (*Conversation, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external id cannot be empty")
	}
	return s.getConversation(ctx, "external_id = ?", externalID)
}

func (s *sqlxStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil || conv.ID <= 0 {
		return fmt.Errorf("cannot update conversation without id")
	}
	conv.UpdatedAt = now()

	query := `UPDATE conversations SET title = :title, model = :model, updated_at = :updated_at WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, query, conv)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating conversation", "conversation_id", conv.ID, "error", err)
		return fmt.Errorf("failed to update conversation %d: %w", conv.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("conversation %d not found", conv.ID)
	}
	return nil
}

func (s *sqlxStore) ListConversations(ctx context.Context, userID string, limit int) ([]*Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}

	conversations := []*Conversation{}
	query := `SELECT ` + conversationColumns + ` FROM conversations
	          WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &conversations, query, userID, clampLimit(limit)); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error listing conversations", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list conversations for user %s: %w", userID, err)
	}
	return conversations, nil
}

// SaveMessage inserts the message and touches its conversation in one transaction.
func (s *sqlxStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if msg.ConversationID <= 0 {
		return fmt.Errorf("message must have a conversation_id")
	}
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	if msg.Content == "" {
		return fmt.Errorf("message must have non-empty content")
	}
	msg.CreatedAt = now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message",
			"conversation_id", msg.ConversationID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        INSERT INTO messages (conversation_id, role, content, model, search_results, created_at)
        VALUES (:conversation_id, :role, :content, :model, :search_results, :created_at);
    `
	result, err := tx.NamedExecContext(ctx, query, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "conversation_id", msg.ConversationID, "error", err)
		return fmt.Errorf("failed to save message (conversation %d): %w", msg.ConversationID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}
	msg.ID = id

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ConversationID); err != nil {
		return fmt.Errorf("failed to touch conversation %d: %w", msg.ConversationID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "conversation_id", msg.ConversationID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message saved successfully",
		"conversation_id", msg.ConversationID, "message_id", msg.ID, "role", msg.Role)
	return nil
}

func (s *sqlxStore) GetMessages(ctx context.Context, conversationID int64, limit int) ([]*Message, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("conversation id must be positive")
	}

	messages := []*Message{}
	query := `
        SELECT id, conversation_id, role, content, model, search_results, created_at
        FROM (
            SELECT * FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
        )
        ORDER BY id ASC;
    `
	if err := s.db.SelectContext(ctx, &messages, query, conversationID, clampLimit(limit)); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error getting messages", "conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("failed to get messages for conversation %d: %w", conversationID, err)
	}
	return messages, nil
}

func (s *sqlxStore) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for conversation %d: %w", conversationID, err)
	}
	return count, nil
}

func (s *sqlxStore) CreateAttachment(ctx context.Context, att *Attachment) error {
	if att == nil {
		return fmt.Errorf("cannot save nil attachment")
	}
	if att.UserID == "" || att.Filename == "" || att.Path == "" {
		return fmt.Errorf("attachment must have user_id, filename and path")
	}

	if att.Metadata == nil {
		att.Metadata = Metadata{}
	}
	if att.Status() == "" {
		att.Metadata[MetadataAnalysisStatus] = AnalysisPending
	}
	att.AnalysisStatus = att.Status()

	ts := now()
	att.CreatedAt = ts
	att.UpdatedAt = ts

	query := `
        INSERT INTO attachments (user_id, filename, mime_type, path, size, analysis_status, metadata, created_at, updated_at)
        VALUES (:user_id, :filename, :mime_type, :path, :size, :analysis_status, :metadata, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, att)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating attachment", "user_id", att.UserID, "filename", att.Filename, "error", err)
		return fmt.Errorf("failed to create attachment %q: %w", att.Filename, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read attachment id: %w", err)
	}
	att.ID = id
	return nil
}

const attachmentColumns = `id, user_id, filename, mime_type, path, size, analysis_status, metadata, created_at, updated_at`

func (s *sqlxStore) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("attachment id must be positive")
	}

	var att Attachment
	err := s.db.GetContext(ctx, &att, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No attachment found", "attachment_id", id)
		return nil, nil
	case isContextErr(err):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting attachment", "attachment_id", id, "error", err)
		return nil, fmt.Errorf("failed to get attachment %d: %w", id, err)
	}
	return &att, nil
}

func (s *sqlxStore) UpdateAttachmentMetadata(ctx context.Context, id int64, metadata Metadata) error {
	if metadata == nil {
		metadata = Metadata{}
	}
	status := metadata.String(MetadataAnalysisStatus)
	if status == "" {
		status = AnalysisPending
		metadata[MetadataAnalysisStatus] = status
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE attachments SET metadata = ?, analysis_status = ?, updated_at = ? WHERE id = ?`,
		metadata, status, now(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating attachment metadata", "attachment_id", id, "error", err)
		return fmt.Errorf("failed to update attachment %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("attachment %d not found", id)
	}
	return nil
}

func (s *sqlxStore) GetPendingAttachments(ctx context.Context, limit int) ([]*Attachment, error) {
	attachments := []*Attachment{}
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE analysis_status = ? ORDER BY id ASC LIMIT ?`
	if err := s.db.SelectContext(ctx, &attachments, query, AnalysisPending, clampLimit(limit)); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get pending attachments: %w", err)
	}
	return attachments, nil
}

func (s *sqlxStore) GetCachedSearch(ctx context.Context, key string, at time.Time) (*SearchCacheEntry, error) {
	var entry SearchCacheEntry
	query := `SELECT cache_key, source, query, payload, created_at, expires_at
	          FROM search_cache WHERE cache_key = ? AND expires_at > ?`
	err := s.db.GetContext(ctx, &entry, query, key, at.UTC())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isContextErr(err):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to read search cache for %q: %w", key, err)
	}
	return &entry, nil
}

func (s *sqlxStore) SaveCachedSearch(ctx context.Context, entry *SearchCacheEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("search cache entry must have a key")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.ExpiresAt = entry.ExpiresAt.UTC()

	query := `
        INSERT INTO search_cache (cache_key, source, query, payload, created_at, expires_at)
        VALUES (:cache_key, :source, :query, :payload, :created_at, :expires_at)
        ON CONFLICT (cache_key) DO UPDATE SET
            payload = excluded.payload,
            created_at = excluded.created_at,
            expires_at = excluded.expires_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error saving search cache entry", "key", entry.Key, "error", err)
		return fmt.Errorf("failed to save search cache for %q: %w", entry.Key, err)
	}
	return nil
}

func (s *sqlxStore) PurgeExpiredSearchCache(ctx context.Context, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= ?`, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge search cache: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func (s *sqlxStore) GetUserMemory(ctx context.Context, userID string) (string, error) {
	var memory string
	err := s.db.GetContext(ctx, &memory, `SELECT memory FROM user_memory WHERE user_id = ?`, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to get memory for user %s: %w", userID, err)
	}
	return memory, nil
}

func (s *sqlxStore) SetUserMemory(ctx context.Context, userID, memory string) error {
	if userID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	query := `
        INSERT INTO user_memory (user_id, memory, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (user_id) DO UPDATE SET memory = excluded.memory, updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, userID, memory, now()); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user memory", "user_id", userID, "error", err)
		return fmt.Errorf("failed to save memory for user %s: %w", userID, err)
	}
	return nil
}

// RunSQLMaintenance runs PRAGMA optimize and VACUUM.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case isContextErr(err):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
