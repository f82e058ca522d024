package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment analysis states stored under MetadataAnalysisStatus.
const (
	AnalysisPending   = "pending"
	AnalysisCompleted = "completed"
	AnalysisError     = "error"
	// AnalysisUnsupported marks files the analyzer cannot read.
	AnalysisUnsupported = "unsupported"
)

// Keys of the attachment metadata bag written by the analysis task.
const (
	MetadataAnalysisStatus = "analysisStatus"
	MetadataAIAnalysis     = "aiAnalysis"
	MetadataAnalysisError  = "analysisError"
)

// Conversation groups the messages exchanged with one model.
// ExternalID links the conversation to a transport chat (e.g. "telegram:42").
type Conversation struct {
	ID         int64          `db:"id"          json:"id"`
	UserID     string         `db:"user_id"     json:"userId"`
	ExternalID sql.NullString `db:"external_id" json:"-"`
	Title      string         `db:"title"       json:"title"`
	Model      string         `db:"model"       json:"model"`
	CreatedAt  time.Time      `db:"created_at"  json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at"  json:"updatedAt"`
}

// Message is one turn of a conversation. Assistant messages carry the display
// model name and the JSON-encoded search results used to build the prompt.
type Message struct {
	ID             int64     `db:"id"              json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	Role           string    `db:"role"            json:"role"`
	Content        string    `db:"content"         json:"content"`
	Model          string    `db:"model"           json:"model,omitempty"`
	SearchResults  string    `db:"search_results"  json:"searchResults,omitempty"`
	CreatedAt      time.Time `db:"created_at"      json:"createdAt"`
}

// Metadata is the free-form attachment bag, stored as a JSON object.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}

	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// String returns the value at key when it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Attachment is an uploaded file. The analysis status is mirrored in the
// analysis_status column so pending rows can be queried.
type Attachment struct {
	ID             int64     `db:"id"              json:"id"`
	UserID         string    `db:"user_id"         json:"userId"`
	Filename       string    `db:"filename"        json:"filename"`
	MimeType       string    `db:"mime_type"       json:"mimeType"`
	Path           string    `db:"path"            json:"-"`
	Size           int64     `db:"size"            json:"size"`
	AnalysisStatus string    `db:"analysis_status" json:"analysisStatus"`
	Metadata       Metadata  `db:"metadata"        json:"metadata"`
	CreatedAt      time.Time `db:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updatedAt"`
}

// Status returns the analysis status from the metadata bag.
func (a *Attachment) Status() string {
	return a.Metadata.String(MetadataAnalysisStatus)
}

// Analysis returns the stored analysis text.
func (a *Attachment) Analysis() string {
	return a.Metadata.String(MetadataAIAnalysis)
}

// SearchCacheEntry holds the encoded results of one search source for one
// normalized query.
type SearchCacheEntry struct {
	Key       string    `db:"cache_key"`
	Source    string    `db:"source"`
	Query     string    `db:"query"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}
