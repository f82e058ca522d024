// Package config provides configuration loading, validation, and defaults
// for the murailochat service. Values are read from a YAML file and may be
// overridden by MURAILO_* environment variables.
package config

import (
	"time"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	Database    DatabaseConfig    `mapstructure:"database"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Mistral     CompletionConfig  `mapstructure:"mistral"`
	OpenRouter  CompletionConfig  `mapstructure:"openrouter"`
	Search      SearchConfig      `mapstructure:"search"`
	Assistant   AssistantConfig   `mapstructure:"assistant"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// HTTPConfig holds the chat API listener settings.
type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"            validate:"required"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"    validate:"min=1s"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"   validate:"min=1s"`
}

// TelegramConfig enables the Telegram transport when Token is set.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// DefaultModel is the display model name used for Telegram chats.
	DefaultModel string `mapstructure:"default_model" validate:"required"`
}

// GeminiConfig configures the primary provider.
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"          validate:"omitempty,url"`
	Temperature     float32       `mapstructure:"temperature"       validate:"min=0,max=2"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"min=1,max=65536"`
	Timeout         time.Duration `mapstructure:"timeout"           validate:"min=1s,max=10m"`
}

// CompletionConfig configures an OpenAI-compatible provider (Mistral, OpenRouter).
type CompletionConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"    validate:"required,url"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"  validate:"min=1,max=65536"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	// Referer and Title are sent as HTTP-Referer / X-Title (OpenRouter attribution).
	Referer string `mapstructure:"referer"`
	Title   string `mapstructure:"title"`
}

// SearchConfig configures the enrichment search sources.
type SearchConfig struct {
	GoogleAPIKey  string        `mapstructure:"google_api_key"`
	GoogleCX      string        `mapstructure:"google_cx"`
	YouTubeAPIKey string        `mapstructure:"youtube_api_key"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"      validate:"min=1m"`
	Timeout       time.Duration `mapstructure:"timeout"        validate:"min=1s,max=1m"`
	MaxResults    int           `mapstructure:"max_results"    validate:"min=1,max=10"`
}

// AssistantConfig holds the persona and routing defaults.
type AssistantConfig struct {
	Name         string        `mapstructure:"name"          validate:"required"`
	DefaultModel string        `mapstructure:"default_model" validate:"required"`
	TitleModel   string        `mapstructure:"title_model"   validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=1s,max=10m"`
}

// AttachmentsConfig controls uploaded file storage and analysis.
type AttachmentsConfig struct {
	Dir           string `mapstructure:"dir"             validate:"required"`
	MaxUploadSize int64  `mapstructure:"max_upload_size" validate:"min=1024"`
	AnalysisModel string `mapstructure:"analysis_model"  validate:"required"`
	BatchSize     int    `mapstructure:"batch_size"      validate:"min=1,max=100"`
}

// SchedulerConfig lists the scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and sets its cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}
