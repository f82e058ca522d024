package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "murailochat.db"

	DefaultHTTPAddr         = ":8080"
	DefaultHTTPReadTimeout  = 30 * time.Second
	DefaultHTTPWriteTimeout = 3 * time.Minute

	DefaultGeminiTemperature     = 0.7
	DefaultGeminiMaxOutputTokens = 2048
	DefaultProviderTimeout       = 2 * time.Minute

	DefaultMistralBaseURL    = "https://api.mistral.ai/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultMaxTokens         = 2048
	DefaultTemperature       = 0.7

	DefaultSearchCacheTTL   = 24 * time.Hour
	DefaultSearchTimeout    = 10 * time.Second
	DefaultSearchMaxResults = 5

	DefaultAssistantName  = "Murai"
	DefaultModel          = "Gemini 2.5 Flash"
	DefaultAssistantLimit = 2 * time.Minute

	DefaultAttachmentsDir    = "uploads"
	DefaultMaxUploadSize     = 10 << 20
	DefaultAnalysisModel     = "Gemini 2.5 Flash"
	DefaultAnalysisBatchSize = 10
)

// DefaultTasks is the built-in scheduler layout; every entry can be
// overridden under scheduler.tasks.<name>.
var DefaultTasks = map[string]TaskConfig{
	"attachment_analysis":  {Enabled: true, Schedule: "*/30 * * * * *"},
	"database_maintenance": {Enabled: true, Schedule: "0 30 3 * * *"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", DefaultHTTPReadTimeout)
	v.SetDefault("http.write_timeout", DefaultHTTPWriteTimeout)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.default_model", DefaultModel)

	// API keys get empty defaults so AutomaticEnv can bind them during Unmarshal.
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.max_output_tokens", DefaultGeminiMaxOutputTokens)
	v.SetDefault("gemini.timeout", DefaultProviderTimeout)

	v.SetDefault("mistral.api_key", "")
	v.SetDefault("mistral.base_url", DefaultMistralBaseURL)
	v.SetDefault("mistral.temperature", DefaultTemperature)
	v.SetDefault("mistral.max_tokens", DefaultMaxTokens)
	v.SetDefault("mistral.timeout", DefaultProviderTimeout)
	v.SetDefault("mistral.referer", "")
	v.SetDefault("mistral.title", "")

	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.base_url", DefaultOpenRouterBaseURL)
	v.SetDefault("openrouter.temperature", DefaultTemperature)
	v.SetDefault("openrouter.max_tokens", DefaultMaxTokens)
	v.SetDefault("openrouter.timeout", DefaultProviderTimeout)
	v.SetDefault("openrouter.referer", "https://murailochat.local")
	v.SetDefault("openrouter.title", "murailochat")

	v.SetDefault("search.google_api_key", "")
	v.SetDefault("search.google_cx", "")
	v.SetDefault("search.youtube_api_key", "")
	v.SetDefault("search.cache_ttl", DefaultSearchCacheTTL)
	v.SetDefault("search.timeout", DefaultSearchTimeout)
	v.SetDefault("search.max_results", DefaultSearchMaxResults)

	v.SetDefault("assistant.name", DefaultAssistantName)
	v.SetDefault("assistant.default_model", DefaultModel)
	v.SetDefault("assistant.title_model", DefaultModel)
	v.SetDefault("assistant.timeout", DefaultAssistantLimit)

	v.SetDefault("attachments.dir", DefaultAttachmentsDir)
	v.SetDefault("attachments.max_upload_size", DefaultMaxUploadSize)
	v.SetDefault("attachments.analysis_model", DefaultAnalysisModel)
	v.SetDefault("attachments.batch_size", DefaultAnalysisBatchSize)

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}
}
