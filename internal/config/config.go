// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv           string `env:"APP_ENV" envDefault:"dev"`
	Port             int    `env:"PORT" envDefault:"8080"`
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`

	// Track queue
	QueueMaxCapacity    int `env:"QUEUE_MAX_CAPACITY" envDefault:"1000"`
	QueueDequeueDefault int `env:"QUEUE_DEQUEUE_DEFAULT_N" envDefault:"10"`
	QueueLowWatermark   int `env:"QUEUE_LOW_WATERMARK" envDefault:"100"`

	// Replenishment worker
	MinThreshold   int     `env:"OTODOKI_MIN_THRESHOLD" envDefault:"30"`
	BatchSize      int     `env:"OTODOKI_BATCH_SIZE" envDefault:"30"`
	MaxCap         int     `env:"OTODOKI_MAX_CAP" envDefault:"300"`
	PollIntervalMS int     `env:"OTODOKI_POLL_INTERVAL_MS" envDefault:"1500"`
	HTTPTimeoutS   float64 `env:"OTODOKI_HTTP_TIMEOUT_S" envDefault:"5.0"`
	RetryMax       int     `env:"OTODOKI_RETRY_MAX" envDefault:"3"`
	Country        string  `env:"OTODOKI_COUNTRY" envDefault:"JP"`
	Lang           string  `env:"OTODOKI_LANG" envDefault:"ja_jp"`

	// Search strategies
	SearchStrategy string   `env:"OTODOKI_SEARCH_STRATEGY" envDefault:"gemini_keyword"`
	ITunesTerms    []string `env:"OTODOKI_ITUNES_TERMS" envSeparator:","`
	SearchGenres   []string `env:"OTODOKI_SEARCH_GENRES" envSeparator:","`
	SearchYears    []string `env:"OTODOKI_SEARCH_YEARS" envSeparator:","`

	// Suggestions API
	SuggestionsDefaultLimit int `env:"OTODOKI_SUGGESTIONS_DEFAULT_LIMIT" envDefault:"10"`
	SuggestionsMaxLimit     int `env:"OTODOKI_SUGGESTIONS_MAX_LIMIT" envDefault:"50"`
	RateLimitPerSec         int `env:"OTODOKI_RATE_LIMIT_PER_SEC" envDefault:"20"`

	// Gemini keyword strategy
	GeminiAPIKey          string        `env:"OTODOKI_GEMINI_API_KEY"`
	GeminiModel           string        `env:"OTODOKI_GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiTemperature     float64       `env:"OTODOKI_GEMINI_TEMPERATURE" envDefault:"0.9"`
	GeminiTopP            float64       `env:"OTODOKI_GEMINI_TOP_P" envDefault:"0.95"`
	GeminiTopK            int           `env:"OTODOKI_GEMINI_TOP_K" envDefault:"40"`
	GeminiMaxOutputTokens int           `env:"OTODOKI_GEMINI_MAX_OUTPUT_TOKENS" envDefault:"256"`
	GeminiPrompt          string        `env:"OTODOKI_GEMINI_PROMPT" envDefault:"多様な音楽検索のためのキーワードをカンマ区切りで10個程度生成してください。具体的なアーティスト名、曲名、ジャンル、年代などのキーワードを含めてください。例: back number,春,卒業,J-POP,2010年代,ロック"`
	GeminiMinInterval     time.Duration `env:"OTODOKI_GEMINI_MIN_INTERVAL" envDefault:"2s"`

	// HTTP server
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Observability
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"otodoki"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// HTTPTimeout returns the catalog read timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutS * float64(time.Second))
}

// PollInterval returns the worker poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
