// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Decision source providers.
const (
	ProviderRules  = "rules"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Trace       TraceConfig
	Decider     DeciderConfig
	Agent       AgentConfig
	RateLimit   RateLimitConfig

	MaxRequestBodySize int64
}

// TraceConfig controls the append-only NDJSON trace stream.
type TraceConfig struct {
	Path      string
	QueueSize int
}

// DeciderConfig selects and configures the decision source backend.
type DeciderConfig struct {
	Provider     string // "rules" or "gemini"
	GeminiAPIKey string
	GeminiModel  string
}

// AgentConfig holds orchestration loop policy knobs.
type AgentConfig struct {
	// MaxSteps is the decide-dispatch iteration cap. The default of 5 is
	// a compatibility constant; changing it changes when escalation fires.
	MaxSteps int
	// MemoryRecallLimit bounds how many memory entries are rendered into
	// the decision context.
	MemoryRecallLimit int
}

// RateLimitConfig controls per-user request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/deskagent.db"),
		Trace: TraceConfig{
			Path:      getEnv("TRACE_PATH", "./data/traces.ndjson"),
			QueueSize: getEnvInt("TRACE_QUEUE_SIZE", 1000),
		},
		Decider: DeciderConfig{
			Provider:     getEnv("DECIDER_PROVIDER", ProviderRules),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Agent: AgentConfig{
			MaxSteps:          getEnvInt("AGENT_MAX_STEPS", 5),
			MemoryRecallLimit: getEnvInt("AGENT_MEMORY_RECALL_LIMIT", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Trace.Path == "" {
		return fmt.Errorf("TRACE_PATH cannot be empty")
	}
	if c.Trace.QueueSize <= 0 {
		return fmt.Errorf("TRACE_QUEUE_SIZE must be > 0")
	}
	switch c.Decider.Provider {
	case ProviderRules:
	case ProviderGemini:
		if c.Decider.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when DECIDER_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("DECIDER_PROVIDER must be %q or %q", ProviderRules, ProviderGemini)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("AGENT_MAX_STEPS must be > 0")
	}
	if c.Agent.MemoryRecallLimit <= 0 {
		return fmt.Errorf("AGENT_MEMORY_RECALL_LIMIT must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
