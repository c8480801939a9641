package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Decider.Provider != ProviderRules {
		t.Errorf("expected default provider rules, got %q", cfg.Decider.Provider)
	}
	if cfg.Agent.MaxSteps != 5 {
		t.Errorf("expected default max steps 5, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.MemoryRecallLimit != 5 {
		t.Errorf("expected default recall limit 5, got %d", cfg.Agent.MemoryRecallLimit)
	}
	if cfg.RateLimit.WindowDuration != time.Minute {
		t.Errorf("expected default window 1m, got %v", cfg.RateLimit.WindowDuration)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AGENT_MAX_STEPS", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.Agent.MaxSteps != 3 {
		t.Errorf("expected max steps 3, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.RateLimit.WindowDuration != 30*time.Second {
		t.Errorf("expected 30s window, got %v", cfg.RateLimit.WindowDuration)
	}
}

func TestLoadRejectsGeminiWithoutKey(t *testing.T) {
	t.Setenv("DECIDER_PROVIDER", ProviderGemini)
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for gemini provider without API key")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("DECIDER_PROVIDER", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestValidateRejectsBadAgentConfig(t *testing.T) {
	cfg := &Config{
		Port:    "8080",
		DBPath:  "x.db",
		Trace:   TraceConfig{Path: "t.ndjson", QueueSize: 10},
		Decider: DeciderConfig{Provider: ProviderRules},
		Agent:   AgentConfig{MaxSteps: 0, MemoryRecallLimit: 5},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			WindowDuration:    time.Minute,
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero max steps")
	}
}
