// Package decider implements the agent's decision source: given a
// conversation context and the advertised tool set, produce either a
// direct reply or a tool invocation request.
//
// Two interchangeable backends share the Decider contract. The
// rule-based backend is deterministic and dependency-free, for offline
// use and tests; the Gemini backend calls a real model. Which one runs
// is fixed at construction time by configuration.
package decider

import (
	"context"
	"fmt"

	"deskagent/internal/config"
	"deskagent/internal/domain"
	"deskagent/internal/tools"
)

// Decider chooses the next step for a conversation.
//
// The returned error is transport-level only (the backend could not be
// reached at all). Malformed or unexpected model output is never an
// error: it degrades to a plain reply carrying the raw text.
type Decider interface {
	Decide(ctx context.Context, msgs []domain.Message, descriptors []tools.Descriptor) (domain.Decision, error)
}

// New constructs the decision source selected by configuration.
func New(cfg config.DeciderConfig) (Decider, error) {
	switch cfg.Provider {
	case config.ProviderRules:
		return NewRules(), nil
	case config.ProviderGemini:
		return NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown decider provider: %q", cfg.Provider)
	}
}
