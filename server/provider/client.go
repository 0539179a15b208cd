// Package provider talks to the hosted model. A Client sends one system
// instruction and one user instruction and returns the raw reply text;
// the Manager adds a circuit breaker and metrics around it.
package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/koreksi/config"
)

// Client is a single model backend.
type Client interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	case "openai", "anthropic", "ollama":
		return NewGollmClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
