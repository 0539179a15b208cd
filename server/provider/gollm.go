package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"github.com/teilomillet/koreksi/config"
)

// generator is the part of gollm.LLM the client uses.
type generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
	SetOption(key string, value interface{})
}

// GollmClient reaches OpenAI, Anthropic and Ollama models through gollm.
type GollmClient struct {
	model    generator
	provider string
	name     string
}

// NewGollmClient configures a gollm LLM with the fixed generation settings.
func NewGollmClient(cfg config.LLMConfig) (*GollmClient, error) {
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, fmt.Errorf("%s: no API key configured", cfg.Provider)
	}

	model, err := gollm.NewLLM(
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s LLM: %w", cfg.Provider, err)
	}
	if cfg.Provider == "ollama" && cfg.Endpoint != "" {
		if err := model.SetOllamaEndpoint(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("set ollama endpoint: %w", err)
		}
	}
	return newGollmClient(model, cfg), nil
}

func newGollmClient(model generator, cfg config.LLMConfig) *GollmClient {
	model.SetOption("temperature", cfg.Temperature)
	model.SetOption("max_tokens", cfg.MaxOutputTokens)
	return &GollmClient{model: model, provider: cfg.Provider, name: cfg.Provider + ":" + cfg.Model}
}

func (c *GollmClient) Name() string { return c.name }

// Invoke sends a two-message prompt: system then user.
func (c *GollmClient) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prompt := &gollm.Prompt{
		Messages: []gollm.PromptMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	return c.model.Generate(ctx, prompt)
}
