package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/teilomillet/koreksi/config"
	"google.golang.org/genai"
)

// contentGenerator is the part of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient calls the Gemini API through the official genai SDK.
type GeminiClient struct {
	models          contentGenerator
	model           string
	temperature     float32
	maxOutputTokens int32
}

// NewGeminiClient creates a client for cfg.Model. The key falls back to
// GEMINI_API_KEY, then GOOGLE_API_KEY.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: no API key in config, GEMINI_API_KEY or GOOGLE_API_KEY")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGeminiClient(cli.Models, cfg), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMConfig) *GeminiClient {
	return &GeminiClient{
		models:          models,
		model:           cfg.Model,
		temperature:     float32(cfg.Temperature),
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

// Invoke sends systemPrompt as the system instruction and userPrompt as the
// single user turn. Text parts of the first candidate are concatenated.
func (g *GeminiClient) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: userPrompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			Temperature:       genai.Ptr(g.temperature),
			MaxOutputTokens:   g.maxOutputTokens,
		},
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}
