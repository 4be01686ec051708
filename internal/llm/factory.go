package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joebot/relaybot/internal/config"
	"github.com/joebot/relaybot/internal/telemetry"
)

// ErrNoProvider means no provider has an API key configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// Default endpoints for the OpenAI-compatible providers.
var defaultBases = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai/",
}

// Models used when the configured model belongs to another provider.
var defaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-5-20250514",
	"openai":     "gpt-4o-mini",
	"openrouter": "openai/gpt-4o-mini",
	"deepseek":   "deepseek-chat",
	"gemini":     "gemini-2.0-flash",
}

// New builds the provider selected by cfg.GetProvider.
func New(cfg *config.Config) (Provider, error) {
	match := cfg.GetProvider()
	if match == nil || match.Config.APIKey == "" {
		return nil, ErrNoProvider
	}

	p := match.Config
	model := defaultModels[match.Name]
	if match.ByModel {
		model = cfg.LLM.Model
	}

	switch match.Name {
	case "anthropic":
		return NewAnthropicProvider(p.APIKey, p.APIBase, model, p.ExtraHeaders), nil
	default:
		base := p.APIBase
		if base == "" {
			base = defaultBases[match.Name]
		}
		return NewOpenAIProvider(p.APIKey, base, model, p.ExtraHeaders), nil
	}
}

// Generator turns a system prompt and a user prompt into text using one
// provider and fixed generation parameters.
type Generator struct {
	provider    Provider
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewGenerator wraps p with the generation settings from cfg.
func NewGenerator(p Provider, cfg config.LLMConfig) *Generator {
	return &Generator{
		provider:    p,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     time.Duration(cfg.TimeoutS) * time.Second,
	}
}

// Model is the model the generator asks for.
func (g *Generator) Model() string {
	return g.provider.DefaultModel()
}

// Generate returns the trimmed completion for prompt. An empty completion is
// reported as ErrEmptyResponse.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	ctx, span := telemetry.StartSpan(ctx, "llm", "llm.generate")
	defer span.End()

	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: prompt})

	start := time.Now()
	resp, err := g.provider.Chat(ctx, ChatRequest{
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("generate: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		telemetry.RecordError(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}
	slog.Debug("Completion received",
		"model", g.provider.DefaultModel(),
		"duration", time.Since(start).Round(time.Millisecond),
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
	)
	return text, nil
}
