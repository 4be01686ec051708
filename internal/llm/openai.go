package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements Provider against any OpenAI-compatible chat
// completions endpoint (OpenAI, OpenRouter, DeepSeek, Gemini's compat layer).
type OpenAIProvider struct {
	client       openai.Client
	defaultModel string
}

// NewOpenAIProvider creates a provider. An empty apiBase uses the SDK default.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string, extraHeaders map[string]string, opts ...option.RequestOption) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(apiBase); base != "" {
		all = append(all, option.WithBaseURL(base))
	}
	for k, v := range extraHeaders {
		all = append(all, option.WithHeader(k, v))
	}
	all = append(all, opts...)
	return &OpenAIProvider{
		client:       openai.NewClient(all...),
		defaultModel: defaultModel,
	}
}

func (p *OpenAIProvider) DefaultModel() string {
	return p.defaultModel
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := completion.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}
