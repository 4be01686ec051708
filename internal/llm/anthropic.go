package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AnthropicProvider implements the Provider interface using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	client       *http.Client
}

// NewAnthropicProvider creates a new Anthropic-compatible provider.
func NewAnthropicProvider(apiKey, apiBase, defaultModel string, extraHeaders map[string]string) *AnthropicProvider {
	if apiBase == "" {
		apiBase = "https://api.anthropic.com"
	}
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-5-20250514"
	}
	return &AnthropicProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimRight(apiBase, "/"),
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		client:       &http.Client{},
	}
}

func (p *AnthropicProvider) DefaultModel() string {
	return p.defaultModel
}

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	system, messages := p.convertMessages(req.Messages)

	body := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}
	if system != "" {
		body["system"] = system
	}
	if req.Temperature > 0 {
		// The Messages API caps temperature at 1.
		body["temperature"] = min(req.Temperature, 1.0)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	for k, v := range p.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return p.parseResponse(respBody)
}

// convertMessages pulls system turns into the top-level system prompt and
// merges consecutive same-role turns, which the Messages API rejects.
func (p *AnthropicProvider) convertMessages(msgs []Message) (string, []map[string]any) {
	var system []string
	var result []map[string]any

	for _, m := range msgs {
		role := m.Role
		switch role {
		case "system":
			system = append(system, m.Content)
			continue
		case "assistant":
		default:
			role = "user"
		}
		if n := len(result); n > 0 && result[n-1]["role"] == role {
			result[n-1]["content"] = result[n-1]["content"].(string) + "\n\n" + m.Content
			continue
		}
		result = append(result, map[string]any{"role": role, "content": m.Content})
	}
	return strings.Join(system, "\n\n"), result
}

func (p *AnthropicProvider) parseResponse(data []byte) (*ChatResponse, error) {
	var raw struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if raw.Error != nil {
		return nil, fmt.Errorf("anthropic %s: %s", raw.Error.Type, raw.Error.Message)
	}

	var text []string
	for _, block := range raw.Content {
		if block.Type == "text" && block.Text != "" {
			text = append(text, block.Text)
		}
	}

	finish := raw.StopReason
	if finish == "end_turn" {
		finish = "stop"
	}
	return &ChatResponse{
		Content:      strings.Join(text, "\n"),
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     raw.Usage.InputTokens,
			CompletionTokens: raw.Usage.OutputTokens,
		},
	}, nil
}
