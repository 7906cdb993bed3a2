package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// openaiBackend speaks the chat completions API, which also covers
// OpenRouter and vLLM when base_url points at them.
type openaiBackend struct {
	client *openai.Client
	model  string
}

func newOpenAIBackend(cfg ServiceConfig) *openaiBackend {
	c := openai.DefaultConfig(cfg.APIKey)
	c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &openaiBackend{
		client: openai.NewClientWithConfig(c),
		model:  cfg.Model,
	}
}

func (b *openaiBackend) name() string { return "openai" }

func (b *openaiBackend) complete(ctx context.Context, prompt string, p Params) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: p.MaxNewTokens,
	}
	if p.Temperature != nil {
		req.Temperature = float32(*p.Temperature)
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyOutput
	}
	return resp.Choices[0].Message.Content, nil
}
