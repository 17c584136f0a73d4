package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"exia/pkg/retrylimit"
)

// OpenAIProvider uses a hosted OpenAI-compatible API through the official
// client library. Same retry policy as the local provider.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float64
	limiter     *retrylimit.AdaptiveLimiter
	retry       retrylimit.RetryConfig
}

// NewOpenAIProvider creates a provider for the hosted API.
func NewOpenAIProvider(apiKey, model string, temperature float64) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		limiter:     retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		retry:       retrylimit.DefaultRetryConfig(),
	}
}

// Generate sends the chat completion request with bounded retries.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(p.temperature),
		MaxTokens:   maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var reply string
	err := retrylimit.WithRetryConfig(ctx, func() error {
		resp, reqErr := p.client.CreateChatCompletion(ctx, req)
		if reqErr != nil {
			if apiErr, ok := reqErr.(*openai.APIError); ok {
				return &httpStatusError{status: apiErr.HTTPStatusCode, body: apiErr.Message}
			}
			return reqErr
		}
		if len(resp.Choices) == 0 {
			return &retrylimit.FatalError{Err: fmt.Errorf("completion returned no choices")}
		}
		reply = resp.Choices[0].Message.Content
		return nil
	}, p.limiter, p.retry)
	if err != nil {
		return "", err
	}
	return reply, nil
}
