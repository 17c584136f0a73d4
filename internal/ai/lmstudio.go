package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"exia/pkg/retrylimit"
)

// LMStudioProvider talks to an OpenAI-compatible chat completions endpoint
// (LM Studio by default). Transport failures and 5xx/429 responses are
// retried with backoff; malformed payloads are terminal for the call.
type LMStudioProvider struct {
	url         string
	model       string
	temperature float64
	client      *http.Client
	limiter     *retrylimit.AdaptiveLimiter
	retry       retrylimit.RetryConfig
}

// NewLMStudioProvider creates a provider for the given completions URL.
func NewLMStudioProvider(url, model string, temperature float64) *LMStudioProvider {
	return &LMStudioProvider{
		url:         url,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		retry:       retrylimit.DefaultRetryConfig(),
	}
}

// httpStatusError carries a non-success status through the retry classifier.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("completion http %d: %s", e.status, e.body)
}

func (e *httpStatusError) StatusCode() int { return e.status }

// Generate sends the chat completion request, retrying per the provider's
// retry policy. It mutates no shared state.
func (p *LMStudioProvider) Generate(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": p.temperature,
		"max_tokens":  maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var reply string
	err = retrylimit.WithRetryConfig(ctx, func() error {
		text, reqErr := p.once(ctx, body)
		if reqErr != nil {
			return reqErr
		}
		reply = text
		return nil
	}, p.limiter, p.retry)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (p *LMStudioProvider) once(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", &retrylimit.FatalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpStatusError{status: resp.StatusCode, body: truncate(respBody)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &retrylimit.FatalError{Err: fmt.Errorf("unmarshal completion: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &retrylimit.FatalError{Err: fmt.Errorf("completion returned no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
