package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible completion/embedding endpoint. Requests
// run behind a client-side rate limiter and the resilience executor; the
// provider-reported token usage is passed through untouched because the
// ledger accounts with it.
type Client struct {
	baseURL    string
	apiKey     string
	provider   string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

type Options struct {
	Provider           string
	Timeout            time.Duration
	RequestsPerSecond  float64
	Burst              int
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 2
	}
	provider := options.Provider
	if provider == "" {
		provider = "openai"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		provider:   provider,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage usage `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	payload := chatRequest{
		Model:     req.Model,
		Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens: req.MaxTokens,
	}

	var response chatResponse
	if err := c.call(ctx, "chat", "/v1/chat/completions", payload, &response); err != nil {
		return domain.Completion{}, err
	}
	if len(response.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("chat response carries no choices")
	}

	return domain.Completion{
		Text:         strings.TrimSpace(response.Choices[0].Message.Content),
		Provider:     c.provider,
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
	}, nil
}

func (c *Client) Embed(ctx context.Context, model string, texts []string) (domain.EmbedResult, error) {
	if len(texts) == 0 {
		return domain.EmbedResult{Provider: c.provider}, nil
	}

	payload := embedRequest{Model: model, Input: texts}
	var response embedResponse
	if err := c.call(ctx, "embed", "/v1/embeddings", payload, &response); err != nil {
		return domain.EmbedResult{}, err
	}

	vectors := make([][]float32, 0, len(response.Data))
	for _, item := range response.Data {
		vectors = append(vectors, item.Embedding)
	}
	return domain.EmbedResult{
		Vectors:     vectors,
		Provider:    c.provider,
		InputTokens: response.Usage.PromptTokens,
	}, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	fn := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm."+operation, fn, classifyProviderError)
	} else {
		err = fn(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
