package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/briefcast/briefcast/internal/metrics"
	"github.com/briefcast/briefcast/internal/ratelimit"
)

// Cost per 1K tokens by model. Models missing from the table cost 0.
var openAICostPer1K = map[string]struct{ input, output float64 }{
	"gpt-4o":        {0.005, 0.015},
	"gpt-4o-mini":   {0.00015, 0.0006},
	"gpt-4":         {0.03, 0.06},
	"gpt-3.5-turbo": {0.001, 0.002},
}

// OpenAIProvider talks to the OpenAI chat completions API.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	limiter *ratelimit.Limiter

	mu          sync.Mutex
	totalTokens int
	apiCalls    int
}

// NewOpenAIProvider creates a provider for the given model. A non-empty
// baseURL points the client at an OpenAI-compatible endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string, limiter *ratelimit.Limiter) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		limiter: limiter,
	}
}

func (p *OpenAIProvider) complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	if err := p.limiter.Allow(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.apiCalls++
	p.mu.Unlock()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature:         temperature,
		MaxCompletionTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	p.mu.Lock()
	p.totalTokens += resp.Usage.TotalTokens
	p.mu.Unlock()

	metrics.Global.IncrementLLMCalls()
	metrics.Global.AddLLMTokens(int64(resp.Usage.TotalTokens))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) SummarizeArticle(ctx context.Context, title, content, url, outlet string, maxBullets int) ([]string, error) {
	prompt := summarizePrompt(title, truncateContent(content), url, outlet, maxBullets)

	text, err := p.complete(ctx, prompt, 0.3, 300)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize article %q: %w", title, err)
	}

	return parseBullets(text, maxBullets), nil
}

func (p *OpenAIProvider) GenerateScript(ctx context.Context, notes string, targetMinutes int, runDate string) (string, error) {
	targetWords := targetMinutes * wordsPerMinute
	maxTokens := targetWords + 200
	if maxTokens > 4000 {
		maxTokens = 4000
	}

	text, err := p.complete(ctx, scriptPrompt(notes, targetMinutes, targetWords, runDate), 0.4, maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to generate script: %w", err)
	}

	return text, nil
}

// Usage estimates cost assuming a 70/30 input/output split of the
// accumulated token total.
func (p *OpenAIProvider) Usage() UsageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := UsageStats{
		TotalTokens: p.totalTokens,
		APICalls:    p.apiCalls,
		Model:       p.model,
	}

	if rates, ok := openAICostPer1K[p.model]; ok {
		inputTokens := int(float64(p.totalTokens) * 0.7)
		outputTokens := int(float64(p.totalTokens) * 0.3)
		stats.EstimatedCost = float64(inputTokens)/1000*rates.input + float64(outputTokens)/1000*rates.output
	}

	return stats
}
