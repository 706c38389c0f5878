package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/briefcast/briefcast/internal/metrics"
	"github.com/briefcast/briefcast/internal/ratelimit"
)

// GeminiProvider talks to Google's Gemini API.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	limiter *ratelimit.Limiter

	mu          sync.Mutex
	totalTokens int
	apiCalls    int
}

func NewGeminiProvider(apiKey, model string, limiter *ratelimit.Limiter) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client:  client,
		model:   model,
		limiter: limiter,
	}, nil
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	if err := p.limiter.Allow(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.apiCalls++
	p.mu.Unlock()

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(int32(maxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini")
	}

	if resp.UsageMetadata != nil {
		tokens := int(resp.UsageMetadata.TotalTokenCount)
		p.mu.Lock()
		p.totalTokens += tokens
		p.mu.Unlock()
		metrics.Global.AddLLMTokens(int64(tokens))
	}
	metrics.Global.IncrementLLMCalls()

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	return strings.TrimSpace(text), nil
}

func (p *GeminiProvider) SummarizeArticle(ctx context.Context, title, content, url, outlet string, maxBullets int) ([]string, error) {
	prompt := summarizePrompt(title, truncateContent(content), url, outlet, maxBullets)

	text, err := p.generate(ctx, prompt, 0.3, 300)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize article %q: %w", title, err)
	}

	return parseBullets(text, maxBullets), nil
}

func (p *GeminiProvider) GenerateScript(ctx context.Context, notes string, targetMinutes int, runDate string) (string, error) {
	targetWords := targetMinutes * wordsPerMinute
	maxTokens := targetWords + 200
	if maxTokens > 4000 {
		maxTokens = 4000
	}

	text, err := p.generate(ctx, scriptPrompt(notes, targetMinutes, targetWords, runDate), 0.4, maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to generate script: %w", err)
	}

	return text, nil
}

// Usage reports token counts only; there is no cost table for Gemini models.
func (p *GeminiProvider) Usage() UsageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return UsageStats{
		TotalTokens: p.totalTokens,
		APICalls:    p.apiCalls,
		Model:       p.model,
	}
}
