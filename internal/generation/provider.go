// Package generation turns a run's selected articles into show notes and a
// narration script through an LLM provider.
package generation

import (
	"context"
	"fmt"
	"os"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/logger"
	"github.com/briefcast/briefcast/internal/ratelimit"
)

// UsageStats is a cumulative snapshot of a provider's API usage.
type UsageStats struct {
	TotalTokens   int
	APICalls      int
	EstimatedCost float64
	Model         string
}

// Provider abstracts the LLM backend.
type Provider interface {
	SummarizeArticle(ctx context.Context, title, content, url, outlet string, maxBullets int) ([]string, error)
	GenerateScript(ctx context.Context, notes string, targetMinutes int, runDate string) (string, error)
	Usage() UsageStats
}

// NewProvider builds the configured provider. A real provider without an API
// key in the environment degrades to the mock provider so a run can still
// complete end to end.
func NewProvider(cfg config.LLMConfig, limiter *ratelimit.Limiter) Provider {
	switch cfg.Provider {
	case "openai":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			logger.Warn("no openai api key found, using mock llm provider", "env", cfg.APIKeyEnv)
			return NewMockProvider()
		}
		return NewOpenAIProvider(apiKey, cfg.Model, cfg.BaseURL, limiter)
	case "gemini":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			logger.Warn("no gemini api key found, using mock llm provider", "env", cfg.APIKeyEnv)
			return NewMockProvider()
		}
		p, err := NewGeminiProvider(apiKey, cfg.Model, limiter)
		if err != nil {
			logger.Warn("failed to create gemini provider, using mock llm provider", "error", err.Error())
			return NewMockProvider()
		}
		return p
	case "mock":
		return NewMockProvider()
	default:
		logger.Warn("unknown llm provider, using mock llm provider", "provider", cfg.Provider)
		return NewMockProvider()
	}
}

// maxContentChars caps article text sent for summarization, roughly 2000
// tokens at 4 chars per token.
const maxContentChars = 8000

func truncateContent(content string) string {
	if len(content) > maxContentChars {
		return content[:maxContentChars] + "..."
	}
	return content
}

func summarizePrompt(title, content, url, outlet string, maxBullets int) string {
	return fmt.Sprintf(`Please summarize this AI/technology article into %d clear, informative bullet points.

Article Title: %s
Source: %s
URL: %s

Article Content:
%s

Instructions:
- Focus on practical implications, technical details, and business impact
- Each bullet should be 1-2 sentences maximum
- Avoid marketing fluff and focus on concrete developments
- If it's about a product launch, include key capabilities and availability
- If it's research, include key findings and implications
- If it's business news, include scale, partnerships, or strategic implications

Format as a simple bulleted list:
• Point 1
• Point 2
• Point 3
• Point 4 (if applicable)`, maxBullets, title, outlet, url, content)
}

func scriptPrompt(notes string, targetMinutes, targetWords int, runDate string) string {
	return fmt.Sprintf(`Create a podcast script for an AI/technology news briefing based on these show notes.

Show Notes:
%s

Requirements:
- Target length: approximately %d words (%d minutes when read aloud)
- Professional, conversational tone suitable for audio
- Clear transitions between topics
- Start with a brief intro mentioning the date (%s) and what's covered
- End with a short conclusion and mention of show notes availability
- Use natural language that flows well when spoken
- Group related stories together logically
- Reference "show notes" for detailed links, not specific URLs
- Keep paragraphs short for easy reading

Format as a clean script without special formatting or stage directions.`, notes, targetWords, targetMinutes, runDate)
}
