package generation

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider produces deterministic output without network access. It backs
// keyless runs and tests.
type MockProvider struct {
	mu    sync.Mutex
	calls int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) SummarizeArticle(_ context.Context, title, _, _, outlet string, maxBullets int) ([]string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	short := title
	if len(short) > 50 {
		short = short[:50]
	}

	bullets := []string{
		fmt.Sprintf("Mock summary of '%s...'", short),
		fmt.Sprintf("Published by %s", outlet),
		"Key technical details and implications",
		"Business impact and next steps",
	}
	if maxBullets > 0 && len(bullets) > maxBullets {
		bullets = bullets[:maxBullets]
	}

	return bullets, nil
}

func (p *MockProvider) GenerateScript(_ context.Context, _ string, targetMinutes int, runDate string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	return fmt.Sprintf(`Welcome to your AI news briefing for %s.

Today we're covering %d minutes of the latest developments in artificial intelligence and technology.

Our first story covers the most significant release of the day, with early reactions from practitioners and what it means for teams already building on the platform.

Moving on to our next development, researchers published results that challenge an assumption the field has carried for years, and the follow-up work is already underway.

That wraps up today's briefing. You can find detailed links and references in the show notes.

Thank you for listening, and we'll see you next time.`, runDate, targetMinutes), nil
}

func (p *MockProvider) Usage() UsageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return UsageStats{
		TotalTokens: p.calls * 100,
		APICalls:    p.calls,
		Model:       "mock",
	}
}
