package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/briefcast/briefcast/internal/logger"
)

// ErrBudgetExhausted is returned once the request budget for the current
// window is spent.
var ErrBudgetExhausted = errors.New("llm request budget exhausted")

// Limiter caps how many LLM requests the process may issue per 24h window.
// A max of 0 means unlimited.
type Limiter struct {
	mu      sync.Mutex
	max     int
	used    int
	resetAt time.Time
}

func NewDaily(max int) *Limiter {
	return &Limiter{
		max:     max,
		resetAt: time.Now().Add(24 * time.Hour),
	}
}

// Allow consumes one request from the budget.
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()

	if l.max > 0 && l.used >= l.max {
		logger.Warn("llm request budget exhausted", "used", l.used, "max", l.max)
		return ErrBudgetExhausted
	}

	l.used++
	return nil
}

func (l *Limiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()
	return l.used
}

// Remaining reports how many requests are left in the window, or -1 when
// the limiter is unlimited.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()

	if l.max == 0 {
		return -1
	}
	if l.used >= l.max {
		return 0
	}
	return l.max - l.used
}

func (l *Limiter) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"requests_used":  l.used,
		"requests_limit": l.max,
		"reset_time":     l.resetAt.Format(time.RFC3339),
	}
}

func (l *Limiter) checkReset() {
	if time.Now().After(l.resetAt) {
		logger.Info("resetting llm request budget", "used", l.used, "max", l.max)
		l.used = 0
		l.resetAt = time.Now().Add(24 * time.Hour)
	}
}
