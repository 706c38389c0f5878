// Package pipeline drives a briefing run through its seven stages, from
// source sync to narration script, recording per-stage outcomes along the way.
package pipeline

import "time"

// Stage tracks one pipeline step. A stage that never ran keeps its zero start
// time; a failed stage keeps its stats nil.
type Stage struct {
	Name        string
	Description string
	StartedAt   time.Time
	FinishedAt  time.Time
	Success     bool
	Error       string
	Stats       map[string]interface{}
}

func newStage(name, description string) *Stage {
	return &Stage{Name: name, Description: description}
}

// Start marks the stage as running.
func (s *Stage) Start() {
	s.StartedAt = time.Now()
}

// Complete marks the stage as finished successfully with its stats.
func (s *Stage) Complete(stats map[string]interface{}) {
	s.FinishedAt = time.Now()
	s.Success = true
	s.Stats = stats
}

// Fail marks the stage as failed.
func (s *Stage) Fail(err error) {
	s.FinishedAt = time.Now()
	s.Success = false
	s.Error = err.Error()
}

// Started reports whether the stage ever ran.
func (s *Stage) Started() bool {
	return !s.StartedAt.IsZero()
}

// Duration is the stage's wall time, zero until it has finished.
func (s *Stage) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
