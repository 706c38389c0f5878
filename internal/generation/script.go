package generation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// wordsPerMinute is the assumed TTS reading speed.
const wordsPerMinute = 160

// Script is the generated narration for one run.
type Script struct {
	RunDate          string
	TargetMinutes    int
	Content          string
	EstimatedWords   int
	EstimatedMinutes float64
	GeneratedAt      time.Time
}

// ScriptBuilder turns show notes into a narration script.
type ScriptBuilder struct {
	provider Provider
}

func NewScriptBuilder(provider Provider) *ScriptBuilder {
	return &ScriptBuilder{provider: provider}
}

// Build prompts the provider with a compact rendering of the show notes and
// wraps the result with reading-time estimates.
func (b *ScriptBuilder) Build(ctx context.Context, notes *ShowNotes, targetMinutes int, runDate string) (*Script, Stats, error) {
	if runDate == "" {
		runDate = notes.RunDate
	}

	content, err := b.provider.GenerateScript(ctx, formatNotesForPrompt(notes), targetMinutes, runDate)
	if err != nil {
		return nil, Stats{}, err
	}

	words := countWords(content)
	script := &Script{
		RunDate:          runDate,
		TargetMinutes:    targetMinutes,
		Content:          content,
		EstimatedWords:   words,
		EstimatedMinutes: float64(words) / wordsPerMinute,
		GeneratedAt:      time.Now().UTC(),
	}

	usage := b.provider.Usage()
	stats := Stats{
		ArticlesProcessed: notes.TotalCount,
		TokensUsed:        usage.TotalTokens,
		APICalls:          usage.APICalls,
		CostEstimate:      usage.EstimatedCost,
	}

	return script, stats, nil
}

// formatNotesForPrompt renders show notes compactly for the script prompt,
// without the TOC and link noise of the published document.
func formatNotesForPrompt(notes *ShowNotes) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("Date: %s", notes.RunDate))
	lines = append(lines, fmt.Sprintf("Total Articles: %d", notes.TotalCount), "")

	for _, s := range notes.Sections {
		lines = append(lines, fmt.Sprintf("## %s", s.Title), "")
		for _, a := range s.Articles {
			lines = append(lines, fmt.Sprintf("**%s** (%s, %s)", a.Title, a.Outlet, a.PublishedDate))
			for _, bullet := range a.Bullets {
				lines = append(lines, "- "+bullet)
			}
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n")
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

// Render produces the script.txt artifact: a metadata header followed by the
// narration content.
func (s *Script) Render() string {
	lines := []string{
		fmt.Sprintf("# AI News Briefing Script - %s", s.RunDate),
		"",
		fmt.Sprintf("Target: %d minutes", s.TargetMinutes),
		fmt.Sprintf("Estimated: %.1f minutes (%d words)", s.EstimatedMinutes, s.EstimatedWords),
		fmt.Sprintf("Generated: %s UTC", s.GeneratedAt.Format(notesTimeLayout)),
		"",
		"---",
		"",
		s.Content,
	}
	return strings.Join(lines, "\n")
}

var (
	ttsHeaderLines   = regexp.MustCompile(`(?m)^#.*$`)
	ttsEmphasisLines = regexp.MustCompile(`(?m)^\*.*\*$`)
	ttsBulletMarkers = regexp.MustCompile(`(?m)^[-*•]\s+`)
	ttsLinks         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	ttsEmphasisMarks = regexp.MustCompile(`[*_]{1,2}`)
	ttsSpaceRuns     = regexp.MustCompile(`[ \t]+`)
	ttsBlankRuns     = regexp.MustCompile(`\n{3,}`)
	ttsSentenceEnds  = regexp.MustCompile(`\.(\s+)([A-Z])`)
)

// ttsPausePhrases get a paragraph break after them so the narration breathes.
var ttsPausePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Welcome to[^.]*\.)`),
	regexp.MustCompile(`(?i)(Today[^.]*\.)`),
	regexp.MustCompile(`(?i)(Let's dive in\.)`),
	regexp.MustCompile(`(?i)(Moving on[^.]*\.)`),
	regexp.MustCompile(`(?i)(Next[^.]*\.)`),
	regexp.MustCompile(`(?i)(Finally[^.]*\.)`),
	regexp.MustCompile(`(?i)(In conclusion[^.]*\.)`),
	regexp.MustCompile(`(?i)(That wraps up[^.]*\.)`),
}

// TTSText strips markdown leftovers and inserts paragraph breaks so the text
// reads naturally through a TTS engine.
func (s *Script) TTSText() string {
	text := ttsHeaderLines.ReplaceAllString(s.Content, "")
	text = ttsEmphasisLines.ReplaceAllString(text, "")
	text = ttsBulletMarkers.ReplaceAllString(text, "")
	text = ttsLinks.ReplaceAllString(text, "$1")
	text = ttsEmphasisMarks.ReplaceAllString(text, "")

	text = ttsBlankRuns.ReplaceAllString(text, "\n\n")
	text = ttsSpaceRuns.ReplaceAllString(text, " ")

	text = ttsSentenceEnds.ReplaceAllString(text, ".\n\n$2")
	for _, phrase := range ttsPausePhrases {
		text = phrase.ReplaceAllString(text, "$1\n\n")
	}
	text = ttsBlankRuns.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// TTSFilename stamps the TTS artifact with day-hour-minute of generation.
func TTSFilename(now time.Time) string {
	return fmt.Sprintf("script_tts_%s.txt", now.Format("02-15-04"))
}
