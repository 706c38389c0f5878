package generation

import (
	"regexp"
	"strings"
)

// bulletMarker matches leading list markers: "-", "*", "•", "1.", "2)".
var bulletMarker = regexp.MustCompile(`^([-*•]|\d+[.)])\s*`)

var preamblePrefixes = []string{
	"here are",
	"here's",
	"sure",
	"bullet points",
	"summary:",
}

func isPreambleLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "```") {
		return true
	}
	for _, prefix := range preamblePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// parseBullets extracts bullet points from a model response. Lines carrying a
// list marker become bullets; when the model ignored the requested format the
// whole response is split into sentences instead. The result is capped at
// maxBullets when positive.
func parseBullets(text string, maxBullets int) []string {
	var bullets []string

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		stripped := bulletMarker.ReplaceAllString(line, "")
		if stripped == line {
			continue
		}
		if stripped = strings.TrimSpace(stripped); stripped != "" {
			bullets = append(bullets, stripped)
		}
	}

	if len(bullets) == 0 {
		bullets = sentenceBullets(text)
	}

	if maxBullets > 0 && len(bullets) > maxBullets {
		bullets = bullets[:maxBullets]
	}

	return bullets
}

// sentenceBullets is the fallback for unformatted responses: drop preamble
// lines and fences, then treat each sentence as a bullet.
func sentenceBullets(text string) []string {
	var kept []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isPreambleLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	joined := strings.Join(kept, " ")
	if joined == "" {
		return nil
	}

	var bullets []string
	for _, part := range strings.Split(joined, ". ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasSuffix(part, ".") {
			part += "."
		}
		bullets = append(bullets, part)
	}

	return bullets
}
