// CLAUDE:SUMMARY Gemini selector vocabulary plus privacy-notice and UI-prefix stripping.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/turn"
)

// geminiBoilerplate are the privacy-notice paragraphs Gemini injects into
// the conversation region. Matched as whole lines, case-sensitively —
// they are fixed product strings, not user content.
var geminiBoilerplate = []string{
	"Gemini can make mistakes, so double-check it",
	"Gemini may display inaccurate info, including about people, so double-check its responses.",
	"Your conversations are processed by human reviewers to improve the technologies powering Gemini Apps.",
	"Google Privacy Policy",
	"Gemini Apps Privacy Hub",
	"Opens in a new window",
}

// geminiSaidPrefixes are the "you said / gemini said" screen-reader
// prefixes rendered ahead of each turn.
var geminiSaidPrefixes = []string{
	"You said",
	"Gemini said",
	"You stopped this response",
}

func geminiRules() hostRules {
	return hostRules{
		tiers: [][]turnSelector{
			{
				{`user-query`, func(*goquery.Selection) turn.Role { return turn.RoleUser }},
				{`model-response`, func(*goquery.Selection) turn.Role { return turn.RoleAssistant }},
			},
			{{`message-content`, roleFromClassHeuristics}},
		},
		thoughtSelectors: `model-thoughts, [class*="thoughts-content"]`,
		postProcess:      stripGeminiBoilerplate,
	}
}

func stripGeminiBoilerplate(t turn.Turn) turn.Turn {
	lines := strings.Split(t.ContentMarkdown, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isGeminiBoilerplate(trimmed) {
			continue
		}
		for _, prefix := range geminiSaidPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
				line = trimmed
				break
			}
		}
		if line == "" && trimmed == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, line)
	}
	t.ContentMarkdown = strings.TrimSpace(strings.Join(out, "\n"))
	return t
}

func isGeminiBoilerplate(line string) bool {
	for _, b := range geminiBoilerplate {
		if line == b || (len(b) > 30 && strings.Contains(line, b)) {
			return true
		}
	}
	return false
}
