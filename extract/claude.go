// CLAUDE:SUMMARY Claude selector vocabulary: data-testid message containers and thinking blocks.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/turn"
)

func claudeRules() hostRules {
	return hostRules{
		tiers: [][]turnSelector{
			{
				{`[data-testid="user-message"], [data-test-render-count] .font-user-message`, func(*goquery.Selection) turn.Role {
					return turn.RoleUser
				}},
				{`.font-claude-message, [data-is-streaming]`, func(*goquery.Selection) turn.Role {
					return turn.RoleAssistant
				}},
			},
		},
		thoughtSelectors: `[data-testid="thinking-block"], [class*="thinking"]`,
	}
}

// genericRules is the vocabulary-free extractor used for unknown sources;
// it leans entirely on the structural fallback.
func genericRules() hostRules {
	return hostRules{}
}

func stringsContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
