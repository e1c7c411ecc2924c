// CLAUDE:SUMMARY ChatGPT selector vocabulary: data-message-author-role turns, thought containers.
package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/turn"
)

// chatgptRules: turns carry data-message-author-role; file tiles render
// into anchors on files.oaiusercontent.com or opaque "file-…" pointers in
// attribute soup. Reasoning traces sit in collapsible thought containers.
func chatgptRules() hostRules {
	return hostRules{
		tiers: [][]turnSelector{
			{{`[data-message-author-role]`, func(sel *goquery.Selection) turn.Role {
				switch sel.AttrOr("data-message-author-role", "") {
				case "user":
					return turn.RoleUser
				case "system":
					return turn.RoleSystem
				case "tool":
					return turn.RoleTool
				default:
					return turn.RoleAssistant
				}
			}}},
			{{`[data-testid^="conversation-turn"]`, roleFromClassHeuristics}},
		},
		thoughtSelectors: `[data-testid*="thought"], [class*="reasoning"], [class*="thinking"]`,
		modelSelector:    `[data-message-model-slug]`,
	}
}
