// CLAUDE:SUMMARY AI Studio selector vocabulary: ms-chat-turn elements with role containers.
package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/turn"
)

// aistudioRules: AI Studio renders Angular components; each ms-chat-turn
// holds a role marker in its container class. Thought chunks are separate
// ms-thought-chunk elements inside the turn.
func aistudioRules() hostRules {
	return hostRules{
		tiers: [][]turnSelector{
			{{`ms-chat-turn`, func(sel *goquery.Selection) turn.Role {
				probe := sel.AttrOr("class", "")
				if sel.Find(`[data-turn-role="User"], .user-prompt-container`).Length() > 0 ||
					containsAny(probe, "user") {
					return turn.RoleUser
				}
				return turn.RoleAssistant
			}}},
			{{`ms-prompt-chunk, ms-text-chunk`, roleFromClassHeuristics}},
		},
		thoughtSelectors: `ms-thought-chunk, [class*="thought-container"]`,
		modelSelector:    `[class*="model-name"]`,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if sub != "" && len(s) >= len(sub) && stringsContainsFold(s, sub) {
			return true
		}
	}
	return false
}
