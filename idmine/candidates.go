// CLAUDE:SUMMARY Builds bounded sets of plausible backend download URLs for mined file IDs.
package idmine

import (
	"strings"

	"github.com/hazyhaar/convocap/turn"
)

// Fan-out caps. One file ID is crossed with at most this many contextual
// post and conversation IDs; beyond that, extra context adds candidates
// that will never be the right one anyway.
const (
	maxPostFanout = 6
	maxConvFanout = 6
)

// Template placeholders understood by Candidates.
const (
	slotFile = "{file}"
	slotPost = "{post}"
	slotConv = "{conv}"
)

// hostTemplates are the reverse-engineered backend download routes per
// host. Gemini and AI Studio reveal real URLs only through network
// evidence, so they carry no constructible templates.
var hostTemplates = map[turn.Source][]string{
	turn.SourceChatGPT: {
		"https://chatgpt.com/backend-api/files/{file}/download",
		"https://chatgpt.com/backend-api/conversation/{conv}/attachment/{file}/download",
		"https://chatgpt.com/backend-api/estuary/content?id={file}",
		"https://chatgpt.com/backend-api/files/{file}/download?message_id={post}",
	},
	turn.SourceClaude: {
		"https://claude.ai/api/convos/{conv}/attachments/{file}/download",
		"https://claude.ai/api/files/{file}/download",
	},
	turn.SourceGemini:   nil,
	turn.SourceAIStudio: nil,
}

// Candidates builds the deduplicated set of plausible download URLs for a
// mined file ID, parameterized by contextual post and conversation IDs.
// Output order follows template order, then context order; fan-out is
// bounded by the package caps.
func Candidates(source turn.Source, fileID string, postIDs, convIDs []string) []string {
	if fileID == "" {
		return nil
	}
	if len(postIDs) > maxPostFanout {
		postIDs = postIDs[:maxPostFanout]
	}
	if len(convIDs) > maxConvFanout {
		convIDs = convIDs[:maxConvFanout]
	}

	var out []string
	seen := make(map[string]bool)
	emit := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	for _, tmpl := range hostTemplates[source] {
		base := strings.ReplaceAll(tmpl, slotFile, fileID)

		needsPost := strings.Contains(base, slotPost)
		needsConv := strings.Contains(base, slotConv)
		switch {
		case !needsPost && !needsConv:
			emit(base)
		case needsConv && !needsPost:
			for _, conv := range convIDs {
				emit(strings.ReplaceAll(base, slotConv, conv))
			}
		case needsPost && !needsConv:
			for _, post := range postIDs {
				emit(strings.ReplaceAll(base, slotPost, post))
			}
		default:
			for _, conv := range convIDs {
				withConv := strings.ReplaceAll(base, slotConv, conv)
				for _, post := range postIDs {
					emit(strings.ReplaceAll(withConv, slotPost, post))
				}
			}
		}
	}
	return out
}

// MatchesFileID reports whether a URL observed in network traffic refers
// to the given file identifier.
func MatchesFileID(rawURL, fileID string) bool {
	if fileID == "" {
		return false
	}
	return strings.Contains(strings.ToLower(rawURL), strings.ToLower(fileID))
}
