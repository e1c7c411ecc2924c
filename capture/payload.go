// CLAUDE:SUMMARY Payload assembly: title derivation and page-URL canonicalization.
package capture

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/convocap/turn"
)

// maxTitleRunes bounds a derived title.
const maxTitleRunes = 80

// Assemble packages extracted turns into the final payload. Fails only
// when there are no turns at all.
func Assemble(src turn.Source, pageURL, docTitle string, turns []turn.Turn) (*turn.Payload, error) {
	if len(turns) == 0 {
		return nil, ErrNoContent
	}
	return &turn.Payload{
		Source:     src,
		PageURL:    CanonicalURL(src, pageURL),
		Title:      Title(src, docTitle, turns),
		Turns:      turns,
		CapturedAt: time.Now().UTC(),
		Version:    turn.SchemaVersion,
	}, nil
}

// Title derives the conversation title: the first user turn's first
// line, else the document title, else a per-source default.
func Title(src turn.Source, docTitle string, turns []turn.Turn) string {
	for _, t := range turns {
		if t.Role != turn.RoleUser {
			continue
		}
		line := firstLine(t.ContentMarkdown)
		if line != "" && line != turn.PlaceholderContent {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	if dt := strings.TrimSpace(docTitle); dt != "" {
		return truncateRunes(dt, maxTitleRunes)
	}
	return string(src) + " conversation"
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#>*- "))
		if line != "" {
			return line
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}

// trackedQueryParams are host query parameters that vary per view, not
// per conversation, and are stripped for known hosts.
var trackedQueryParams = map[turn.Source][]string{
	turn.SourceChatGPT:  {"model", "temporary-chat", "ref"},
	turn.SourceGemini:   {"hl", "utm_source", "utm_medium", "utm_campaign"},
	turn.SourceAIStudio: {"hl", "pli"},
	turn.SourceClaude:   {"ref"},
}

// CanonicalURL strips the fragment always, and host-specific volatile
// query parameters for known hosts. Unparseable input is returned as
// given minus any fragment.
func CanonicalURL(src turn.Source, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '#'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.Fragment = ""

	if params, ok := trackedQueryParams[src]; ok && u.RawQuery != "" {
		q := u.Query()
		for _, p := range params {
			q.Del(p)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// PageConversationID extracts the page's own conversation identifier
// from its URL, used to keep it out of mined file-ID results. Empty when
// the URL carries none.
func PageConversationID(src turn.Source, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segs {
		switch seg {
		case "c", "chat", "app", "prompts":
			if i+1 < len(segs) {
				return segs[i+1]
			}
		}
	}
	return ""
}
