// CLAUDE:SUMMARY Shared extraction machinery: element-to-turn conversion, role markers, attachments.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/attach"
	"github.com/hazyhaar/convocap/idmine"
	"github.com/hazyhaar/convocap/turn"
)

// turnSelector pairs a CSS selector with the way the matched element's
// role is decided.
type turnSelector struct {
	selector string
	role     func(*goquery.Selection) turn.Role
}

// hostRules is the per-host extraction vocabulary. Only the selector and
// attribute vocabulary differs between hosts; the algorithm is shared.
// tiers are tried in order; the first tier that yields turns wins. The
// selectors within one tier are evaluated as a single combined query so
// user and assistant turns come out in document order.
type hostRules struct {
	tiers            [][]turnSelector
	thoughtSelectors string
	modelSelector    string
	postProcess      func(turn.Turn) turn.Turn
}

// broadTier is the structural fallback when host selectors match
// nothing — hosts rename their attribute vocabulary without notice.
var broadTier = []turnSelector{
	{`[class*="message"], [class*="chat-turn"], [class*="conversation-turn"], article`, roleFromClassHeuristics},
}

func roleFromClassHeuristics(sel *goquery.Selection) turn.Role {
	probe := strings.ToLower(sel.AttrOr("class", "") + " " + sel.AttrOr("data-role", "") + " " + sel.AttrOr("data-author", ""))
	switch {
	case strings.Contains(probe, "user"), strings.Contains(probe, "human"):
		return turn.RoleUser
	case strings.Contains(probe, "system"):
		return turn.RoleSystem
	case strings.Contains(probe, "tool"):
		return turn.RoleTool
	default:
		return turn.RoleAssistant
	}
}

// turnFromElement converts one matched element. The element is cloned;
// thought sub-elements are pulled out and removed first, then the rest is
// normalized to Markdown, then attachments are mined structurally and
// textually.
func (e *Extractor) turnFromElement(sel *goquery.Selection, ts turnSelector) (turn.Turn, bool) {
	clone := sel.Clone()

	var thought string
	if e.host.thoughtSelectors != "" {
		thoughtSel := clone.Find(e.host.thoughtSelectors)
		if thoughtSel.Length() > 0 {
			thought = e.norm.Normalize(selectionHTML(thoughtSel))
			thoughtSel.Remove()
		}
	}

	t := turn.Turn{
		Role:            ts.role(sel),
		ThoughtMarkdown: thought,
	}
	if e.host.modelSelector != "" {
		t.Model = strings.TrimSpace(clone.Find(e.host.modelSelector).First().Text())
	}

	structural := mineStructuralAttachments(clone)
	t.ContentMarkdown = e.norm.Normalize(selectionHTML(clone))

	for _, a := range structural {
		t.AddAttachment(a)
	}
	for _, a := range mineTextAttachments(t.ContentMarkdown) {
		t.AddAttachment(a)
	}

	if t.Empty() {
		return turn.Turn{}, false
	}
	return t, true
}

func selectionHTML(sel *goquery.Selection) string {
	var sb strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			sb.WriteString(h)
		}
	})
	return sb.String()
}

// fileLabelAttrs are element attributes that name a file when markup
// carries no href at all.
var fileLabelAttrs = []string{"aria-label", "title", "data-file-name", "download"}

var fileNamePattern = regexp.MustCompile(`\b[\w][\w .()\[\]-]{0,80}\.(pdf|png|jpe?g|gif|webp|svg|csv|txt|md|json|docx?|xlsx?|pptx?|zip|py|go|js|ts|html|css|log|ya?ml|tsv)\b`)

// mineStructuralAttachments pulls candidates out of markup: anchors,
// images, and elements whose attributes or labels name a file. Framework
// internal props are handled separately at page level, at lower priority.
func mineStructuralAttachments(sel *goquery.Selection) []turn.Attachment {
	var out []turn.Attachment

	sel.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src == "" || strings.HasPrefix(src, "data:image/svg") {
			return
		}
		// Tiny inline icons are chrome, not content.
		if strings.HasPrefix(src, "data:") && len(src) < 256 {
			return
		}
		kind, mime := attach.Classify(src, img.AttrOr("alt", ""), "")
		if kind != turn.KindImage && !attach.LooksLikeFileURL(src) {
			return
		}
		out = append(out, remoteAttachment(kind, src, img.AttrOr("alt", ""), mime))
	})

	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		label := strings.TrimSpace(a.Text())
		if !attach.LooksLikeFileURL(href) {
			return
		}
		kind, mime := attach.Classify(href, label, "")
		out = append(out, remoteAttachment(kind, href, label, mime))
	})

	// File tiles: no link, just a labelled element.
	for _, attr := range fileLabelAttrs {
		sel.Find("[" + attr + "]").Each(func(_ int, el *goquery.Selection) {
			label := el.AttrOr(attr, "")
			name := fileNamePattern.FindString(label)
			if name == "" {
				return
			}
			kind, mime := attach.Classify("", name, "")
			out = append(out, remoteAttachment(kind, turn.PlaceholderScheme+name, name, mime))
		})
	}

	// Mined backend identifiers hiding in attribute soup.
	m := idmine.New("")
	sel.Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			for _, a := range node.Attr {
				m.Scan(a.Val, a.Key)
			}
		}
		s.Find("*").Each(func(_ int, el *goquery.Selection) {
			for _, node := range el.Nodes {
				for _, a := range node.Attr {
					m.Scan(a.Val, a.Key)
				}
			}
		})
	})
	for _, id := range m.FileIDs() {
		out = append(out, turn.Attachment{
			Kind:        turn.KindFile,
			OriginalURL: turn.PlaceholderScheme + id,
			FileID:      id,
			Status:      turn.StatusRemote,
		})
	}

	return out
}

func remoteAttachment(kind turn.Kind, url, name, mime string) turn.Attachment {
	a := turn.Attachment{
		Kind:        kind,
		OriginalURL: url,
		Name:        name,
		Mime:        mime,
		Status:      turn.StatusRemote,
	}
	if a.IsInline() {
		a.Status = turn.StatusCached
	}
	return a
}

// roleMarker matches transcript lines like "User:" or "Assistant: text".
var roleMarker = regexp.MustCompile(`(?m)^\s*(User|You|Human|Assistant|ChatGPT|Gemini|Claude|Model|AI|System)\s*[:：]\s*`)

// parseRoleMarkers is the plain-text fallback: split visible text at
// role-marker lines.
func parseRoleMarkers(text string) []turn.Turn {
	locs := roleMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	var out []turn.Turn
	for i, loc := range locs {
		marker := text[loc[2]:loc[3]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		if content == "" {
			continue
		}
		out = append(out, turn.Turn{
			Role:            roleForMarker(marker),
			ContentMarkdown: content,
		})
	}
	return out
}

func roleForMarker(marker string) turn.Role {
	switch strings.ToLower(marker) {
	case "user", "you", "human":
		return turn.RoleUser
	case "system":
		return turn.RoleSystem
	default:
		return turn.RoleAssistant
	}
}

// visibleText approximates the page's rendered text.
func visibleText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript, svg").Remove()
	return clone.Text()
}

// residualThought matches "Thoughts ... User:"-shaped text that survives
// when a host renders the reasoning trace inline with the reply.
var residualThought = regexp.MustCompile(`(?s)^\s*Thoughts?\b[:\s]*(.*?)(?:\n\s*(?:User|You)\s*[:：]|\z)`)

// splitResidualThought moves a leading "Thoughts…" block into the thought
// field when one is textually present and no thought was extracted
// structurally.
func splitResidualThought(content, thought string) (string, string) {
	if thought != "" || !strings.HasPrefix(strings.TrimSpace(content), "Thought") {
		return content, thought
	}
	m := residualThought.FindStringSubmatchIndex(content)
	if m == nil {
		return content, thought
	}
	extracted := strings.TrimSpace(content[m[2]:m[3]])
	rest := strings.TrimSpace(content[m[3]:])
	if extracted == "" {
		return content, thought
	}
	return rest, extracted
}
