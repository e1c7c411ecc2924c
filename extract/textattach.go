// CLAUDE:SUMMARY Mines attachment candidates out of normalized Markdown via the goldmark AST.
package extract

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hazyhaar/convocap/attach"
	"github.com/hazyhaar/convocap/turn"
)

var bareFileURL = regexp.MustCompile(`https?://[^\s<>()\[\]]+`)

var textMD = goldmark.New()

// mineTextAttachments finds attachment candidates referenced in the turn
// text itself: Markdown images and links plus bare URLs. Parsed with the
// Markdown AST rather than regexes so link syntax inside code spans is
// left alone.
func mineTextAttachments(markdown string) []turn.Attachment {
	if markdown == "" {
		return nil
	}
	var out []turn.Attachment

	source := []byte(markdown)
	root := textMD.Parser().Parse(text.NewReader(source))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			dest := string(node.Destination)
			kind, mime := attach.Classify(dest, string(node.Title), "")
			if kind == turn.KindFile && !attach.LooksLikeFileURL(dest) {
				kind = turn.KindImage // image syntax is its own signal
			}
			out = append(out, remoteAttachment(kind, dest, string(node.Title), mime))
		case *ast.Link:
			dest := string(node.Destination)
			if !attach.LooksLikeFileURL(dest) {
				return ast.WalkContinue, nil
			}
			label := strings.TrimSpace(string(node.Text(source)))
			kind, mime := attach.Classify(dest, label, "")
			out = append(out, remoteAttachment(kind, dest, label, mime))
		case *ast.AutoLink:
			dest := string(node.URL(source))
			if attach.LooksLikeFileURL(dest) {
				kind, mime := attach.Classify(dest, "", "")
				out = append(out, remoteAttachment(kind, dest, "", mime))
			}
		}
		return ast.WalkContinue, nil
	})

	// Bare URLs the Markdown parser left as plain text.
	for _, u := range bareFileURL.FindAllString(markdown, -1) {
		u = strings.TrimRight(u, ".,;:!?")
		if attach.LooksLikeFileURL(u) {
			kind, mime := attach.Classify(u, "", "")
			out = append(out, remoteAttachment(kind, u, "", mime))
		}
	}
	return out
}
