// CLAUDE:SUMMARY Rewrites rendered math containers (KaTeX/MathML) to $...$ / $$...$$ text.
package mdnorm

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// mathToken returns the placeholder inserted for slot i. Plain ASCII
// letters and digits so neither the sanitizer nor the Markdown converter
// touches it; the LaTeX is substituted back after conversion, untouched
// by Markdown escaping.
func mathToken(i int) string {
	return fmt.Sprintf("MATHSLOT%dTOLSHTAM", i)
}

// rewriteMath replaces math containers with placeholder text nodes and
// returns the delimited LaTeX per slot. Source recovery chain: the x-tex
// annotation element, then alttext/data-latex attributes, then the
// rendered text as a last resort.
func rewriteMath(input string) (string, []string) {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input, nil
	}

	var slots []string
	var rewrite func(n *html.Node)
	rewrite = func(n *html.Node) {
		c := n.FirstChild
		for c != nil {
			next := c.NextSibling
			if isMathContainer(c) {
				tex := latexSource(c)
				if tex != "" {
					delim := "$"
					if isDisplayMath(c) {
						delim = "$$"
					}
					n.InsertBefore(&html.Node{
						Type: html.TextNode,
						Data: mathToken(len(slots)),
					}, c)
					slots = append(slots, delim+tex+delim)
				}
				n.RemoveChild(c)
			} else {
				rewrite(c)
			}
			c = next
		}
	}
	rewrite(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return input, nil
	}
	return buf.String(), slots
}

// restoreMath substitutes the LaTeX back for each placeholder.
func restoreMath(s string, slots []string) string {
	for i, tex := range slots {
		s = strings.ReplaceAll(s, mathToken(i), tex)
	}
	return s
}

// isMathContainer matches the outermost element of a rendered formula.
func isMathContainer(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Data == "math" || n.Data == "ms-katex" {
		return true
	}
	class := attrValue(n, "class")
	if class == "" {
		return false
	}
	// Outermost KaTeX wrappers only; inner .katex-html spans are handled
	// by removing the whole container.
	for _, c := range strings.Fields(class) {
		if c == "katex" || c == "katex-display" || c == "math-block" || c == "math-inline" {
			return true
		}
	}
	return false
}

func isDisplayMath(n *html.Node) bool {
	if attrValue(n, "display") == "block" {
		return true
	}
	class := attrValue(n, "class")
	if strings.Contains(class, "katex-display") || strings.Contains(class, "math-block") {
		return true
	}
	// A katex-display ancestor renders its inner .katex as display math,
	// but by then the outer container was already rewritten.
	return false
}

// latexSource recovers the LaTeX source for a math container.
func latexSource(n *html.Node) string {
	if tex := findAnnotation(n); tex != "" {
		return strings.TrimSpace(tex)
	}
	for _, attr := range []string{"alttext", "data-latex", "data-expr"} {
		if v := attrValue(n, attr); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(renderedText(n))
}

// findAnnotation locates <annotation encoding="application/x-tex"> text.
func findAnnotation(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "annotation" {
		enc := attrValue(n, "encoding")
		if strings.Contains(enc, "tex") {
			return nodeText(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if tex := findAnnotation(c); tex != "" {
			return tex
		}
	}
	return ""
}

// renderedText collects visible text, skipping the duplicated MathML
// branch KaTeX emits for screen readers.
func renderedText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := attrValue(n, "class")
			if strings.Contains(class, "katex-mathml") || n.Data == "annotation" {
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// stripChromeNodes removes script/style/svg/icon and decorative nodes
// before sanitation, so icon ligature text ("content_copy") never leaks
// into the Markdown.
func stripChromeNodes(input string) string {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input
	}

	var strip func(n *html.Node)
	strip = func(n *html.Node) {
		c := n.FirstChild
		for c != nil {
			next := c.NextSibling
			if isChromeNode(c) {
				n.RemoveChild(c)
			} else {
				strip(c)
			}
			c = next
		}
	}
	strip(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return input
	}
	return buf.String()
}

func isChromeNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Svg, atom.Button:
		return true
	}
	if attrValue(n, "aria-hidden") == "true" {
		return true
	}
	class := attrValue(n, "class")
	for _, marker := range []string{"material-symbols", "material-icons", "mat-icon", "icon-button", "tooltip", "sr-only", "visually-hidden"} {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return n.Data == "mat-icon" || n.Data == "ms-icon"
}

// textContent is the plain-text fallback when conversion fails.
func textContent(input string) string {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
