// CLAUDE:SUMMARY Idempotent post-pass: whitespace collapse, $$ repair, matrix rows, chrome noise lines.
package mdnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// noiseLines are UI-chrome tokens that hosts render as standalone lines:
// icon ligatures and copy-button labels. Dropped only when a line is
// exactly one of these, never when embedded in content.
var noiseLines = map[string]bool{
	"content_copy":          true,
	"content_paste":         true,
	"expand_more":           true,
	"expand_less":           true,
	"thumb_up":              true,
	"thumb_down":            true,
	"more_vert":             true,
	"volume_up":             true,
	"edit":                  true,
	"share":                 true,
	"refresh":               true,
	"check":                 true,
	"close":                 true,
	"copy":                  true,
	"Copy":                  true,
	"Copy code":             true,
	"Copy to clipboard":     true,
	"Use code with caution": true,
	"Regenerate":            true,
	"Good response":         true,
	"Bad response":          true,
}

var (
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
	displayMath    = regexp.MustCompile(`\$\$`)
)

// postNormalize is the idempotent cleanup applied to every normalized
// string, whether it came through HTML conversion or arrived as text.
func postNormalize(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = dropNoiseLines(s)
	s = trailingSpaces.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = repairMathBlocks(s)
	s = repairMatrixRows(s)
	return strings.TrimSpace(s)
}

func dropNoiseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if noiseLines[strings.TrimSpace(line)] {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// repairMathBlocks appends a closing $$ when a text ends mid display-math
// block. Odd delimiter counts happen when a host truncates a rendered
// formula at a fold boundary.
func repairMathBlocks(s string) string {
	if len(displayMath.FindAllString(s, -1))%2 == 1 {
		s = strings.TrimRight(s, "\n") + "\n$$"
	}
	return s
}

var matrixEnv = regexp.MustCompile(`(?s)\\begin\{([a-zA-Z]*matrix|cases|aligned|align\*?)\}(.*?)\\end\{([a-zA-Z]*matrix|cases|aligned|align\*?)\}`)

// repairMatrixRows restores the row separators inside matrix-like LaTeX
// environments. Rendered math loses "\\" at line breaks; rows then arrive
// as bare newlines and the formula no longer compiles.
func repairMatrixRows(s string) string {
	return matrixEnv.ReplaceAllStringFunc(s, func(env string) string {
		open := strings.Index(env, "}")
		closeIdx := strings.LastIndex(env, `\end{`)
		if open < 0 || closeIdx <= open {
			return env
		}
		head, body, tail := env[:open+1], env[open+1:closeIdx], env[closeIdx:]

		lines := strings.Split(body, "\n")
		if len(lines) < 2 {
			return env
		}
		lastContent := -1
		for i, line := range lines {
			if strings.TrimSpace(line) != "" {
				lastContent = i
			}
		}
		for i, line := range lines {
			trimmed := strings.TrimRight(line, " \t")
			if i >= lastContent || strings.TrimSpace(trimmed) == "" {
				lines[i] = trimmed
				continue
			}
			if !strings.HasSuffix(trimmed, `\\`) {
				trimmed += ` \\`
			}
			lines[i] = trimmed
		}
		return head + strings.Join(lines, "\n") + tail
	})
}
