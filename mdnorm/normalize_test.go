package mdnorm

import (
	"strings"
	"testing"
)

func TestNormalize_Idempotent(t *testing.T) {
	// WHAT: Normalize(Normalize(x)) == Normalize(x) for sampled inputs.
	// WHY: Already-normalized turns pass through the pipeline again on
	// re-capture; a second pass must not change them.
	n := New()
	inputs := []string{
		"plain text",
		"# Heading\n\nsome *markdown* with a [link](https://x.y)",
		"<p>Hello <b>world</b></p>",
		"line one\n\n\n\n\nline two",
		"$$\\frac{1}{2}$$ and $x$",
		"<table><tr><th>a</th><th>b</th></tr><tr><td>1</td><td>2</td></tr></table>",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestNormalize_LatexRepair(t *testing.T) {
	// WHAT: An unbalanced $$ block gains a closing $$.
	// WHY: Hosts truncate rendered formulas at fold boundaries.
	n := New()
	got := n.Normalize("$$\\frac{1}{2}")
	if strings.Count(got, "$$")%2 != 0 {
		t.Errorf("unbalanced after repair: %q", got)
	}
	if !strings.HasSuffix(got, "$$") {
		t.Errorf("missing trailing delimiter: %q", got)
	}
}

func TestNormalize_KatexAnnotation(t *testing.T) {
	// WHAT: A KaTeX container collapses to its x-tex annotation source.
	// WHY: The annotation carries the original LaTeX; rendered glyph soup
	// does not.
	n := New()
	in := `<p>Consider <span class="katex"><span class="katex-mathml"><math><semantics><mrow><mi>x</mi></mrow><annotation encoding="application/x-tex">\frac{a}{b}</annotation></semantics></math></span><span class="katex-html" aria-hidden="true">a/b</span></span> here.</p>`
	got := n.Normalize(in)
	if !strings.Contains(got, `$\frac{a}{b}$`) {
		t.Errorf("annotation not recovered: %q", got)
	}
	if strings.Contains(got, "a/b") {
		t.Errorf("rendered fallback leaked alongside annotation: %q", got)
	}
}

func TestNormalize_DisplayMath(t *testing.T) {
	// WHAT: katex-display containers become $$ blocks.
	// WHY: Block vs inline math must survive the round trip.
	n := New()
	in := `<div class="katex-display"><annotation encoding="application/x-tex">E = mc^2</annotation></div>`
	got := n.Normalize(in)
	if !strings.Contains(got, "$$E = mc^2$$") {
		t.Errorf("display math lost: %q", got)
	}
}

func TestNormalize_TablePipes(t *testing.T) {
	// WHAT: HTML tables convert to pipe syntax.
	// WHY: Table plugin wiring.
	n := New()
	in := "<table><thead><tr><th>h1</th><th>h2</th></tr></thead><tbody><tr><td>a</td><td>b</td></tr></tbody></table>"
	got := n.Normalize(in)
	if !strings.Contains(got, "|") || !strings.Contains(got, "h1") {
		t.Errorf("table not converted: %q", got)
	}
}

func TestNormalize_StripsChrome(t *testing.T) {
	// WHAT: Icon ligatures, buttons, and aria-hidden nodes disappear.
	// WHY: UI chrome is not conversation content.
	n := New()
	in := `<div><p>Real content</p><button>Copy code</button><span class="material-symbols-outlined">content_copy</span><span aria-hidden="true">decoration</span></div>`
	got := n.Normalize(in)
	if !strings.Contains(got, "Real content") {
		t.Fatalf("content lost: %q", got)
	}
	for _, noise := range []string{"Copy code", "content_copy", "decoration"} {
		if strings.Contains(got, noise) {
			t.Errorf("chrome leaked: %q in %q", noise, got)
		}
	}
}

func TestNormalize_NoiseLines(t *testing.T) {
	// WHAT: Standalone icon-label lines are dropped; embedded ones stay.
	// WHY: Dropping must never alter meaningful content lines.
	n := New()
	got := n.Normalize("keep this\ncontent_copy\nUse code with caution\nedit the file carefully")
	if strings.Contains(got, "content_copy") || strings.Contains(got, "Use code with caution") {
		t.Errorf("noise line kept: %q", got)
	}
	if !strings.Contains(got, "edit the file carefully") {
		t.Errorf("content line with embedded token dropped: %q", got)
	}
}

func TestNormalize_BlankLineCollapse(t *testing.T) {
	// WHAT: Runs of blank lines collapse to at most one.
	// WHY: Whitespace canon.
	n := New()
	got := n.Normalize("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("got %q", got)
	}
}

func TestNormalize_MatrixRows(t *testing.T) {
	// WHAT: Rows inside a matrix environment regain their \\ separators.
	// WHY: Rendered math loses row breaks at line boundaries.
	n := New()
	in := "$$\\begin{pmatrix}1 & 2\n3 & 4\n\\end{pmatrix}$$"
	got := n.Normalize(in)
	if !strings.Contains(got, `1 & 2 \\`) {
		t.Errorf("row separator not restored: %q", got)
	}
	if strings.Contains(got, `4 \\`) {
		t.Errorf("last row must not gain a separator: %q", got)
	}
}

func TestNormalize_EmptyAndGarbage(t *testing.T) {
	// WHAT: Empty, whitespace, and malformed inputs never panic and yield "".
	// WHY: Total-function requirement.
	n := New()
	for _, in := range []string{"", "   \n\t  ", "<div><p>"} {
		_ = n.Normalize(in)
	}
	if n.Normalize("  \n ") != "" {
		t.Error("whitespace should normalize to empty")
	}
}

func TestNormalize_Links(t *testing.T) {
	// WHAT: Relative links resolve against the page URL.
	// WHY: Payloads must be self-contained outside the host page.
	n := New(WithBaseURL("https://chatgpt.com/c/abc"))
	got := n.Normalize(`<p><a href="/share/xyz">shared</a></p>`)
	if !strings.Contains(got, "https://chatgpt.com/share/xyz") {
		t.Errorf("link not absolutized: %q", got)
	}
}
