package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/turn"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

// WHAT: a ChatGPT-shaped document yields interleaved user/assistant turns
// in document order.
// WHY: per-role selectors evaluated separately would group all user turns
// before all assistant turns and destroy the conversation order.
func TestExtract_ChatGPTOrder(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="user"><p>first question</p></div>
		<div data-message-author-role="assistant"><p>first answer</p></div>
		<div data-message-author-role="user"><p>second question</p></div>
		<div data-message-author-role="assistant"><p>second answer</p></div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "https://chatgpt.com/c/abc")
	if len(turns) != 4 {
		t.Fatalf("turns = %d, want 4", len(turns))
	}
	wantRoles := []turn.Role{turn.RoleUser, turn.RoleAssistant, turn.RoleUser, turn.RoleAssistant}
	for i, w := range wantRoles {
		if turns[i].Role != w {
			t.Errorf("turn %d role = %q, want %q", i, turns[i].Role, w)
		}
	}
	if !strings.Contains(turns[2].ContentMarkdown, "second question") {
		t.Errorf("turn 2 content = %q", turns[2].ContentMarkdown)
	}
}

// WHAT: nested matches surface only once, via the outermost element.
// WHY: hosts wrap turns in containers that also match the combined
// selector; both layers rendering would duplicate every turn.
func TestExtract_NestedMatchesNotDuplicated(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="assistant">
			<div data-message-author-role="assistant"><p>inner text</p></div>
		</div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
}

// WHAT: when host selectors match nothing, the structural fallback picks
// up class-named message containers.
func TestExtract_StructuralFallback(t *testing.T) {
	html := `<html><body>
		<div class="user-message"><p>hello there</p></div>
		<div class="bot-message"><p>hi, how can I help?</p></div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Role != turn.RoleUser {
		t.Errorf("turn 0 role = %q, want user", turns[0].Role)
	}
	if turns[1].Role != turn.RoleAssistant {
		t.Errorf("turn 1 role = %q, want assistant", turns[1].Role)
	}
}

// WHAT: plain text with "User:" / "Assistant:" markers splits into turns
// when no selector matches at all.
func TestExtract_RoleMarkerFallback(t *testing.T) {
	html := `<html><body><pre>
User: what is the capital of France?
Assistant: The capital of France is Paris.
</pre></body></html>`
	e := ForSource(turn.SourceGeneric)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Role != turn.RoleUser || !strings.Contains(turns[0].ContentMarkdown, "capital of France") {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != turn.RoleAssistant || !strings.Contains(turns[1].ContentMarkdown, "Paris") {
		t.Errorf("turn 1 = %+v", turns[1])
	}
}

// WHAT: a page with visible prose but no recognizable structure collapses
// into one catch-all assistant turn; a near-empty page yields nothing.
func TestExtract_CatchAllTurn(t *testing.T) {
	e := ForSource(turn.SourceGeneric)

	turns := e.Extract(doc(t, `<html><body><p>This page has prose but no chat structure at all.</p></body></html>`), "")
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Role != turn.RoleAssistant {
		t.Errorf("role = %q, want assistant", turns[0].Role)
	}

	turns = e.Extract(doc(t, `<html><body><p>hi</p></body></html>`), "")
	if len(turns) != 0 {
		t.Fatalf("short page turns = %d, want 0", len(turns))
	}
}

// WHAT: thought containers are pulled out of the reply into the thought
// field and removed from the content.
func TestExtract_ThoughtSeparation(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="assistant">
			<div data-testid="thought-block"><p>let me reason about this</p></div>
			<p>the visible answer</p>
		</div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if !strings.Contains(turns[0].ThoughtMarkdown, "reason about this") {
		t.Errorf("thought = %q", turns[0].ThoughtMarkdown)
	}
	if strings.Contains(turns[0].ContentMarkdown, "reason about this") {
		t.Errorf("content still carries thought: %q", turns[0].ContentMarkdown)
	}
	if !strings.Contains(turns[0].ContentMarkdown, "visible answer") {
		t.Errorf("content = %q", turns[0].ContentMarkdown)
	}
}

// WHAT: Gemini privacy boilerplate and "You said" screen-reader prefixes
// are stripped from extracted turns.
func TestExtract_GeminiBoilerplate(t *testing.T) {
	html := `<html><body>
		<user-query><p>You said</p><p>summarize the doc</p></user-query>
		<model-response><p>Here is the summary.</p>
			<p>Gemini can make mistakes, so double-check it</p>
		</model-response>
	</body></html>`
	e := ForSource(turn.SourceGemini)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if strings.Contains(turns[0].ContentMarkdown, "You said") {
		t.Errorf("prefix survived: %q", turns[0].ContentMarkdown)
	}
	if strings.Contains(turns[1].ContentMarkdown, "double-check") {
		t.Errorf("boilerplate survived: %q", turns[1].ContentMarkdown)
	}
	if !strings.Contains(turns[1].ContentMarkdown, "Here is the summary") {
		t.Errorf("content lost: %q", turns[1].ContentMarkdown)
	}
}

// WHAT: an attachment-only turn keeps the placeholder body instead of
// being dropped as empty.
func TestExtract_AttachmentOnlyTurnPlaceholder(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="user">
			<a href="https://files.oaiusercontent.com/file-AAAABBBBCCCC?sig=x">report.pdf</a>
		</div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	got := turns[0]
	if len(got.Attachments) == 0 {
		t.Fatal("no attachments mined")
	}
	if got.Attachments[0].Kind != turn.KindPDF {
		t.Errorf("kind = %q, want pdf", got.Attachments[0].Kind)
	}
	// The anchor text alone is the file name; that leaves no prose.
	if strings.TrimSpace(got.ContentMarkdown) == "" {
		t.Error("attachment-only turn has empty content, want placeholder")
	}
}

// WHAT: a turn with attachments and no recoverable text at all gets the
// literal placeholder body.
// WHY: image-only messages render no prose, yet dropping the turn would
// lose its attachment.
func TestExtract_PlaceholderLiteralWhenNoText(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="user" data-attachment-id="file-Qr7TuVwXyZ23"></div>
		<div data-message-author-role="assistant"><p>Nice picture.</p></div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	got := turns[0]
	if len(got.Attachments) != 1 || got.Attachments[0].FileID != "file-Qr7TuVwXyZ23" {
		t.Fatalf("attachments = %+v", got.Attachments)
	}
	if got.ContentMarkdown != turn.PlaceholderContent {
		t.Errorf("content = %q, want %q", got.ContentMarkdown, turn.PlaceholderContent)
	}
}

// WHAT: identical consecutive assistant turns collapse into one.
// WHY: virtualized lists render the same message in two containers.
func TestExtract_DuplicateTurnsCollapse(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="assistant"><p>same reply text</p></div>
		<div data-message-author-role="assistant"><p>same reply text</p></div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
}

// WHAT: file IDs buried in attribute soup become placeholder attachments.
func TestExtract_MinedFileIDAttachment(t *testing.T) {
	html := `<html><body>
		<div data-message-author-role="user" data-attachment-id="file-Zx9AbCdEfGh1">
			<p>see the attached sheet</p>
		</div>
	</body></html>`
	e := ForSource(turn.SourceChatGPT)
	turns := e.Extract(doc(t, html), "")
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	var found bool
	for _, a := range turns[0].Attachments {
		if a.FileID == "file-Zx9AbCdEfGh1" && a.IsPlaceholder() {
			found = true
		}
	}
	if !found {
		t.Errorf("mined file ID missing: %+v", turns[0].Attachments)
	}
}

// WHAT: a leading "Thoughts" block rendered inline with the reply moves
// into the thought field during finalize.
func TestSplitResidualThought(t *testing.T) {
	content := "Thoughts: considering the options carefully\nUser: ignored\nfinal answer"
	gotContent, gotThought := splitResidualThought(content, "")
	if !strings.Contains(gotThought, "considering the options") {
		t.Errorf("thought = %q", gotThought)
	}
	if strings.HasPrefix(strings.TrimSpace(gotContent), "Thought") {
		t.Errorf("content = %q still starts with thought block", gotContent)
	}

	// An already-populated thought field is left alone.
	gotContent, gotThought = splitResidualThought(content, "existing")
	if gotThought != "existing" || gotContent != content {
		t.Error("existing thought was overwritten")
	}
}
