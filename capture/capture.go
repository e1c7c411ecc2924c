// CLAUDE:SUMMARY Capture orchestrator: warmup → extract → materialize → payload, with progress.
// Package capture sequences one end-to-end capture run against a live
// chat page: warmup forces lazy content to render, the extractor derives
// turns, the materializer resolves attachments, and the assembler
// packages the payload. Progress events stream to the caller throughout.
package capture

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/browser"
	"github.com/hazyhaar/convocap/extract"
	"github.com/hazyhaar/convocap/idmine"
	"github.com/hazyhaar/convocap/materialize"
	"github.com/hazyhaar/convocap/mdnorm"
	"github.com/hazyhaar/convocap/nettrack"
	"github.com/hazyhaar/convocap/policy"
	"github.com/hazyhaar/convocap/turn"
)

// Runner drives one capture run.
type Runner struct {
	source   turn.Source
	tab      *browser.Tab
	tracker  *nettrack.Tracker
	fetch    materialize.FetchCapability
	pol      *policy.Policy
	logger   *slog.Logger
	onEvent  func(Event)
	tolerant bool

	// Warning holds the human-readable failure summary after a tolerant
	// run with residual failed attachments.
	Warning string
}

// Option configures a Runner.
type Option func(*Runner)

// WithTab binds the live page; without one, only the document-level
// entry points work.
func WithTab(t *browser.Tab) Option {
	return func(r *Runner) { r.tab = t }
}

// WithTracker supplies the page's network-activity buffer.
func WithTracker(t *nettrack.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithFetcher sets the download capability for attachments.
func WithFetcher(f materialize.FetchCapability) Option {
	return func(r *Runner) { r.fetch = f }
}

// WithPolicy sets the required-vs-link-only attachment policy.
func WithPolicy(p *policy.Policy) Option {
	return func(r *Runner) { r.pol = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithEvents sets the progress event sink.
func WithEvents(f func(Event)) Option {
	return func(r *Runner) { r.onEvent = f }
}

// Tolerant switches attachment failures from fatal to best-effort; the
// run completes and Warning summarizes what failed.
func Tolerant() Option {
	return func(r *Runner) { r.tolerant = true }
}

// NewRunner builds a Runner for one source.
func NewRunner(src turn.Source, opts ...Option) *Runner {
	r := &Runner{
		source: src,
		pol:    policy.Default(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes a full capture against the bound tab.
func (r *Runner) Run(ctx context.Context) (*turn.Payload, error) {
	r.emit(Event{Phase: PhaseContent, Percent: 0, Status: "warming up page"})
	r.warmup(ctx)

	html, err := r.tab.HTML(ctx)
	if err != nil {
		r.emit(Event{Phase: PhaseError, Status: err.Error()})
		return nil, err
	}
	pageURL, err := r.tab.URL(ctx)
	if err != nil {
		pageURL = r.tab.PageURL
	}
	docTitle, _ := r.tab.Title(ctx)

	stateStrings := r.tab.StateStrings(ctx)
	return r.capture(ctx, html, pageURL, docTitle, stateStrings)
}

// CaptureDocument runs the pipeline over an already-obtained document
// snapshot; no live tab is needed. The materializer still runs, using
// whatever tracker evidence exists.
func (r *Runner) CaptureDocument(ctx context.Context, html, pageURL, docTitle string) (*turn.Payload, error) {
	return r.capture(ctx, html, pageURL, docTitle, nil)
}

func (r *Runner) capture(ctx context.Context, html, pageURL, docTitle string, stateStrings []string) (*turn.Payload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.emit(Event{Phase: PhaseError, Status: err.Error()})
		return nil, err
	}

	r.emit(Event{Phase: PhaseContent, Percent: 30, Status: "extracting turns"})
	norm := mdnorm.New(mdnorm.WithBaseURL(pageURL))
	ex := extract.ForSource(r.source, extract.WithLogger(r.logger), extract.WithNormalizer(norm))
	turns := ex.Extract(doc, pageURL)
	if len(turns) == 0 {
		r.emit(Event{Phase: PhaseError, Status: ErrNoContent.Error()})
		return nil, ErrNoContent
	}
	r.emit(Event{Phase: PhaseContent, Percent: 100, Status: "turns extracted"})

	postIDs, convIDs := r.mineContext(pageURL, stateStrings, turns)
	if err := r.materialize(ctx, turns, postIDs, convIDs); err != nil {
		r.emit(Event{Phase: PhaseError, Status: err.Error()})
		return nil, err
	}
	r.Warning = FailureWarning(turns)
	if r.Warning != "" {
		r.logger.Warn("capture: completed with attachment failures", "warning", r.Warning)
	}

	payload, err := Assemble(r.source, pageURL, docTitle, turns)
	if err != nil {
		r.emit(Event{Phase: PhaseError, Status: err.Error()})
		return nil, err
	}
	r.emit(Event{Phase: PhaseDone, Percent: 100, Status: "capture complete"})
	return payload, nil
}

// mineContext gathers page-level post and conversation identifiers from
// framework state dumps and tracked network traffic; they parameterize
// download-URL reconstruction. The page's own conversation ID and IDs
// seen only in conversation-scoped traffic are excluded from file
// mining entirely.
func (r *Runner) mineContext(pageURL string, stateStrings []string, turns []turn.Turn) (postIDs, convIDs []string) {
	m := idmine.New(PageConversationID(r.source, pageURL))

	if r.tracker != nil {
		recs := r.tracker.All()
		urls := make([]string, 0, len(recs))
		for _, rec := range recs {
			urls = append(urls, rec.URL)
		}
		// Traffic first: conversation-only IDs must be marked before any
		// state dump gets a chance to present them as files.
		m.ScanTraffic(urls, func(u string) bool {
			return strings.Contains(u, "/conversation")
		})
	}
	for _, s := range stateStrings {
		key, val, found := strings.Cut(s, "=")
		if !found {
			key, val = "", s
		}
		if v, ok := decodeStateJSON(val); ok {
			if key != "" {
				v = map[string]any{key: v}
			}
			m.WalkState(v)
			continue
		}
		m.Scan(val, key)
	}
	for _, t := range turns {
		for _, a := range t.Attachments {
			m.Scan(a.OriginalURL, "attachment")
		}
	}
	return m.PostIDs(), m.ConversationIDs()
}

// decodeStateJSON reports whether a state value is a JSON container and
// decodes it; structured dumps keep their key context that way instead
// of being scanned as one flat string.
func decodeStateJSON(s string) (any, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, false
	}
	return v, true
}

func (r *Runner) materialize(ctx context.Context, turns []turn.Turn, postIDs, convIDs []string) error {
	fetch := r.fetch
	if fetch == nil {
		fetch = materialize.NewHTTPFetcher("", "")
	}
	opts := []materialize.Option{
		materialize.WithLogger(r.logger),
		materialize.WithRequired(r.pol.Required),
		materialize.WithProgress(func(p materialize.Progress) {
			pct := 100
			if p.Total > 0 {
				pct = p.Processed * 100 / p.Total
			}
			r.emit(Event{
				Phase:     PhaseFiles,
				Percent:   pct,
				Status:    "downloading attachments",
				Processed: p.Processed,
				Total:     p.Total,
				Failed:    p.Failed,
			})
		}),
	}
	if r.tracker != nil {
		opts = append(opts, materialize.WithTracker(r.tracker))
	}
	if r.tolerant {
		opts = append(opts, materialize.Tolerant())
	}
	return materialize.New(fetch, opts...).Run(ctx, r.source, turns, postIDs, convIDs)
}
