// CLAUDE:SUMMARY Sequential attachment materialization with tracker-first candidates and failure pruning.
// Package materialize resolves attachment candidates to self-contained
// inline data. Hosts hide real download URLs behind opaque identifiers,
// so each attachment is tried against network-tracker evidence first,
// then against reconstructed backend URL candidates. Attachments are
// processed one at a time, in discovery order; concurrent downloads
// would trip host rate limits and make tracker evidence ambiguous.
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/convocap/attach"
	"github.com/hazyhaar/convocap/idmine"
	"github.com/hazyhaar/convocap/nettrack"
	"github.com/hazyhaar/convocap/turn"
)

// maxErrorNames caps how many failed attachment names a strict-mode
// error message carries.
const maxErrorNames = 3

// Progress is reported after every attachment.
type Progress struct {
	Processed int
	Total     int
	Failed    int
}

// RequiredFunc decides whether an attachment must be materialized for a
// host, or is deliberately left as a link.
type RequiredFunc func(src turn.Source, a turn.Attachment) bool

// Materializer drives attachment resolution for one capture run.
type Materializer struct {
	fetch      FetchCapability
	tracker    *nettrack.Tracker
	required   RequiredFunc
	onProgress func(Progress)
	logger     *slog.Logger
	tolerant   bool
	probed     bool
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithTracker supplies the page's network-activity buffer; tracker
// records matching an attachment's file ID are the cheapest candidates.
func WithTracker(t *nettrack.Tracker) Option {
	return func(m *Materializer) { m.tracker = t }
}

// WithRequired sets the per-host required-vs-link-only policy predicate.
func WithRequired(f RequiredFunc) Option {
	return func(m *Materializer) { m.required = f }
}

// WithProgress sets the progress callback.
func WithProgress(f func(Progress)) Option {
	return func(m *Materializer) { m.onProgress = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) { m.logger = l }
}

// Tolerant switches to best-effort mode: failures are logged and left as
// failed-status entries instead of aborting the run. Automated per-host
// flows use this; user-triggered single captures stay strict.
func Tolerant() Option {
	return func(m *Materializer) { m.tolerant = true }
}

// New builds a Materializer around a fetch capability.
func New(fetch FetchCapability, opts ...Option) *Materializer {
	m := &Materializer{
		fetch:    fetch,
		required: func(turn.Source, turn.Attachment) bool { return true },
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run resolves every attachment across turns, in document order, and
// mutates the turns in place. postIDs and convIDs are the contextual
// identifiers mined at page level, used for candidate reconstruction.
// In strict mode any residual required failure aborts with an aggregate
// error; in tolerant mode the failures stay on the attachments.
func (m *Materializer) Run(ctx context.Context, src turn.Source, turns []turn.Turn, postIDs, convIDs []string) error {
	total := 0
	for i := range turns {
		total += len(turns[i].Attachments)
	}

	var processed, failed int
	report := func() {
		if m.onProgress != nil {
			m.onProgress(Progress{Processed: processed, Total: total, Failed: failed})
		}
	}

	for ti := range turns {
		t := &turns[ti]
		for ai := range t.Attachments {
			a := &t.Attachments[ai]
			m.materializeOne(ctx, src, a, postIDs, convIDs)
			processed++
			if a.Status == turn.StatusFailed {
				failed++
			}
			report()
		}
		pruneRedundantFailures(t)
	}

	// Failures are judged after pruning: an ID-shaped duplicate the prune
	// removed must not abort a strict run.
	if !m.tolerant {
		var residual []string
		for ti := range turns {
			for ai := range turns[ti].Attachments {
				if turns[ti].Attachments[ai].Status == turn.StatusFailed {
					residual = append(residual, displayName(&turns[ti].Attachments[ai]))
				}
			}
		}
		if len(residual) > 0 {
			return aggregateError(residual)
		}
	}
	return nil
}

// materializeOne resolves a single attachment. Already-inline data is
// cached by definition; attachments the host policy keeps as links stay
// remote_only untouched.
func (m *Materializer) materializeOne(ctx context.Context, src turn.Source, a *turn.Attachment, postIDs, convIDs []string) {
	if a.IsInline() {
		a.Status = turn.StatusCached
		return
	}
	if !m.required(src, *a) {
		return
	}

	candidates := m.candidates(src, a, postIDs, convIDs)
	for _, u := range candidates {
		data, mime, err := m.fetch.FetchInline(ctx, u)
		if err != nil {
			m.logger.Debug("materialize: candidate failed", "url", u, "err", err)
			continue
		}
		m.inline(a, data, mime)
		return
	}

	m.logger.Warn("materialize: all candidates exhausted",
		"name", displayName(a), "candidates", len(candidates))
	if !m.probed {
		m.probed = true
		m.probeCandidates(ctx, candidates)
	}
	a.Status = turn.StatusFailed
}

// inline stamps fetched data onto the attachment, upgrading kind and
// mime from the actual bytes when the sniff is more specific.
func (m *Materializer) inline(a *turn.Attachment, dataURI, mime string) {
	a.OriginalURL = dataURI
	if a.Mime == "" {
		a.Mime = mime
	}
	if kind, km := attach.Classify(dataURI, a.Name, mime); kind.Score() > a.Kind.Score() {
		a.Kind = kind
		if a.Mime == "" {
			a.Mime = km
		}
	}
	a.Status = turn.StatusCached
}

// candidates orders the URLs to try: tracker-observed requests matching
// the file ID first (the page already made them, so they are known
// good shapes), then reconstructed backend templates, then the literal
// URL itself.
func (m *Materializer) candidates(src turn.Source, a *turn.Attachment, postIDs, convIDs []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	if m.tracker != nil && a.FileID != "" {
		for _, rec := range m.tracker.All() {
			if rec.OK && idmine.MatchesFileID(rec.URL, a.FileID) {
				add(rec.URL)
			}
		}
	}
	if a.FileID != "" {
		for _, u := range idmine.Candidates(src, a.FileID, postIDs, convIDs) {
			add(u)
		}
	}
	if strings.HasPrefix(a.OriginalURL, "http://") || strings.HasPrefix(a.OriginalURL, "https://") {
		add(a.OriginalURL)
	}
	return out
}

// probeCandidates is the one-time diagnostic pass run on the first
// failure: HEAD each candidate and log what the host actually answers.
// Logged only, never fatal.
func (m *Materializer) probeCandidates(ctx context.Context, candidates []string) {
	for _, u := range candidates {
		res, err := m.fetch.Probe(ctx, u)
		if err != nil {
			m.logger.Info("materialize: probe", "url", u, "err", err)
			continue
		}
		m.logger.Info("materialize: probe", "url", u,
			"status", res.Status, "content_type", res.ContentType, "length", res.ContentLength)
	}
}

// pruneRedundantFailures drops failed entries whose name is a generic
// derived identifier when the turn already holds a cached attachment of
// compatible kind. A mined file ID and a real anchor often describe the
// same file; once one copy is cached, the ID-shaped failure is noise.
func pruneRedundantFailures(t *turn.Turn) {
	hasCached := map[turn.Kind]bool{}
	for _, a := range t.Attachments {
		if a.Status == turn.StatusCached {
			hasCached[a.Kind] = true
		}
	}
	if len(hasCached) == 0 {
		return
	}
	out := t.Attachments[:0]
	for _, a := range t.Attachments {
		if a.Status == turn.StatusFailed && genericName(&a) && compatibleCached(hasCached, a.Kind) {
			continue
		}
		out = append(out, a)
	}
	t.Attachments = out
}

func compatibleCached(hasCached map[turn.Kind]bool, k turn.Kind) bool {
	if hasCached[k] {
		return true
	}
	// A bare "file" classification is compatible with any cached kind.
	return k == turn.KindFile && len(hasCached) > 0
}

// genericName reports whether the attachment's name is a derived
// identifier rather than a filename a user would recognize.
func genericName(a *turn.Attachment) bool {
	name := a.Name
	if name == "" {
		name = a.PlaceholderName()
	}
	if name == "" || name == a.FileID {
		return true
	}
	return !strings.Contains(name, ".")
}

func displayName(a *turn.Attachment) string {
	if a.Name != "" {
		return a.Name
	}
	if a.FileID != "" {
		return a.FileID
	}
	if n := a.PlaceholderName(); n != "" {
		return n
	}
	return a.OriginalURL
}

func aggregateError(names []string) error {
	shown := names
	if len(shown) > maxErrorNames {
		shown = shown[:maxErrorNames]
	}
	return fmt.Errorf("materialize: %d attachment(s) failed: %s", len(names), strings.Join(shown, ", "))
}
