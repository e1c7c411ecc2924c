// CLAUDE:SUMMARY Per-host turn extraction from rendered chat pages, with layered fallbacks.
// Package extract walks a host page's rendered document and produces the
// ordered, deduplicated sequence of conversation turns. Host markup is
// unstable and undocumented, so extraction is layered: host-specific
// selectors, then broader structural selectors, then a plain-text
// role-marker parse, then a single catch-all turn. Extraction never
// fails; a page with nothing recoverable yields an empty slice.
package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/convocap/mdnorm"
	"github.com/hazyhaar/convocap/turn"
)

// minCatchAllChars is the least visible text a page must have before the
// catch-all single-turn fallback applies.
const minCatchAllChars = 20

// Extractor derives turns from a parsed document for one host.
type Extractor struct {
	source turn.Source
	host   hostRules
	norm   *mdnorm.Normalizer
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithNormalizer overrides the Markdown normalizer (e.g. to carry the
// page URL for link resolution).
func WithNormalizer(n *mdnorm.Normalizer) Option {
	return func(e *Extractor) { e.norm = n }
}

// ForSource creates the extractor for a host.
func ForSource(src turn.Source, opts ...Option) *Extractor {
	e := &Extractor{
		source: src,
		norm:   mdnorm.New(),
		logger: slog.Default(),
	}
	switch src {
	case turn.SourceChatGPT:
		e.host = chatgptRules()
	case turn.SourceGemini:
		e.host = geminiRules()
	case turn.SourceAIStudio:
		e.host = aistudioRules()
	case turn.SourceClaude:
		e.host = claudeRules()
	default:
		e.host = genericRules()
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Source returns the host this extractor targets.
func (e *Extractor) Source() turn.Source { return e.source }

// Extract produces the turn sequence for a document. Total: any input
// yields a (possibly empty) slice.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string) []turn.Turn {
	if doc == nil {
		return nil
	}

	var turns []turn.Turn
	for _, tier := range e.host.tiers {
		turns = e.extractTier(doc, tier)
		if len(turns) > 0 {
			break
		}
	}
	if len(turns) == 0 {
		e.logger.Debug("extract: host selectors empty, trying structural fallback", "source", e.source)
		turns = e.extractTier(doc, broadTier)
	}
	if len(turns) == 0 {
		e.logger.Debug("extract: structural fallback empty, trying role markers", "source", e.source)
		turns = parseRoleMarkers(visibleText(doc))
	}
	if len(turns) == 0 {
		text := strings.TrimSpace(visibleText(doc))
		if len([]rune(text)) >= minCatchAllChars {
			e.logger.Debug("extract: emitting catch-all turn", "source", e.source)
			turns = []turn.Turn{{
				Role:            turn.RoleAssistant,
				ContentMarkdown: e.norm.Normalize(text),
			}}
		}
	}

	turns = e.finalize(turns)
	return turn.Dedup(turns)
}

// extractTier locates per-turn elements for one selector tier and
// converts each. All selectors in the tier run as one combined query so
// output follows document order; only the outermost of nested matches is
// kept, or the same content would surface twice.
func (e *Extractor) extractTier(doc *goquery.Document, tier []turnSelector) []turn.Turn {
	if len(tier) == 0 {
		return nil
	}
	parts := make([]string, len(tier))
	for i, ts := range tier {
		parts[i] = ts.selector
	}
	combined := strings.Join(parts, ", ")

	var out []turn.Turn
	doc.Find(combined).Each(func(_ int, sel *goquery.Selection) {
		if sel.ParentsFiltered(combined).Length() > 0 {
			return
		}
		for _, ts := range tier {
			if !sel.Is(ts.selector) {
				continue
			}
			if t, ok := e.turnFromElement(sel, ts); ok {
				out = append(out, t)
			}
			return
		}
	})
	return out
}

// finalize applies host post-processing, placeholder substitution, and
// drops empty turns.
func (e *Extractor) finalize(turns []turn.Turn) []turn.Turn {
	out := turns[:0]
	for _, t := range turns {
		if e.host.postProcess != nil {
			t = e.host.postProcess(t)
		}
		t.ContentMarkdown, t.ThoughtMarkdown = splitResidualThought(t.ContentMarkdown, t.ThoughtMarkdown)
		if strings.TrimSpace(t.ContentMarkdown) == "" {
			if len(t.Attachments) == 0 {
				continue // nothing recoverable at all
			}
			t.ContentMarkdown = turn.PlaceholderContent
		}
		out = append(out, t)
	}
	return out
}
