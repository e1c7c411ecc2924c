// CLAUDE:SUMMARY Warmup: scroll-driven lazy-load forcing and file-tile activation.
package capture

import (
	"context"
	"time"

	"github.com/hazyhaar/convocap/turn"
)

const (
	// maxScrollRounds bounds the top-to-bottom passes forcing lazy
	// content to render.
	maxScrollRounds = 6
	// scrollSettle is the wait after each scroll step for virtualized
	// lists to mount their rows.
	scrollSettle = 400 * time.Millisecond
	// maxTiles bounds how many file tiles are activated per page.
	maxTiles = 12
	// tileEvidenceRetries / tileEvidenceWait bound the wait for a tile
	// activation to produce new network traffic.
	tileEvidenceRetries = 4
	tileEvidenceWait    = 500 * time.Millisecond
)

// tileSelectors locate the per-host file-tile elements whose real
// download URLs only appear on the wire after a simulated interaction.
var tileSelectors = map[turn.Source]string{
	turn.SourceChatGPT:  `[data-testid*="attachment"], a[href*="oaiusercontent"], div[class*="file-tile"]`,
	turn.SourceGemini:   `[data-test-id*="file"], uploader-file-preview, [class*="attachment-chip"]`,
	turn.SourceAIStudio: `ms-file-chip, [class*="file-chunk"]`,
	turn.SourceClaude:   `[data-testid="file-thumbnail"], [class*="file-preview"]`,
}

// warmup forces the page to render everything a capture needs: scroll
// the conversation end to end until its height stabilizes, then poke
// file tiles and wait for download-URL evidence on the wire. Every wait
// is bounded; warmup proceeds with whatever it got on timeout.
func (r *Runner) warmup(ctx context.Context) {
	if r.tab == nil {
		return
	}
	r.scrollToSettle(ctx)
	r.activateTiles(ctx)
}

func (r *Runner) scrollToSettle(ctx context.Context) {
	height, err := r.tab.MarkScrollRegion(ctx)
	if err != nil {
		r.logger.Debug("capture: no scroll region found", "err", err)
		return
	}
	prev := height
	for round := 0; round < maxScrollRounds; round++ {
		if ctx.Err() != nil {
			return
		}
		h, err := r.tab.ScrollRegionTo(ctx, 1<<30)
		if err != nil {
			r.logger.Debug("capture: scroll failed", "round", round, "err", err)
			return
		}
		sleep(ctx, scrollSettle)
		if _, err := r.tab.ScrollRegionTo(ctx, 0); err != nil {
			return
		}
		sleep(ctx, scrollSettle)
		if h == prev {
			break // height stable, nothing more is loading
		}
		prev = h
	}
}

// activateTiles simulates pointer/keyboard activation of each file tile
// and waits for new tracker records as evidence the host fetched the
// real URL. A tile that never produces evidence is skipped, not fatal:
// the page simply has nothing more to reveal.
func (r *Runner) activateTiles(ctx context.Context) {
	selector, ok := tileSelectors[r.source]
	if !ok || r.tracker == nil {
		return
	}
	tiles, err := r.tab.FileTiles(ctx, selector, maxTiles)
	if err != nil || len(tiles) == 0 {
		return
	}
	r.logger.Debug("capture: activating file tiles", "count", len(tiles))

	for _, tile := range tiles {
		if ctx.Err() != nil {
			return
		}
		before := r.tracker.Len()
		if err := r.tab.ActivateTile(ctx, tile); err != nil {
			r.logger.Debug("capture: tile activation failed", "err", err)
			continue
		}
		for i := 0; i < tileEvidenceRetries; i++ {
			sleep(ctx, tileEvidenceWait)
			if r.tracker.Len() > before && r.tracker.InFlight() == 0 {
				break
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
