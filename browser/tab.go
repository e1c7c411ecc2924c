// CLAUDE:SUMMARY Tab helpers: DOM read, scrolling metrics, tile activation, cookies, framework-state probe.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Tab wraps a Rod page with capture-specific helpers.
type Tab struct {
	Page    *rod.Page
	PageURL string
	logger  *slog.Logger
}

// HTML serialises the complete DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Title returns the document title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("browser: get title: %w", err)
	}
	return res.Value.Str(), nil
}

// URL returns the page's current location.
func (t *Tab) URL(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return t.PageURL, fmt.Errorf("browser: get url: %w", err)
	}
	return res.Value.Str(), nil
}

// scrollRegionJS picks the tallest scrollable region on the page: the
// conversation pane on every supported host scrolls independently of the
// body, so document.scrollingElement alone misses it.
const scrollRegionJS = `() => {
	const els = [document.scrollingElement, ...document.querySelectorAll('main, [class*="scroll"], [class*="conversation"], [class*="chat"]')];
	let best = document.scrollingElement, bestGap = 0;
	for (const el of els) {
		if (!el) continue;
		const gap = el.scrollHeight - el.clientHeight;
		if (gap > bestGap) { best = el; bestGap = gap; }
	}
	best.setAttribute('data-capture-scroll-region', '1');
	return best.scrollHeight;
}`

// MarkScrollRegion tags the heuristically-chosen scrollable region and
// returns its current scroll height.
func (t *Tab) MarkScrollRegion(ctx context.Context) (int, error) {
	res, err := t.Page.Context(ctx).Eval(scrollRegionJS)
	if err != nil {
		return 0, fmt.Errorf("browser: mark scroll region: %w", err)
	}
	return res.Value.Int(), nil
}

// ScrollRegionTo scrolls the marked region to the given offset; fraction
// of scrollHeight when 0 <= pos <= 1 is not assumed — pos is absolute px.
func (t *Tab) ScrollRegionTo(ctx context.Context, pos int) (int, error) {
	res, err := t.Page.Context(ctx).Eval(`(pos) => {
		const el = document.querySelector('[data-capture-scroll-region]') || document.scrollingElement;
		el.scrollTop = pos;
		return el.scrollHeight;
	}`, pos)
	if err != nil {
		return 0, fmt.Errorf("browser: scroll: %w", err)
	}
	return res.Value.Int(), nil
}

// FileTiles returns elements that look like interactive file tiles for
// the given selectors, bounded to the first limit matches.
func (t *Tab) FileTiles(ctx context.Context, selector string, limit int) ([]*rod.Element, error) {
	els, err := t.Page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query tiles %q: %w", selector, err)
	}
	if len(els) > limit {
		els = els[:limit]
	}
	return els, nil
}

// ActivateTile simulates the pointer and keyboard interaction that makes
// a host reveal the real download URL for a file tile. Errors are
// returned for logging only; activation is always best-effort.
func (t *Tab) ActivateTile(ctx context.Context, el *rod.Element) error {
	el = el.Context(ctx)
	if err := el.Hover(); err != nil {
		return fmt.Errorf("browser: hover tile: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click tile: %w", err)
	}
	// Some hosts open tiles into a preview needing dismissal; Escape is
	// harmless where they do not.
	time.Sleep(150 * time.Millisecond)
	if err := t.Page.Context(ctx).Keyboard.Press(input.Escape); err != nil {
		return fmt.Errorf("browser: escape after tile: %w", err)
	}
	return nil
}

// Cookies returns the page's cookies so the materializer can fetch
// attachment URLs with the user's credentials.
func (t *Tab) Cookies(ctx context.Context) ([]*proto.NetworkCookie, error) {
	cookies, err := t.Page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("browser: cookies: %w", err)
	}
	return cookies, nil
}

// stateProbeJS walks UI-framework internal props attached to DOM elements
// (React fiber props and similar) collecting string values under
// id-looking keys. Bounded by element, depth, and string caps; wrapped in
// try/catch so it is total — any failure returns what was gathered.
const stateProbeJS = `() => {
	const out = [];
	try {
		const keyRx = /file|asset|attachment|media|image|document|id$/i;
		const els = document.querySelectorAll('*');
		let visited = 0;
		const walk = (v, key, depth) => {
			if (out.length >= 200 || visited++ > 5000 || depth > 4 || v == null) return;
			if (typeof v === 'string') {
				if (keyRx.test(key) && v.length >= 8 && v.length <= 256) out.push(key + '=' + v);
			} else if (Array.isArray(v)) {
				for (const item of v) walk(item, key, depth + 1);
			} else if (typeof v === 'object') {
				for (const k of Object.keys(v)) {
					if (k.startsWith('_') || k.startsWith('$')) continue;
					walk(v[k], k, depth + 1);
				}
			}
		};
		for (let i = 0; i < els.length && i < 3000 && out.length < 200; i++) {
			const el = els[i];
			for (const prop of Object.getOwnPropertyNames(el)) {
				if (!prop.startsWith('__react')) continue;
				try { walk(el[prop] && el[prop].memoizedProps || el[prop], 'props', 0); } catch (e) {}
			}
		}
	} catch (e) {}
	return out;
}`

// StateStrings runs the best-effort framework-state probe and returns
// "key=value" strings for the identifier miner. Never fails: probe errors
// yield an empty slice.
func (t *Tab) StateStrings(ctx context.Context) []string {
	res, err := t.Page.Context(ctx).Eval(stateProbeJS)
	if err != nil {
		t.logger.Debug("browser: state probe failed", "error", err)
		return nil
	}
	var out []string
	arr := res.Value.Arr()
	for _, v := range arr {
		out = append(out, v.Str())
	}
	return out
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
