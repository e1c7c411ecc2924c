// CLAUDE:SUMMARY Chrome session handling: connect to a running browser or launch one, open/attach tabs.
// Package browser wraps Rod for the capture pipeline: connect to the
// user's running Chrome over its DevTools endpoint (the normal mode — the
// conversation lives in their logged-in session) or launch a disposable
// instance, and hand out tabs with capture-specific helpers.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Config configures a Session.
type Config struct {
	// RemoteURL is the DevTools URL of a running Chrome ("http://host:9222"
	// or a ws:// URL). Empty launches a local headless instance.
	RemoteURL string

	// Headful launches a visible browser when launching locally.
	Headful bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session owns one Rod browser connection.
type Session struct {
	browser *rod.Browser
	cfg     Config
	lnch    *launcher.Launcher
}

// Connect establishes the browser connection.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	s := &Session{cfg: cfg}

	var controlURL string
	if cfg.RemoteURL != "" {
		u, err := launcher.ResolveURL(cfg.RemoteURL)
		if err != nil {
			return nil, fmt.Errorf("browser: resolve devtools url %s: %w", cfg.RemoteURL, err)
		}
		controlURL = u
	} else {
		l := launcher.New().Headless(!cfg.Headful)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch chrome: %w", err)
		}
		s.lnch = l
		controlURL = u
	}

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	cfg.Logger.Debug("browser: connected", "remote", cfg.RemoteURL != "")
	return s, nil
}

// Attach finds an already-open tab whose URL starts with urlPrefix. This
// is the primary capture mode: the user has the conversation open and
// logged in; we piggyback on that tab.
func (s *Session) Attach(ctx context.Context, urlPrefix string) (*Tab, error) {
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	page, err := pages.FindByURL(regexp.QuoteMeta(urlPrefix))
	if err != nil {
		return nil, fmt.Errorf("browser: no open tab matching %s: %w", urlPrefix, err)
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("browser: page info: %w", err)
	}
	return &Tab{Page: page, PageURL: info.URL, logger: s.cfg.Logger}, nil
}

// Open creates a new tab, navigates with stealth applied, and waits for
// the page load event (bounded; a slow page proceeds after the timeout).
func (s *Session) Open(ctx context.Context, pageURL string) (*Tab, error) {
	page, err := stealth.Page(s.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, logger: s.cfg.Logger}, nil
}

// Close shuts the connection down; a launched Chrome is also terminated.
func (s *Session) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
}
