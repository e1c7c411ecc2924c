// CLAUDE:SUMMARY Entry point for the convocap capture engine — HTTP control API, optional MCP stdio.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/convocap/browser"
	"github.com/hazyhaar/convocap/capture"
	"github.com/hazyhaar/convocap/materialize"
	"github.com/hazyhaar/convocap/nettrack"
	"github.com/hazyhaar/convocap/policy"
	"github.com/hazyhaar/convocap/serve"
	"github.com/hazyhaar/convocap/store"
	"github.com/hazyhaar/convocap/turn"
)

func main() {
	port := env("PORT", "8097")
	dbPath := env("CAPTURE_DB", "db/captures.db")
	policyPath := env("POLICY_FILE", "")
	devtoolsURL := env("DEVTOOLS_URL", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Attachment policy, hot-reloaded when a file is given.
	pol := policy.Default()
	if policyPath != "" {
		var err error
		pol, err = policy.Load(policyPath)
		if err != nil {
			slog.Error("policy load", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := pol.Watch(ctx, policyPath, logger); err != nil && ctx.Err() == nil {
				slog.Warn("policy watch stopped", "error", err)
			}
		}()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		slog.Error("capture db", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	launcher := newLauncher(devtoolsURL, pol, logger)
	srv := serve.New(st, launcher, logger)

	// Optional MCP over stdio for agent clients.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "convocap",
			Version: serve.Version,
		}, nil)
		srv.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	// HTTP server.
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute, // capture payloads can be large
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// newLauncher builds the capture launcher. Snapshot requests run the
// pipeline directly; live-page requests attach to the user's running
// Chrome (or launch one) so the capture rides their logged-in session.
func newLauncher(devtoolsURL string, pol *policy.Policy, logger *slog.Logger) serve.Launcher {
	return func(ctx context.Context, req serve.CaptureRequest, onEvent func(capture.Event)) (*turn.Payload, string, error) {
		if req.HTML != "" {
			src := turn.SourceForURL(req.PageURL)
			r := capture.NewRunner(src,
				capture.WithPolicy(pol),
				capture.WithLogger(logger),
				capture.WithEvents(onEvent),
				capture.Tolerant(),
			)
			payload, err := r.CaptureDocument(ctx, req.HTML, req.PageURL, req.Title)
			return payload, r.Warning, err
		}

		src := turn.SourceForURL(req.URL)
		session, err := browser.Connect(ctx, browser.Config{RemoteURL: devtoolsURL, Logger: logger})
		if err != nil {
			return nil, "", err
		}
		defer session.Close()

		tab, err := session.Attach(ctx, req.URL)
		if err != nil {
			logger.Info("no open tab, opening page", "url", req.URL)
			tab, err = session.Open(ctx, req.URL)
			if err != nil {
				return nil, "", err
			}
		}
		defer tab.Close()

		tracker := nettrack.New(0)
		if err := nettrack.Install(tab.Page, tracker, logger); err != nil {
			logger.Warn("network tracking unavailable", "error", err)
		}

		fetcher := materialize.NewHTTPFetcher(cookieHeader(ctx, tab), userAgent)
		opts := []capture.Option{
			capture.WithTab(tab),
			capture.WithTracker(tracker),
			capture.WithFetcher(fetcher),
			capture.WithPolicy(pol),
			capture.WithLogger(logger),
			capture.WithEvents(onEvent),
		}
		if req.Tolerant {
			opts = append(opts, capture.Tolerant())
		}
		r := capture.NewRunner(src, opts...)
		payload, err := r.Run(ctx)
		return payload, r.Warning, err
	}
}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// cookieHeader serializes the tab's cookies so host-gated download
// endpoints accept the fetcher as the logged-in user.
func cookieHeader(ctx context.Context, tab *browser.Tab) string {
	cookies, err := tab.Cookies(ctx)
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(parts, "; ")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
