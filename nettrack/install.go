// CLAUDE:SUMMARY Installs passive CDP network observation on a rod page, feeding the Tracker.
package nettrack

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Install registers passive network observation on a page. Every request
// the page issues is recorded; nothing is blocked or modified. Install is
// idempotent per Tracker: the second and later calls are no-ops.
//
// Observation stops when the page closes; no teardown is needed beyond
// normal page lifetime.
func Install(page *rod.Page, t *Tracker, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if !t.markInstalled() {
		return nil
	}

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("nettrack: enable network domain: %w", err)
	}

	type pending struct {
		method  string
		url     string
		started time.Time
	}
	var mu sync.Mutex
	requests := make(map[proto.NetworkRequestID]pending)

	go page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			mu.Lock()
			requests[e.RequestID] = pending{
				method:  e.Request.Method,
				url:     e.Request.URL,
				started: time.Now(),
			}
			mu.Unlock()
			t.addInFlight(1)
		},
		func(e *proto.NetworkResponseReceived) {
			mu.Lock()
			p, ok := requests[e.RequestID]
			delete(requests, e.RequestID)
			mu.Unlock()
			if !ok {
				p = pending{method: "GET", url: e.Response.URL, started: time.Now()}
			}
			t.addInFlight(-1)
			t.Push(Record{
				URL:         p.url,
				Method:      p.method,
				StartedAt:   p.started,
				Status:      e.Response.Status,
				OK:          e.Response.Status >= 200 && e.Response.Status < 300,
				ContentType: e.Response.MIMEType,
			})
		},
		func(e *proto.NetworkLoadingFailed) {
			mu.Lock()
			p, ok := requests[e.RequestID]
			delete(requests, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			t.addInFlight(-1)
			t.Push(Record{
				URL:       p.url,
				Method:    p.method,
				StartedAt: p.started,
				Status:    0,
				OK:        false,
			})
		},
	)()

	logger.Debug("nettrack: observation installed")
	return nil
}
