// CLAUDE:SUMMARY Per-run progress fan-out hub with replay of the last event.
package serve

import (
	"sync"

	"github.com/hazyhaar/convocap/capture"
)

// progressHub routes capture progress events to WebSocket subscribers,
// keyed by run ID. The last event per run is retained so a subscriber
// arriving mid-run (or after a fast run finished) still sees state.
type progressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan capture.Event]struct{}
	last map[string]capture.Event
	done map[string]bool
}

func newProgressHub() *progressHub {
	return &progressHub{
		subs: make(map[string]map[chan capture.Event]struct{}),
		last: make(map[string]capture.Event),
		done: make(map[string]bool),
	}
}

// publish delivers an event to all subscribers of the run. Slow
// subscribers drop events rather than block the capture.
func (h *progressHub) publish(runID string, ev capture.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[runID] = ev
	if ev.Phase == capture.PhaseDone || ev.Phase == capture.PhaseError {
		h.done[runID] = true
	}
	for ch := range h.subs[runID] {
		select {
		case ch <- ev:
		default:
		}
		if h.done[runID] {
			close(ch)
			delete(h.subs[runID], ch)
		}
	}
}

// subscribe registers for a run's events. The returned channel replays
// the last known event immediately and is closed when the run ends.
func (h *progressHub) subscribe(runID string) chan capture.Event {
	ch := make(chan capture.Event, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if last, ok := h.last[runID]; ok {
		ch <- last
	}
	if h.done[runID] {
		close(ch)
		return ch
	}
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan capture.Event]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	return ch
}

// unsubscribe detaches a channel, e.g. when the client hangs up first.
func (h *progressHub) unsubscribe(runID string, ch chan capture.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[runID]; ok {
		if _, live := set[ch]; live {
			delete(set, ch)
			close(ch)
		}
	}
}
