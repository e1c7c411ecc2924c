// CLAUDE:SUMMARY Capped ring buffer of observed network requests, tab-lifetime scoped.
// Package nettrack passively records the network requests a captured page
// issues. Attachment discovery correlates mined file identifiers against
// this evidence: a download URL the page already used is the cheapest
// candidate there is.
//
// The buffer is the only shared mutable state in a capture run. It is
// append-only, capacity-capped (oldest evicted first), and exposes no
// direct access beyond Push and Since, so it can be swapped for a per-run
// object without behavior change.
package nettrack

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the ring buffer. Chat pages are chatty; a few
// hundred records cover the window a capture run cares about.
const DefaultCapacity = 512

// Record is one observed network request.
type Record struct {
	URL         string    `json:"url"`
	Method      string    `json:"method"`
	StartedAt   time.Time `json:"started_at"`
	Status      int       `json:"status"`
	OK          bool      `json:"ok"`
	ContentType string    `json:"content_type,omitempty"`
}

// Tracker is the append-only request log for one page.
type Tracker struct {
	mu        sync.Mutex
	buf       []Record
	start     int // index of oldest record
	count     int
	inFlight  int
	installed bool
}

// New creates a Tracker with the given capacity; capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{buf: make([]Record, capacity)}
}

// Push appends a record, evicting the oldest when full.
func (t *Tracker) Push(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	idx := (t.start + t.count) % len(t.buf)
	t.buf[idx] = r
	if t.count < len(t.buf) {
		t.count++
	} else {
		t.start = (t.start + 1) % len(t.buf)
	}
}

// Since returns records started at or after ts, oldest first.
func (t *Tracker) Since(ts time.Time) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Record
	for i := 0; i < t.count; i++ {
		r := t.buf[(t.start+i)%len(t.buf)]
		if !r.StartedAt.Before(ts) {
			out = append(out, r)
		}
	}
	return out
}

// All returns every buffered record, oldest first.
func (t *Tracker) All() []Record {
	return t.Since(time.Time{})
}

// Len returns the number of buffered records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// InFlight returns the number of tracked requests awaiting a response.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

func (t *Tracker) addInFlight(delta int) {
	t.mu.Lock()
	if t.inFlight+delta >= 0 {
		t.inFlight += delta
	}
	t.mu.Unlock()
}

// markInstalled flips the install-once guard; reports whether this call
// won the install.
func (t *Tracker) markInstalled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.installed {
		return false
	}
	t.installed = true
	return true
}
