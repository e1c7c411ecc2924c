package nettrack

import (
	"fmt"
	"testing"
	"time"
)

func TestPush_EvictsOldest(t *testing.T) {
	// WHAT: Pushing past capacity drops the oldest records first.
	// WHY: The buffer bounds memory for tab-lifetime scope.
	tr := New(3)
	for i := 0; i < 5; i++ {
		tr.Push(Record{URL: fmt.Sprintf("https://x/%d", i), Method: "GET"})
	}
	all := tr.All()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].URL != "https://x/2" || all[2].URL != "https://x/4" {
		t.Errorf("eviction order wrong: %v", all)
	}
}

func TestSince_FiltersByTime(t *testing.T) {
	// WHAT: Since returns only records at or after the timestamp.
	// WHY: Warmup waits on "new network evidence since the interaction".
	tr := New(8)
	early := time.Now().Add(-time.Hour)
	tr.Push(Record{URL: "https://x/old", StartedAt: early})
	cut := time.Now()
	tr.Push(Record{URL: "https://x/new", StartedAt: cut.Add(time.Millisecond)})

	got := tr.Since(cut)
	if len(got) != 1 || got[0].URL != "https://x/new" {
		t.Errorf("Since = %v", got)
	}
}

func TestInFlight_NeverNegative(t *testing.T) {
	// WHAT: The in-flight counter clamps at zero.
	// WHY: Responses for requests observed before install would otherwise
	// drive it negative.
	tr := New(4)
	tr.addInFlight(-1)
	if tr.InFlight() != 0 {
		t.Errorf("in-flight = %d, want 0", tr.InFlight())
	}
	tr.addInFlight(1)
	tr.addInFlight(1)
	tr.addInFlight(-1)
	if tr.InFlight() != 1 {
		t.Errorf("in-flight = %d, want 1", tr.InFlight())
	}
}

func TestInstallOnce(t *testing.T) {
	// WHAT: The install guard admits exactly one installer.
	// WHY: Double observation would double-count every request.
	tr := New(4)
	if !tr.markInstalled() {
		t.Fatal("first install refused")
	}
	if tr.markInstalled() {
		t.Fatal("second install admitted")
	}
}
