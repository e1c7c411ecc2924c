package materialize

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/convocap/nettrack"
	"github.com/hazyhaar/convocap/turn"
)

func fileServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/img"):
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("\x89PNG\r\n\x1a\nfakepixels"))
		case strings.HasPrefix(r.URL.Path, "/fakepdf"):
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("<html>link expired</html>"))
		case strings.HasPrefix(r.URL.Path, "/json"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":"not found"}`))
		case strings.HasPrefix(r.URL.Path, "/html"):
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>sign in</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// WHAT: a resolvable remote image ends up inlined as a data URI with
// status cached.
func TestMaterialize_RemoteImageCached(t *testing.T) {
	srv := fileServer(t)
	turns := []turn.Turn{{
		Role:            turn.RoleAssistant,
		ContentMarkdown: "here is the chart",
		Attachments: []turn.Attachment{{
			Kind:        turn.KindImage,
			OriginalURL: srv.URL + "/img/chart.png",
			Status:      turn.StatusRemote,
		}},
	}}
	m := New(NewHTTPFetcher("", ""))
	if err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := turns[0].Attachments[0]
	if a.Status != turn.StatusCached {
		t.Errorf("status = %q, want cached", a.Status)
	}
	if !strings.HasPrefix(a.OriginalURL, "data:image/png;base64,") {
		t.Errorf("url = %q, want data URI", a.OriginalURL)
	}
	if a.Mime != "image/png" {
		t.Errorf("mime = %q", a.Mime)
	}
}

// WHAT: JSON and HTML bodies are refused as error pages even on 200.
// WHY: hosts answer bad file requests with 200-status sign-in pages.
func TestMaterialize_ErrorPageBodiesRejected(t *testing.T) {
	srv := fileServer(t)
	f := NewHTTPFetcher("", "")
	for _, path := range []string{"/json/file", "/html/file", "/fakepdf/report.pdf"} {
		if _, _, err := f.FetchInline(context.Background(), srv.URL+path); err == nil {
			t.Errorf("FetchInline(%s) succeeded, want rejection", path)
		}
	}
}

// WHAT: tolerant mode leaves exactly the unresolvable attachments as
// failed and returns no error; strict mode errors naming a failure.
func TestMaterialize_FailureAggregation(t *testing.T) {
	srv := fileServer(t)
	build := func() []turn.Turn {
		mk := func(path, name string) turn.Attachment {
			return turn.Attachment{
				Kind:        turn.KindImage,
				OriginalURL: srv.URL + path,
				Name:        name,
				Status:      turn.StatusRemote,
			}
		}
		return []turn.Turn{{
			Role:            turn.RoleUser,
			ContentMarkdown: "files",
			Attachments: []turn.Attachment{
				mk("/img/a.png", "a.png"),
				mk("/missing/b.png", "b.png"),
				mk("/img/c.png", "c.png"),
				mk("/missing/d.png", "d.png"),
				mk("/img/e.png", "e.png"),
			},
		}}
	}

	turns := build()
	m := New(NewHTTPFetcher("", ""), Tolerant())
	if err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil); err != nil {
		t.Fatalf("tolerant Run: %v", err)
	}
	failed := 0
	for _, a := range turns[0].Attachments {
		if a.Status == turn.StatusFailed {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}

	turns = build()
	m = New(NewHTTPFetcher("", ""))
	err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil)
	if err == nil {
		t.Fatal("strict Run succeeded, want error")
	}
	if !strings.Contains(err.Error(), "b.png") && !strings.Contains(err.Error(), "d.png") {
		t.Errorf("error %q names no failed attachment", err)
	}
}

// WHAT: progress is reported once per attachment against the full total.
func TestMaterialize_Progress(t *testing.T) {
	srv := fileServer(t)
	turns := []turn.Turn{{
		Role:            turn.RoleUser,
		ContentMarkdown: "x",
		Attachments: []turn.Attachment{
			{Kind: turn.KindImage, OriginalURL: srv.URL + "/img/1.png", Status: turn.StatusRemote},
			{Kind: turn.KindImage, OriginalURL: srv.URL + "/img/2.png", Status: turn.StatusRemote},
		},
	}}
	var events []Progress
	m := New(NewHTTPFetcher("", ""), Tolerant(), WithProgress(func(p Progress) {
		events = append(events, p)
	}))
	if err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	last := events[len(events)-1]
	if last.Processed != 2 || last.Total != 2 || last.Failed != 0 {
		t.Errorf("final progress = %+v", last)
	}
}

// WHAT: tracker records whose URL carries the attachment's file ID are
// tried before reconstructed candidates.
func TestMaterialize_TrackerEvidenceFirst(t *testing.T) {
	srv := fileServer(t)
	tracker := nettrack.New(0)
	tracker.Push(nettrack.Record{
		URL:       srv.URL + "/img/file-TrackerHit99",
		Method:    "GET",
		StartedAt: time.Now(),
		Status:    200,
		OK:        true,
	})
	turns := []turn.Turn{{
		Role:            turn.RoleUser,
		ContentMarkdown: "x",
		Attachments: []turn.Attachment{{
			Kind:        turn.KindFile,
			OriginalURL: turn.PlaceholderScheme + "file-TrackerHit99",
			FileID:      "file-TrackerHit99",
			Status:      turn.StatusRemote,
		}},
	}}
	m := New(NewHTTPFetcher("", ""), WithTracker(tracker))
	if err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if turns[0].Attachments[0].Status != turn.StatusCached {
		t.Errorf("status = %q, want cached", turns[0].Attachments[0].Status)
	}
}

// WHAT: a failed ID-shaped duplicate is pruned once a real attachment of
// compatible kind is cached in the same turn.
func TestPruneRedundantFailures(t *testing.T) {
	tr := turn.Turn{Attachments: []turn.Attachment{
		{Kind: turn.KindImage, OriginalURL: "data:image/png;base64,AAAA", Name: "chart.png", Status: turn.StatusCached},
		{Kind: turn.KindFile, OriginalURL: turn.PlaceholderScheme + "file-AbCdEf123456", FileID: "file-AbCdEf123456", Status: turn.StatusFailed},
		{Kind: turn.KindPDF, OriginalURL: "https://example.com/report.pdf", Name: "report.pdf", Status: turn.StatusFailed},
	}}
	pruneRedundantFailures(&tr)
	if len(tr.Attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(tr.Attachments))
	}
	// The real-named PDF failure stays; only the ID-shaped one goes.
	for _, a := range tr.Attachments {
		if a.FileID == "file-AbCdEf123456" {
			t.Error("ID-shaped failure survived pruning")
		}
	}
}

// stubFetcher resolves only the listed URLs; everything else fails
// without touching the network.
type stubFetcher struct{ ok map[string]bool }

func (s stubFetcher) FetchInline(_ context.Context, url string) (string, string, error) {
	if s.ok[url] {
		return "data:image/png;base64,AAAA", "image/png", nil
	}
	return "", "", fmt.Errorf("refused")
}

func (s stubFetcher) Probe(context.Context, string) (ProbeResult, error) {
	return ProbeResult{}, fmt.Errorf("refused")
}

// WHAT: strict mode succeeds when the only failures are ID-shaped
// duplicates the per-turn prune removed after a compatible attachment
// was cached.
// WHY: failures are judged on the pruned attachment set, not on raw
// fetch outcomes.
func TestMaterialize_StrictIgnoresPrunedFailures(t *testing.T) {
	const imgURL = "https://files.example.com/chart.png"
	turns := []turn.Turn{{
		Role:            turn.RoleUser,
		ContentMarkdown: "x",
		Attachments: []turn.Attachment{
			{Kind: turn.KindImage, OriginalURL: imgURL, Name: "chart.png", Status: turn.StatusRemote},
			{Kind: turn.KindFile, OriginalURL: turn.PlaceholderScheme + "file-DupNoise1234", FileID: "file-DupNoise1234", Status: turn.StatusRemote},
		},
	}}
	m := New(stubFetcher{ok: map[string]bool{imgURL: true}})
	if err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil); err != nil {
		t.Fatalf("strict Run: %v", err)
	}
	if len(turns[0].Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1 after pruning", len(turns[0].Attachments))
	}
	if turns[0].Attachments[0].Status != turn.StatusCached {
		t.Errorf("status = %q, want cached", turns[0].Attachments[0].Status)
	}
}

// WHAT: inline data and policy-excluded links are not fetched.
func TestMaterialize_SkipsInlineAndExcluded(t *testing.T) {
	turns := []turn.Turn{{
		Role:            turn.RoleUser,
		ContentMarkdown: "x",
		Attachments: []turn.Attachment{
			{Kind: turn.KindImage, OriginalURL: "data:image/png;base64,AAAA", Status: turn.StatusRemote},
			{Kind: turn.KindFile, OriginalURL: "https://drive.google.com/file/d/abc", Status: turn.StatusRemote},
		},
	}}
	m := New(NewHTTPFetcher("", ""), WithRequired(func(_ turn.Source, a turn.Attachment) bool {
		return !strings.Contains(a.OriginalURL, "drive.google.com")
	}))
	if err := m.Run(context.Background(), turn.SourceChatGPT, turns, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if turns[0].Attachments[0].Status != turn.StatusCached {
		t.Errorf("inline status = %q, want cached", turns[0].Attachments[0].Status)
	}
	if turns[0].Attachments[1].Status != turn.StatusRemote {
		t.Errorf("excluded status = %q, want remote_only", turns[0].Attachments[1].Status)
	}
}
