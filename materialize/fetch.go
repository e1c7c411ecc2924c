// CLAUDE:SUMMARY Fetch capability: credentialed HTTP fetcher turning remote URLs into inline data.
package materialize

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/convocap/attach"
)

// FetchTimeout bounds every single download attempt. One slow candidate
// must not stall the whole capture.
const FetchTimeout = 7 * time.Second

// MaxBodyBytes is the inline-data ceiling. Bodies beyond it are refused
// rather than truncated.
const MaxBodyBytes = 64 << 20

// ProbeResult is the lightweight diagnostic view of a candidate URL.
type ProbeResult struct {
	Status        int
	ContentType   string
	ContentLength int64
}

// FetchCapability resolves a URL to self-contained inline data. The
// production implementation rides the capture session's cookies; tests
// substitute their own.
type FetchCapability interface {
	// FetchInline downloads url and returns it as a data: URI plus the
	// observed content type. JSON and HTML bodies are refused: hosts
	// answer bad file requests with 200-status error pages.
	FetchInline(ctx context.Context, url string) (dataURI, contentType string, err error)
	// Probe issues a metadata-only request. Diagnostic use; failures
	// are reported, never fatal.
	Probe(ctx context.Context, url string) (ProbeResult, error)
}

// HTTPFetcher is the default FetchCapability: a plain HTTP client
// carrying the browser session's cookies so host-gated download
// endpoints accept it.
type HTTPFetcher struct {
	Client *http.Client
	Header http.Header
}

// NewHTTPFetcher builds a fetcher with the given Cookie header value and
// user agent; either may be empty.
func NewHTTPFetcher(cookie, userAgent string) *HTTPFetcher {
	h := http.Header{}
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return &HTTPFetcher{
		Client: &http.Client{Timeout: FetchTimeout},
		Header: h,
	}
}

// rejectedContentTypes are body types that signal an error page rather
// than file content.
var rejectedContentTypes = []string{"application/json", "text/html"}

func rejectedType(ct string) bool {
	ct = strings.ToLower(ct)
	for _, r := range rejectedContentTypes {
		if strings.HasPrefix(ct, r) {
			return true
		}
	}
	return false
}

func (f *HTTPFetcher) FetchInline(ctx context.Context, url string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("materialize: build request: %w", err)
	}
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("materialize: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("materialize: fetch %s: status %d", url, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if rejectedType(ct) {
		return "", "", fmt.Errorf("materialize: fetch %s: content-type %q is an error page, not a file", url, ct)
	}
	if resp.ContentLength > MaxBodyBytes {
		return "", "", fmt.Errorf("materialize: fetch %s: body %d bytes exceeds ceiling", url, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("materialize: read %s: %w", url, err)
	}
	if len(body) > MaxBodyBytes {
		return "", "", fmt.Errorf("materialize: fetch %s: body exceeds %d-byte ceiling", url, MaxBodyBytes)
	}
	if len(body) == 0 {
		return "", "", fmt.Errorf("materialize: fetch %s: empty body", url)
	}

	mime := ct
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if sniffed := attach.SniffKind(body); sniffed != "" {
		// The bytes outrank the header; hosts mislabel file bodies.
		mime = sniffed
	}
	if mime == "application/pdf" && !attach.ValidPDF(body) {
		return "", "", fmt.Errorf("materialize: fetch %s: body labeled pdf is not a valid pdf", url)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	data := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body)
	return data, mime, nil
}

func (f *HTTPFetcher) Probe(ctx context.Context, url string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("materialize: build probe: %w", err)
	}
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("materialize: probe %s: %w", url, err)
	}
	resp.Body.Close()
	return ProbeResult{
		Status:        resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}
