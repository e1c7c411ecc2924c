// CLAUDE:SUMMARY Stateless attachment classification: kind and mime from URL, label, and host signals.
// Package attach classifies attachment candidates. All functions here are
// pure and total: any input yields a classification, never an error.
package attach

import (
	"net/url"
	"path"
	"strings"

	"github.com/hazyhaar/convocap/turn"
)

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".avif": "image/avif",
	".ico":  "image/x-icon",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

var fileExts = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".py":   "text/x-python",
	".go":   "text/x-go",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".html": "text/html",
	".css":  "text/css",
	".log":  "text/plain",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".tsv":  "text/tab-separated-values",
}

// deliveryHosts are content-delivery endpoints the chat hosts serve user
// files from. A URL on one of these is an attachment even without a file
// extension in the path.
var deliveryHosts = []string{
	"files.oaiusercontent.com",
	"sdmntpr", // Azure blob shard prefixes used by ChatGPT file delivery
	"oaiusercontent.com",
	"googleusercontent.com",
	"usercontent.google.com",
	"claude.ai/api",
	"anthropic.com/api",
}

// deliveryPathFragments mark backend download routes independent of host.
var deliveryPathFragments = []string{
	"/backend-api/files/",
	"/backend-api/estuary/content",
	"/api/convos/",
	"/download",
	"/attachments/",
	"/files/",
}

// Classify determines attachment kind and probable mime type by priority:
// explicit inline-data mime, then label extension, then URL path extension,
// then host delivery-endpoint signals. Falls back to (file, "").
func Classify(rawURL, label, mimeHint string) (turn.Kind, string) {
	if mimeHint != "" {
		return kindForMime(mimeHint), mimeHint
	}
	if strings.HasPrefix(rawURL, "data:") {
		if m := dataURIMime(rawURL); m != "" {
			return kindForMime(m), m
		}
	}
	if k, m, ok := classifyByName(label); ok {
		return k, m
	}
	if k, m, ok := classifyByName(urlPath(rawURL)); ok {
		return k, m
	}
	if LooksLikeImageURL(rawURL) {
		return turn.KindImage, ""
	}
	if LooksLikePDFURL(rawURL) {
		return turn.KindPDF, "application/pdf"
	}
	return turn.KindFile, ""
}

// LooksLikeFileURL reports whether the URL plausibly references a
// downloadable file of any kind.
func LooksLikeFileURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if strings.HasPrefix(rawURL, "data:") {
		return true
	}
	lower := strings.ToLower(rawURL)
	if _, _, ok := classifyByName(urlPath(lower)); ok {
		return true
	}
	for _, h := range deliveryHosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	for _, p := range deliveryPathFragments {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// LooksLikeImageURL reports whether the URL plausibly references an image.
func LooksLikeImageURL(rawURL string) bool {
	if strings.HasPrefix(rawURL, "data:image/") {
		return true
	}
	lower := strings.ToLower(rawURL)
	ext := path.Ext(urlPath(lower))
	if _, ok := imageExts[ext]; ok {
		return true
	}
	// Google image CDN serves images without extensions.
	if strings.Contains(lower, "googleusercontent.com") &&
		!strings.Contains(lower, "/download") {
		return true
	}
	return false
}

// LooksLikePDFURL reports whether the URL plausibly references a PDF.
func LooksLikePDFURL(rawURL string) bool {
	if strings.HasPrefix(rawURL, "data:application/pdf") {
		return true
	}
	lower := strings.ToLower(rawURL)
	return strings.HasSuffix(path.Ext(urlPath(lower)), ".pdf")
}

func classifyByName(name string) (turn.Kind, string, bool) {
	if name == "" {
		return turn.KindFile, "", false
	}
	ext := strings.ToLower(path.Ext(name))
	if m, ok := imageExts[ext]; ok {
		return turn.KindImage, m, true
	}
	if ext == ".pdf" {
		return turn.KindPDF, "application/pdf", true
	}
	if m, ok := fileExts[ext]; ok {
		return turn.KindFile, m, true
	}
	return turn.KindFile, "", false
}

func kindForMime(mime string) turn.Kind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return turn.KindImage
	case strings.HasPrefix(mime, "application/pdf"):
		return turn.KindPDF
	default:
		return turn.KindFile
	}
}

// dataURIMime extracts the mime type from a data: URI, or "".
func dataURIMime(u string) string {
	rest := strings.TrimPrefix(u, "data:")
	end := strings.IndexAny(rest, ";,")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// urlPath returns the path component of a URL, tolerating malformed input.
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		// Strip query/fragment by hand as a last resort.
		s := rawURL
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		return s
	}
	return u.Path
}
