// CLAUDE:SUMMARY Attachment model: kinds, statuses, semantic identity, and merge rules.
package turn

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Kind classifies an attachment by payload type.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindFile  Kind = "file"
)

// Score ranks kinds by specificity. Merges never downgrade: pdf beats
// image beats file.
func (k Kind) Score() int {
	switch k {
	case KindPDF:
		return 2
	case KindImage:
		return 1
	default:
		return 0
	}
}

// Status tracks an attachment through its materialization lifecycle.
// remote_only -> cached once content is inlined, or -> failed when a
// required attachment could not be resolved. Never reverts.
type Status string

const (
	StatusRemote Status = "remote_only"
	StatusCached Status = "cached"
	StatusFailed Status = "failed"
)

// PlaceholderScheme prefixes OriginalURL when no real link was ever
// observed for a named file; the rest of the URI is the filename.
const PlaceholderScheme = "attachment://"

// dataPrefixLen bounds how much of an inline payload participates in the
// semantic key. Enough to distinguish distinct files, cheap to hash.
const dataPrefixLen = 512

// Attachment references a file discovered in a turn. OriginalURL is an
// absolute URL, a data: URI once materialized, or a placeholder URI
// carrying only a filename.
type Attachment struct {
	Kind        Kind   `json:"kind"`
	OriginalURL string `json:"original_url"`
	Name        string `json:"name,omitempty"`
	Mime        string `json:"mime,omitempty"`
	Status      Status `json:"status"`
	// FileID is the mined backend file identifier, when one is known.
	// It dominates semantic identity.
	FileID string `json:"file_id,omitempty"`
}

// IsInline reports whether the attachment already carries self-contained
// encoded data.
func (a *Attachment) IsInline() bool {
	return strings.HasPrefix(a.OriginalURL, "data:")
}

// IsPlaceholder reports whether the attachment has only a filename and no
// observed link.
func (a *Attachment) IsPlaceholder() bool {
	return strings.HasPrefix(a.OriginalURL, PlaceholderScheme)
}

// PlaceholderName returns the filename carried by a placeholder URI, or "".
func (a *Attachment) PlaceholderName() string {
	if !a.IsPlaceholder() {
		return ""
	}
	return strings.TrimPrefix(a.OriginalURL, PlaceholderScheme)
}

// SemanticKey derives the deduplication identity: the backend file ID when
// known, else a digest of the inline payload prefix, else the literal URL.
func (a *Attachment) SemanticKey() string {
	if a.FileID != "" {
		return "id:" + a.FileID
	}
	if a.IsInline() {
		prefix := a.OriginalURL
		if len(prefix) > dataPrefixLen {
			prefix = prefix[:dataPrefixLen]
		}
		sum := blake2b.Sum256([]byte(prefix))
		return "data:" + hex.EncodeToString(sum[:16])
	}
	return "url:" + a.OriginalURL
}

// Merge folds another attachment for the same entity into this one. The
// more specific kind wins, mime is backfilled but never cleared, and the
// lifecycle only moves forward (a cached side is kept over anything, a
// failed side only overrides remote_only).
func (a *Attachment) Merge(b Attachment) {
	if b.Kind.Score() > a.Kind.Score() {
		a.Kind = b.Kind
	}
	if a.Mime == "" {
		a.Mime = b.Mime
	}
	if a.Name == "" {
		a.Name = b.Name
	}
	if a.FileID == "" {
		a.FileID = b.FileID
	}
	// A real or inline URL beats a placeholder.
	if a.IsPlaceholder() && !b.IsPlaceholder() && b.OriginalURL != "" {
		a.OriginalURL = b.OriginalURL
	}
	if statusRank(b.Status) > statusRank(a.Status) {
		a.Status = b.Status
	}
}

func statusRank(s Status) int {
	switch s {
	case StatusCached:
		return 2
	case StatusFailed:
		return 1
	default:
		return 0
	}
}
