// CLAUDE:SUMMARY Core data model: conversation turns, attachments, and the capture payload.
// Package turn defines the data model shared by the capture pipeline:
// conversation turns, their attachments, and the assembled payload handed
// to the storage layer.
package turn

import (
	"strings"
	"time"
)

// Role attributes a turn to a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Source identifies the host application a capture came from.
type Source string

const (
	SourceChatGPT  Source = "chatgpt"
	SourceGemini   Source = "gemini"
	SourceAIStudio Source = "aistudio"
	SourceClaude   Source = "claude"

	// SourceGeneric is the fallback for pages whose host is not
	// recognized; extraction still runs with the structural tiers.
	SourceGeneric Source = "generic"
)

// SourceForURL maps a page URL to its capture source.
func SourceForURL(rawURL string) Source {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "chatgpt.com"), strings.Contains(u, "chat.openai.com"):
		return SourceChatGPT
	case strings.Contains(u, "aistudio.google.com"):
		return SourceAIStudio
	case strings.Contains(u, "gemini.google.com"):
		return SourceGemini
	case strings.Contains(u, "claude.ai"):
		return SourceClaude
	default:
		return SourceGeneric
	}
}

// Sources lists all supported capture sources.
func Sources() []Source {
	return []Source{SourceChatGPT, SourceGemini, SourceAIStudio, SourceClaude}
}

// PlaceholderContent is emitted as a turn's content when the turn carries
// attachments but no recoverable text. Turns with neither are dropped.
const PlaceholderContent = "[attachment]"

// SchemaVersion is the payload schema version stamped on every capture.
const SchemaVersion = 2

// Turn is one message in a captured conversation. Attachments are in
// discovery order and semantically deduplicated. A Turn is created by an
// extractor, enriched in place by the materializer, and immutable after
// payload assembly.
type Turn struct {
	Role             Role         `json:"role"`
	ContentMarkdown  string       `json:"content_markdown"`
	ThoughtMarkdown  string       `json:"thought_markdown,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Model            string       `json:"model,omitempty"`
	Timestamp        *time.Time   `json:"timestamp,omitempty"`
}

// Empty reports whether the turn has neither text nor attachments and
// should be dropped instead of emitted.
func (t *Turn) Empty() bool {
	return strings.TrimSpace(t.ContentMarkdown) == "" && len(t.Attachments) == 0
}

// DedupKey is the identity under which duplicate renders of the same turn
// are merged: role plus whitespace-normalized content.
func (t *Turn) DedupKey() string {
	return string(t.Role) + "\x00" + normalizeKey(t.ContentMarkdown)
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AddAttachment appends a candidate, merging it into an existing
// attachment when the semantic keys collide. Discovery order is preserved.
func (t *Turn) AddAttachment(a Attachment) {
	key := a.SemanticKey()
	for i := range t.Attachments {
		if t.Attachments[i].SemanticKey() == key {
			t.Attachments[i].Merge(a)
			return
		}
	}
	t.Attachments = append(t.Attachments, a)
}

// Payload is the unit handed across the system boundary to storage.
// Immutable once assembled.
type Payload struct {
	Source     Source    `json:"source"`
	PageURL    string    `json:"page_url"`
	Title      string    `json:"title"`
	Turns      []Turn    `json:"turns"`
	CapturedAt time.Time `json:"captured_at"`
	Version    int       `json:"version"`
}

// Dedup collapses turns that share a DedupKey, merging attachments and
// metadata of later duplicates into the first occurrence. Hosts render the
// same turn more than once during incremental rendering; document order of
// first occurrence is preserved.
func Dedup(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	index := make(map[string]int, len(turns))

	for _, t := range turns {
		key := t.DedupKey()
		if i, ok := index[key]; ok {
			first := &out[i]
			for _, a := range t.Attachments {
				first.AddAttachment(a)
			}
			if first.Model == "" {
				first.Model = t.Model
			}
			if first.Timestamp == nil {
				first.Timestamp = t.Timestamp
			}
			if first.ThoughtMarkdown == "" {
				first.ThoughtMarkdown = t.ThoughtMarkdown
			}
			continue
		}
		index[key] = len(out)
		out = append(out, t)
	}
	return out
}
