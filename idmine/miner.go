// CLAUDE:SUMMARY Mines opaque file/post/conversation identifiers from strings and framework state.
// Package idmine recovers the opaque identifiers chat hosts hide real
// download URLs behind. It scans arbitrary strings, attribute values, and
// dumps of UI-framework internal state for file, post, and conversation
// identifiers, and builds the bounded set of plausible backend download
// URLs for each mined file ID.
package idmine

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IDKind distinguishes what an identifier names.
type IDKind int

const (
	IDFile IDKind = iota
	IDPost
	IDConversation
)

// Match is one mined identifier with the kind the surrounding context
// assigned to it.
type Match struct {
	Kind  IDKind
	Value string
}

var (
	// Host-prefixed file identifiers are unambiguous regardless of context.
	filePrefixPattern = regexp.MustCompile(`\bfile[-_][A-Za-z0-9]{8,64}\b`)
	uuidPattern       = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
)

// Key-context vocabularies. A UUID is only ever a file ID when the key it
// was found under says so; the same value under a conversation-ish key is
// a conversation ID and must never be treated as a file.
var (
	fileKeyHints = []string{"file_id", "fileid", "file-id", "asset", "attachment", "media", "image_id", "document"}
	convKeyHints = []string{"conversation", "conv_id", "thread", "chat_id", "session"}
	postKeyHints = []string{"message", "post", "turn_id", "parent_id", "node_id"}
)

// Miner accumulates identifiers in first-discovery order. PageConvID is
// the current page's own conversation identifier; any UUID equal to it is
// excluded from file-ID results no matter the context.
type Miner struct {
	PageConvID string

	order []Match
	seen  map[string]bool
	// convScoped holds UUIDs observed only in conversation-scoped network
	// traffic; they are suppressed as file IDs.
	convScoped map[string]bool
}

// New creates a Miner for a page whose own conversation ID, if known,
// is excluded from mining results.
func New(pageConvID string) *Miner {
	return &Miner{
		PageConvID: strings.ToLower(pageConvID),
		seen:       make(map[string]bool),
		convScoped: make(map[string]bool),
	}
}

// MarkConversationScoped records that an identifier was seen only in
// conversation-scoped traffic and must not be treated as a file ID.
func (m *Miner) MarkConversationScoped(id string) {
	m.convScoped[strings.ToLower(id)] = true
}

// ScanTraffic processes tracked request URLs. UUIDs that appear only in
// conversation-scoped requests are marked so they never surface as file
// IDs; then every URL is scanned with the matching key hint. convScoped
// classifies a URL as conversation traffic.
func (m *Miner) ScanTraffic(urls []string, convScoped func(string) bool) {
	inConv := map[string]bool{}
	elsewhere := map[string]bool{}
	for _, u := range urls {
		for _, v := range uuidPattern.FindAllString(u, -1) {
			if convScoped(u) {
				inConv[strings.ToLower(v)] = true
			} else {
				elsewhere[strings.ToLower(v)] = true
			}
		}
	}
	for id := range inConv {
		if !elsewhere[id] {
			m.MarkConversationScoped(id)
		}
	}
	for _, u := range urls {
		hint := ""
		if convScoped(u) {
			hint = "conversation"
		}
		m.Scan(u, hint)
	}
}

// Scan mines identifiers out of one string. keyHint is the name of the
// field or attribute the string was found under, or "" when unknown; it
// decides whether UUID-shaped values may be file IDs.
func (m *Miner) Scan(s, keyHint string) {
	if s == "" {
		return
	}
	for _, v := range filePrefixPattern.FindAllString(s, -1) {
		m.add(Match{Kind: IDFile, Value: v})
	}
	hint := strings.ToLower(keyHint)
	for _, v := range uuidPattern.FindAllString(s, -1) {
		if _, err := uuid.Parse(v); err != nil {
			continue
		}
		lower := strings.ToLower(v)
		switch {
		case lower == m.PageConvID || m.convScoped[lower]:
			// The page's own conversation ID (or traffic-only IDs) are
			// never files, whatever the key claims.
			m.add(Match{Kind: IDConversation, Value: lower})
		case hintMatches(hint, convKeyHints):
			m.add(Match{Kind: IDConversation, Value: lower})
		case hintMatches(hint, postKeyHints):
			m.add(Match{Kind: IDPost, Value: lower})
		case hintMatches(hint, fileKeyHints):
			m.add(Match{Kind: IDFile, Value: lower})
		default:
			// Bare UUIDs with no context stay ambiguous: record as post
			// IDs so they can parameterize candidate URLs, not name files.
			m.add(Match{Kind: IDPost, Value: lower})
		}
	}
}

func hintMatches(hint string, vocab []string) bool {
	if hint == "" {
		return false
	}
	for _, v := range vocab {
		if strings.Contains(hint, v) {
			return true
		}
	}
	return false
}

func (m *Miner) add(match Match) {
	key := string(rune('0'+match.Kind)) + ":" + match.Value
	if m.seen[key] {
		return
	}
	m.seen[key] = true
	m.order = append(m.order, match)
}

// FileIDs returns mined file identifiers in first-discovery order.
func (m *Miner) FileIDs() []string { return m.values(IDFile) }

// PostIDs returns mined post/message identifiers in first-discovery order.
func (m *Miner) PostIDs() []string { return m.values(IDPost) }

// ConversationIDs returns mined conversation identifiers in
// first-discovery order.
func (m *Miner) ConversationIDs() []string { return m.values(IDConversation) }

func (m *Miner) values(kind IDKind) []string {
	var out []string
	for _, match := range m.order {
		if match.Kind == kind {
			out = append(out, match.Value)
		}
	}
	return out
}
