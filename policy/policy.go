// CLAUDE:SUMMARY Per-host attachment download policy: required vs link-only, loaded from YAML.
// Package policy decides which attachment candidates must be downloaded
// and which are deliberately left as hyperlinks. The rules encode
// undocumented host product behavior (cloud-drive links are shown, not
// ingested), so they live in a config file that can be corrected against
// live hosts without a rebuild. Compiled-in defaults apply when no file
// is given.
package policy

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/convocap/turn"
)

// HostPolicy is the per-host rule set.
type HostPolicy struct {
	// DownloadKinds lists the attachment kinds worth materializing for
	// the host. Empty means all kinds.
	DownloadKinds []string `yaml:"download_kinds"`
	// LinkOnlyDomains are domains the host UI links to but never serves
	// file bodies for; they stay hyperlinks.
	LinkOnlyDomains []string `yaml:"link_only_domains"`
}

// File is the on-disk policy shape.
type File struct {
	Defaults HostPolicy            `yaml:"defaults"`
	Hosts    map[string]HostPolicy `yaml:"hosts"`
}

// Policy answers required-vs-link-only questions for attachments. Safe
// for concurrent use; Reload swaps the rule set atomically.
type Policy struct {
	mu   sync.RWMutex
	file File
}

// defaultLinkOnlyDomains are cloud-drive and document-suite hosts whose
// links the chat UIs surface but never serve bodies for.
var defaultLinkOnlyDomains = []string{
	"drive.google.com",
	"docs.google.com",
	"dropbox.com",
	"onedrive.live.com",
	"sharepoint.com",
	"box.com",
}

// Default returns the compiled-in policy.
func Default() *Policy {
	return &Policy{file: File{
		Defaults: HostPolicy{LinkOnlyDomains: defaultLinkOnlyDomains},
		Hosts:    map[string]HostPolicy{},
	}}
}

// Load reads a policy file, layering it over the defaults.
func Load(path string) (*Policy, error) {
	p := Default()
	if err := p.Reload(path); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file and swaps the rule set. On parse failure the
// previous rules stay in force.
func (p *Policy) Reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("policy: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("policy: parse %s: %w", path, err)
	}
	if f.Hosts == nil {
		f.Hosts = map[string]HostPolicy{}
	}
	if len(f.Defaults.LinkOnlyDomains) == 0 {
		f.Defaults.LinkOnlyDomains = defaultLinkOnlyDomains
	}
	p.mu.Lock()
	p.file = f
	p.mu.Unlock()
	return nil
}

// Required reports whether the attachment must be materialized for the
// host. Inline data needs no download; link-only domains and excluded
// kinds stay hyperlinks; everything else, including bare placeholder
// identifiers, is required.
func (p *Policy) Required(src turn.Source, a turn.Attachment) bool {
	if a.IsInline() {
		return false
	}

	p.mu.RLock()
	rules := p.file.Defaults
	if h, ok := p.file.Hosts[string(src)]; ok {
		rules = merged(p.file.Defaults, h)
	}
	p.mu.RUnlock()

	for _, d := range rules.LinkOnlyDomains {
		if urlHasDomain(a.OriginalURL, d) {
			return false
		}
	}
	if len(rules.DownloadKinds) > 0 {
		ok := false
		for _, k := range rules.DownloadKinds {
			if string(a.Kind) == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func merged(def, host HostPolicy) HostPolicy {
	out := host
	if len(out.DownloadKinds) == 0 {
		out.DownloadKinds = def.DownloadKinds
	}
	out.LinkOnlyDomains = append(append([]string{}, def.LinkOnlyDomains...), host.LinkOnlyDomains...)
	return out
}

func urlHasDomain(rawURL, domain string) bool {
	u := strings.ToLower(rawURL)
	i := strings.Index(u, "://")
	if i < 0 {
		return false
	}
	host := u[i+3:]
	if j := strings.IndexAny(host, "/?#"); j >= 0 {
		host = host[:j]
	}
	if k := strings.IndexByte(host, '@'); k >= 0 {
		host = host[k+1:]
	}
	if k := strings.IndexByte(host, ':'); k >= 0 {
		host = host[:k]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
