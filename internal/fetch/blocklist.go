package fetch

import "strings"

// defaultBlockedHosts are hosts known to wall off unauthenticated scrapers
// with 403s, captchas, or login redirects. Fetches to them are skipped before
// any network call.
var defaultBlockedHosts = []string{
	"crunchbase.com",
	"www.crunchbase.com",
	"pitchbook.com",
	"linkedin.com",
	"angel.co",
	"wellfound.com",
	"glassdoor.com",
	"facebook.com",
	"instagram.com",
	"x.com",
	"twitter.com",
}

// Blocklist matches request hosts against a suffix list.
type Blocklist struct {
	hosts []string
}

// NewBlocklist builds a Blocklist from host suffixes, falling back to the
// default set when none are given.
func NewBlocklist(hosts []string) *Blocklist {
	if len(hosts) == 0 {
		hosts = defaultBlockedHosts
	}
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return &Blocklist{hosts: out}
}

// Matches reports whether host (optionally with port) is blocklisted. A
// blocklist entry matches the host itself and any subdomain of it.
func (b *Blocklist) Matches(host string) bool {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	for _, blocked := range b.hosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// Hosts returns the configured host suffixes.
func (b *Blocklist) Hosts() []string { return b.hosts }
