package extract

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// phoneRes covers the four formats seen in the wild: international with
// country code, US dashed/dotted, parenthesized area code, and space-grouped
// European numbers.
var phoneRes = []*regexp.Regexp{
	regexp.MustCompile(`\+\d{1,3}[\s.\-]?\(?\d{1,4}\)?[\s.\-]?\d{2,4}[\s.\-]?\d{2,4}[\s.\-]?\d{0,4}`),
	regexp.MustCompile(`\b\d{3}[.\-]\d{3}[.\-]\d{4}\b`),
	regexp.MustCompile(`\(\d{3}\)[\s.\-]?\d{3}[.\-]?\d{4}`),
	regexp.MustCompile(`\b\d{2,4}\s\d{2,4}\s\d{2,4}\s?\d{0,4}\b`),
}

var linkedinRe = regexp.MustCompile(`https?://(?:[a-z]{2,3}\.)?linkedin\.com/(?:company|in)/[A-Za-z0-9\-_%.]+`)

// Emails extracts email addresses from raw text, filtering the stoplist and
// implausible lengths, deduplicated in first-seen order.
func Emails(text string) []string {
	matches := emailRe.FindAllString(text, -1)
	seen := make(map[string]struct{})
	var out []string
	for _, m := range matches {
		email := strings.ToLower(strings.Trim(m, "."))
		if len(email) < 6 || len(email) > 100 {
			continue
		}
		if stoplisted(email) {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

func stoplisted(email string) bool {
	for _, s := range emailStoplist {
		if strings.Contains(email, s) {
			return true
		}
	}
	return false
}

// Phones extracts phone numbers from raw text. Matches outside 10-20
// characters after trimming are dropped; duplicates collapse on their digit
// sequence.
func Phones(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, re := range phoneRes {
		for _, m := range re.FindAllString(text, -1) {
			phone := strings.TrimSpace(m)
			if len(phone) < 10 || len(phone) > 20 {
				continue
			}
			key := digitsOf(phone)
			if len(key) < 8 {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, phone)
		}
	}
	return out
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LinkedInURLs extracts linkedin.com/company/ and /in/ profile URLs.
func LinkedInURLs(text string) []string {
	matches := linkedinRe.FindAllString(text, -1)
	seen := make(map[string]struct{})
	var out []string
	for _, m := range matches {
		u := strings.TrimRight(m, "/.")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
