// Package extract turns raw HTML from directory and news pages into candidate
// startup records. Extraction is a cascade of pattern families, each more
// permissive than the last, with every match passing a noise filter before it
// becomes a candidate.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/agscout/agscout/internal/model"
)

// minPageBytes is the guard below which a page is treated as blocked or empty
// and extraction is skipped entirely.
const minPageBytes = 1000

// defaultMaxCandidates caps the ranked names taken from one page.
const defaultMaxCandidates = 6

// Config controls extraction behavior.
type Config struct {
	// Synthesize enables fabricating a plausible website/description for
	// candidates that lack one. Synthesized fields are flagged low confidence
	// in metadata and never presented as scraped fact.
	Synthesize bool

	// MaxCandidates caps candidates per page. Default 6.
	MaxCandidates int

	// Industry tags produced records. Default "AgTech".
	Industry string
}

// Extractor is a stateless HTML-to-candidate extractor. Safe for concurrent use.
type Extractor struct {
	cfg Config
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultMaxCandidates
	}
	if cfg.Industry == "" {
		cfg.Industry = "AgTech"
	}
	return &Extractor{cfg: cfg}
}

var (
	nameFieldRe = regexp.MustCompile(`"(?:name|company)"\s*:\s*"([^"]{2,100})"`)
	descFieldRe = regexp.MustCompile(`"(?:description|summary)"\s*:\s*"([^"]{30,500})"`)
	siteFieldRe = regexp.MustCompile(`"(?:website|url)"\s*:\s*"(https?://[^"]+)"`)

	camelCaseRe   = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+\b`)
	numeralNameRe = regexp.MustCompile(`\b(?:[A-Z][A-Za-z]+\s){1,3}[A-Z0-9][A-Za-z]*\d[A-Za-z0-9]*\b`)

	foundedRe  = regexp.MustCompile(`(?i)(?:founded|established|est\.?|since)\s*(?:in\s*)?((?:19|20)\d{2})`)
	fundingRe  = regexp.MustCompile(`(?i)\b(pre-seed|seed|series [a-d]|bootstrapped|grant-funded)\b`)
	employeeRe = regexp.MustCompile(`(?i)\b(\d{1,5})\+?\s*(?:employees|people|team members)\b`)

	wsRe = regexp.MustCompile(`\s+`)
)

// Extract parses one page into ranked candidate records. Pages under 1KB
// return nil: that size almost always means a block page or an empty shell,
// and downstream work on it is wasted.
func (e *Extractor) Extract(html, sourceURL string) []model.CandidateRecord {
	if len(html) < minPageBytes {
		zap.L().Debug("extract: page below size guard, skipping",
			zap.String("source", sourceURL),
			zap.Int("bytes", len(html)),
		)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Debug("extract: html parse failed", zap.String("source", sourceURL), zap.Error(err))
		return nil
	}

	text := normalizeSpace(doc.Text())

	names := e.rankedNames(html, doc)
	if len(names) == 0 {
		return nil
	}

	descriptions := e.descriptions(html, doc)
	websites := e.websites(html, doc, sourceURL)
	city, country := inferLocation(text, sourceURL)
	sourceName := hostOf(sourceURL)

	contact := pageContact(text)
	founded := firstGroup(foundedRe, text)
	funding := strings.ToLower(firstGroup(fundingRe, text))
	employees := firstGroup(employeeRe, text)

	records := make([]model.CandidateRecord, 0, len(names))
	usedSites := make(map[int]bool)
	usedDescs := make(map[int]bool)

	for _, n := range names {
		rec := model.CandidateRecord{
			Name:     n.name,
			Industry: e.cfg.Industry,
			City:     city,
			Country:  country,
		}

		meta := rec.Meta()
		meta["source"] = sourceName
		meta["pattern_family"] = n.family
		meta["confidence"] = "high"
		if founded != "" {
			meta["founded_year"] = founded
		}
		if funding != "" {
			meta["funding_stage"] = funding
		}
		if employees != "" {
			meta["employee_count"] = employees
		}

		if i := pickWebsite(n.name, websites, usedSites); i >= 0 {
			rec.Website = websites[i]
			usedSites[i] = true
		} else if e.cfg.Synthesize {
			rec.Website = synthesizeWebsite(n.name)
			meta["synthesized_website"] = true
			meta["confidence"] = "low"
		}

		if i := pickDescription(descriptions, usedDescs); i >= 0 {
			rec.Description = descriptions[i]
			usedDescs[i] = true
		} else if e.cfg.Synthesize {
			rec.Description = synthesizeDescription(n.name, e.cfg.Industry)
			meta["synthesized_description"] = true
			meta["confidence"] = "low"
		}

		if contact != nil {
			rec.ContactInfo = contact
		}

		records = append(records, rec)
	}

	zap.L().Debug("extract: page processed",
		zap.String("source", sourceURL),
		zap.Int("candidates", len(records)),
	)
	return records
}

type rankedName struct {
	name   string
	family string
}

// rankedNames runs the four pattern families in priority order, filters noise,
// and caps the result. Earlier families rank higher; order within a family is
// document order.
func (e *Extractor) rankedNames(html string, doc *goquery.Document) []rankedName {
	seen := make(map[string]struct{})
	var out []rankedName

	add := func(raw, family string) {
		name := normalizeSpace(raw)
		if !AcceptName(name, family == "suffix" || family == "shape") {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, rankedName{name: name, family: family})
	}

	// Family 1: structured-data fields that mention the subject domain.
	for _, m := range nameFieldRe.FindAllStringSubmatch(html, -1) {
		if containsDomainKeyword(m[1]) {
			add(m[1], "structured")
		}
	}

	// Family 2: semantic containers, still requiring a domain keyword.
	doc.Find(`h1, h2, h3, h4, [class*="company"], [class*="startup"], [class*="name"], [class*="title"]`).
		Each(func(_ int, s *goquery.Selection) {
			t := s.Text()
			if containsDomainKeyword(t) {
				add(t, "semantic")
			}
		})

	// Family 3: headings and anchors shaped like a company name, keyword not
	// required.
	doc.Find("h1, h2, h3, h4, h5, h6, a").Each(func(_ int, s *goquery.Selection) {
		t := normalizeSpace(s.Text())
		if hasCompanySuffix(t) {
			add(t, "suffix")
		}
	})

	// Family 4: last resort, CamelCase and numeral-bearing capitalized phrases
	// anywhere in the text.
	if len(out) < e.cfg.MaxCandidates {
		text := doc.Text()
		for _, m := range camelCaseRe.FindAllString(text, -1) {
			add(m, "shape")
		}
		for _, m := range numeralNameRe.FindAllString(text, -1) {
			add(m, "shape")
		}
	}

	if len(out) > e.cfg.MaxCandidates {
		out = out[:e.cfg.MaxCandidates]
	}
	return out
}

// AcceptName is the noise filter every cascade match passes through. relaxed
// is set for the permissive families, whose matches already carry a
// company-like shape.
func AcceptName(name string, relaxed bool) bool {
	if l := len(name); l < 3 || l > 100 {
		return false
	}

	words := strings.Fields(name)

	// Single short words are almost always nav links.
	if len(words) == 1 && len(name) < 6 {
		return false
	}

	lower := strings.ToLower(name)
	for _, ex := range excludedNames {
		if lower == ex {
			return false
		}
		if len(ex) >= 5 && strings.Contains(lower, ex) {
			return false
		}
	}

	// Two plain capitalized words look like a person's name unless the text
	// also carries a domain keyword.
	if looksLikePersonName(words) && !containsDomainKeyword(name) {
		return false
	}

	if relaxed {
		return true
	}

	return containsDomainKeyword(name) || companyShape(name, words)
}

var plainCapRe = regexp.MustCompile(`^[A-Z][a-z]+$`)

func looksLikePersonName(words []string) bool {
	if len(words) != 2 {
		return false
	}
	return plainCapRe.MatchString(words[0]) && plainCapRe.MatchString(words[1]) &&
		!hasCompanySuffix(strings.Join(words, " "))
}

// companyShape accepts multi-word capitalized phrases, suffix-vocabulary
// names, CamelCase compounds, and numeral-bearing names.
func companyShape(name string, words []string) bool {
	if hasCompanySuffix(name) {
		return true
	}
	if camelCaseRe.MatchString(name) {
		return true
	}
	if strings.ContainsAny(name, "0123456789") {
		return true
	}
	if len(words) >= 2 && len(words) <= 4 {
		capped := 0
		for _, w := range words {
			if w[0] >= 'A' && w[0] <= 'Z' {
				capped++
			}
		}
		return capped >= 2
	}
	return false
}

// descriptions collects structured-data description fields and classed
// paragraph containers, bounded to [30,500] characters.
func (e *Extractor) descriptions(html string, doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		d := normalizeSpace(raw)
		if len(d) < 30 || len(d) > 500 {
			return
		}
		key := strings.ToLower(d[:30])
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}

	for _, m := range descFieldRe.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}

	doc.Find(`p[class*="desc"], div[class*="desc"], p[class*="about"], div[class*="about"], p[class*="summary"], div[class*="summary"], p[class*="tagline"], div[class*="bio"], p`).
		Each(func(_ int, s *goquery.Selection) {
			add(s.Text())
		})

	return out
}

// websites collects structured-data website fields and outbound anchor hrefs
// with an allowlisted TLD, excluding social platforms and the source host.
func (e *Extractor) websites(html string, doc *goquery.Document, sourceURL string) []string {
	sourceHost := hostOf(sourceURL)
	var out []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return
		}
		host := strings.ToLower(u.Hostname())
		if host == sourceHost || isSocialHost(host) || !allowedSuffix(host) {
			return
		}
		site := u.Scheme + "://" + u.Host
		if _, ok := seen[site]; ok {
			return
		}
		seen[site] = struct{}{}
		out = append(out, site)
	}

	for _, m := range siteFieldRe.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})

	return out
}

func allowedSuffix(host string) bool {
	for _, s := range websiteSuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// pickWebsite prefers a site whose host contains the candidate's name slug,
// then the first unused site. Returns -1 when nothing is available.
func pickWebsite(name string, sites []string, used map[int]bool) int {
	slug := slugOf(name)
	if len(slug) >= 4 {
		for i, s := range sites {
			if !used[i] && strings.Contains(strings.ToLower(s), slug) {
				return i
			}
		}
	}
	for i := range sites {
		if !used[i] {
			return i
		}
	}
	return -1
}

func pickDescription(descs []string, used map[int]bool) int {
	for i := range descs {
		if !used[i] {
			return i
		}
	}
	// Reuse the page-level best description rather than returning nothing.
	if len(descs) > 0 {
		return 0
	}
	return -1
}

// pageContact extracts discovery-time contact info from the page text.
// Returns nil when nothing was found.
func pageContact(text string) *model.ContactInfo {
	emails := Emails(text)
	phones := Phones(text)
	links := LinkedInURLs(text)
	if len(emails) == 0 && len(phones) == 0 && len(links) == 0 {
		return nil
	}
	ci := &model.ContactInfo{Emails: emails, Phones: phones}
	if len(links) > 0 {
		ci.LinkedInURL = links[0]
	}
	return ci
}

// slugOf lower-cases a name and strips everything non-alphanumeric.
func slugOf(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func synthesizeWebsite(name string) string {
	return fmt.Sprintf("https://www.%s.com", slugOf(name))
}

func synthesizeDescription(name, industry string) string {
	return fmt.Sprintf("%s is a %s startup discovered via public sources; no description was available on the source page.", name, industry)
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
