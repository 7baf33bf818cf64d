package extract

import "strings"

// domainKeywords mark text as belonging to the agritech subject domain. Name
// candidates from the stricter cascade families must contain one of these.
var domainKeywords = []string{
	"agri", "agro", "farm", "crop", "soil", "seed", "harvest", "livestock",
	"dairy", "greenhouse", "hydroponic", "aquaponic", "vertical farming",
	"precision farming", "precision agriculture", "irrigation", "agtech",
	"agritech", "food tech", "foodtech", "biotech", "horticulture",
	"aquaculture", "agronomy", "fertilizer", "pesticide", "biologicals",
}

// companySuffixes is the vocabulary of trailing tokens that make a capitalized
// phrase look like a company name even without a domain keyword.
var companySuffixes = []string{
	"Tech", "Technologies", "Labs", "Systems", "Solutions", "Ventures",
	"Robotics", "Analytics", "Sciences", "Bio", "AI", "Ag", "Farms",
	"Genetics", "Dynamics", "Works", "Group", "Inc", "Ltd", "GmbH", "BV",
}

// excludedNames is the noise vocabulary: navigation chrome, generic media and
// job-site terms, and social platforms that pattern families routinely catch.
var excludedNames = []string{
	"home", "about", "about us", "contact", "contact us", "privacy policy",
	"terms of service", "cookie policy", "sign in", "sign up", "log in",
	"login", "register", "subscribe", "newsletter", "menu", "search",
	"read more", "learn more", "view all", "see all", "next", "previous",
	"categories", "tags", "archive", "blog", "news", "events", "press",
	"careers", "jobs", "apply now", "job board", "all rights reserved",
	"techcrunch", "forbes", "bloomberg", "reuters", "business insider",
	"linkedin", "twitter", "facebook", "instagram", "youtube", "tiktok",
	"medium", "substack", "crunchbase", "pitchbook", "angellist",
}

// socialHosts are never acceptable as a company website.
var socialHosts = []string{
	"linkedin.com", "twitter.com", "x.com", "facebook.com", "instagram.com",
	"youtube.com", "tiktok.com", "medium.com", "github.com", "pinterest.com",
}

// websiteSuffixes is the TLD allowlist for extracted website URLs.
var websiteSuffixes = []string{
	".com", ".io", ".co", ".net", ".org", ".ag", ".farm", ".bio", ".tech",
	".nl", ".de", ".fr", ".uk", ".in", ".au", ".ca", ".eu",
}

// emailStoplist filters out placeholder and machine addresses.
var emailStoplist = []string{
	"noreply", "no-reply", "donotreply", "example", "test", "demo",
	"sample", "placeholder", "sentry", "wixpress", "godaddy", "cloudflare",
	"yourdomain", "domain.com", "email.com", "webmaster",
}

// containsDomainKeyword reports whether text mentions any subject-domain term.
func containsDomainKeyword(text string) bool {
	return countDomainKeywords(text) > 0
}

// countDomainKeywords counts distinct subject-domain terms present in text.
func countDomainKeywords(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// hasCompanySuffix reports whether any word of name is in the company-suffix
// vocabulary.
func hasCompanySuffix(name string) bool {
	for _, w := range strings.Fields(name) {
		trimmed := strings.Trim(w, ".,()")
		for _, suffix := range companySuffixes {
			if trimmed == suffix {
				return true
			}
		}
	}
	return false
}

// isSocialHost reports whether host belongs to a social platform.
func isSocialHost(host string) bool {
	host = strings.ToLower(host)
	for _, s := range socialHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
