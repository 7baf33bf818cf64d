package discover

import (
	"net/url"
	"strings"
)

// Tier is a priority group of source URLs tried in sequence during fallback.
type Tier struct {
	Name string
	URLs []string
}

// defaultTiers is the fallback walk order: accelerators first because their
// portfolio pages are dense with structured startup listings, search engines
// last because they are noisy.
var defaultTiers = []Tier{
	{
		Name: "accelerators",
		URLs: []string{
			"https://www.ycombinator.com/companies?industry=agriculture",
			"https://www.startlife.nl/portfolio/",
			"https://www.eitfood.eu/entrepreneurship/startups",
			"https://thrive.vc/portfolio/",
			"https://www.techstars.com/portfolio?industry=agtech",
		},
	},
	{
		Name: "industry",
		URLs: []string{
			"https://www.agfundernews.com/category/startups",
			"https://www.agritechtomorrow.com/news/",
			"https://www.futurefarming.com/tech-in-focus/",
			"https://agtechnavigator.com/startups",
		},
	},
	{
		Name: "news",
		URLs: []string{
			"https://techcrunch.com/category/startups/",
			"https://www.eu-startups.com/category/agritech/",
			"https://tech.eu/category/agritech/",
		},
	},
	{
		Name: "search",
		URLs: []string{
			"https://www.bing.com/search?q=agritech+startups+{query}",
			"https://duckduckgo.com/html/?q=agriculture+technology+startups+{query}",
		},
	},
	{
		Name: "professional",
		URLs: []string{
			"https://www.bing.com/search?q=site%3Alinkedin.com%2Fcompany+agritech+startup+{query}",
		},
	},
}

// TierNames returns the fallback order, used by tests and status output.
func TierNames(tiers []Tier) []string {
	names := make([]string, len(tiers))
	for i, t := range tiers {
		names[i] = t.Name
	}
	return names
}

// expandTierURL substitutes the {query} placeholder with a country or keyword
// hint. URLs without the placeholder pass through unchanged.
func expandTierURL(raw, query string) string {
	if !strings.Contains(raw, "{query}") {
		return raw
	}
	if query == "" {
		query = "agriculture"
	}
	return strings.ReplaceAll(raw, "{query}", url.QueryEscape(query))
}
