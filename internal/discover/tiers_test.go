package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTiers_WalkOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"accelerators", "industry", "news", "search", "professional"},
		TierNames(defaultTiers))

	for _, tier := range defaultTiers {
		assert.NotEmpty(t, tier.URLs, "tier %s has no sources", tier.Name)
	}
}

func TestExpandTierURL(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		query string
		want  string
	}{
		{
			name:  "placeholder with country",
			raw:   "https://www.bing.com/search?q=agritech+startups+{query}",
			query: "New Zealand",
			want:  "https://www.bing.com/search?q=agritech+startups+New+Zealand",
		},
		{
			name:  "placeholder without query falls back to agriculture",
			raw:   "https://duckduckgo.com/html/?q={query}",
			query: "",
			want:  "https://duckduckgo.com/html/?q=agriculture",
		},
		{
			name:  "plain url passes through",
			raw:   "https://thrive.vc/portfolio/",
			query: "Netherlands",
			want:  "https://thrive.vc/portfolio/",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, expandTierURL(tc.raw, tc.query))
		})
	}
}
