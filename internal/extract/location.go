package extract

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cityGazetteer maps city names that show up in agritech coverage to their
// country. Matching is a plain substring scan over the page text.
var cityGazetteer = map[string]string{
	"amsterdam":     "Netherlands",
	"rotterdam":     "Netherlands",
	"wageningen":    "Netherlands",
	"eindhoven":     "Netherlands",
	"berlin":        "Germany",
	"munich":        "Germany",
	"hamburg":       "Germany",
	"paris":         "France",
	"london":        "United Kingdom",
	"cambridge":     "United Kingdom",
	"dublin":        "Ireland",
	"zurich":        "Switzerland",
	"copenhagen":    "Denmark",
	"stockholm":     "Sweden",
	"tel aviv":      "Israel",
	"bangalore":     "India",
	"bengaluru":     "India",
	"pune":          "India",
	"singapore":     "Singapore",
	"sydney":        "Australia",
	"melbourne":     "Australia",
	"são paulo":     "Brazil",
	"sao paulo":     "Brazil",
	"nairobi":       "Kenya",
	"toronto":       "Canada",
	"vancouver":     "Canada",
	"san francisco": "United States",
	"boston":        "United States",
	"st. louis":     "United States",
	"davis":         "United States",
	"austin":        "United States",
	"salinas":       "United States",
	"des moines":    "United States",
}

// ccTLDDefaults gives a default city/country when the source URL's TLD hints
// at a locale and the page itself names no location.
var ccTLDDefaults = map[string][2]string{
	".nl": {"Amsterdam", "Netherlands"},
	".de": {"Berlin", "Germany"},
	".fr": {"Paris", "France"},
	".uk": {"London", "United Kingdom"},
	".in": {"Bangalore", "India"},
	".au": {"Sydney", "Australia"},
	".ca": {"Toronto", "Canada"},
	".dk": {"Copenhagen", "Denmark"},
	".se": {"Stockholm", "Sweden"},
	".il": {"Tel Aviv", "Israel"},
	".br": {"São Paulo", "Brazil"},
	".ke": {"Nairobi", "Kenya"},
	".sg": {"Singapore", "Singapore"},
}

// inferLocation scans text for a gazetteer city and falls back to the source
// URL's locale hint. Returns empty strings when nothing matches.
func inferLocation(text, sourceURL string) (city, country string) {
	lower := strings.ToLower(text)
	for c, co := range cityGazetteer {
		if strings.Contains(lower, c) {
			return titleCity(c), co
		}
	}

	if u, err := url.Parse(sourceURL); err == nil {
		host := strings.ToLower(u.Hostname())
		for tld, def := range ccTLDDefaults {
			if strings.HasSuffix(host, tld) {
				return def[0], def[1]
			}
		}
	}

	return "", ""
}

// titleCity restores display casing for a lower-cased gazetteer key.
// Keys are not all ASCII ("são paulo"), so casing is rune-aware. Casers
// carry transform state, so each call gets its own.
func titleCity(c string) string {
	return cases.Title(language.Und).String(c)
}
