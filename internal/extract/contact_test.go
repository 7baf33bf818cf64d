package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmails_Stoplist(t *testing.T) {
	text := "Write to noreply@x.com or test@x.com, or reach the team at info@x.com."
	assert.Equal(t, []string{"info@x.com"}, Emails(text))
}

func TestEmails_DedupAndCase(t *testing.T) {
	text := "Contact Info@TerraSense.io or info@terrasense.io for a demo."
	assert.Equal(t, []string{"info@terrasense.io"}, Emails(text))
}

func TestEmails_LengthBounds(t *testing.T) {
	assert.Empty(t, Emails("a@b.c is too short"))
	assert.Empty(t, Emails("nothing here"))
}

func TestPhones_Formats(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"international", "Call us at +31 20 123 4567 today"},
		{"us dashed", "Phone: 415-555-0143."},
		{"parenthesized", "Office (415) 555-0143"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEmpty(t, Phones(tc.text))
		})
	}
}

func TestPhones_DedupOnDigits(t *testing.T) {
	// Same number in two formats collapses to one entry.
	text := "Call 415-555-0143 or (415) 555-0143"
	assert.Len(t, Phones(text), 1)
}

func TestPhones_RejectsShortMatches(t *testing.T) {
	assert.Empty(t, Phones("order #12 34 56 shipped"))
}

func TestLinkedInURLs(t *testing.T) {
	text := `See https://www.linkedin.com/company/terrasense/ and
	https://linkedin.com/in/jane-doe. Also https://www.linkedin.com/company/terrasense/`

	urls := LinkedInURLs(text)
	assert.Equal(t, []string{
		"https://www.linkedin.com/company/terrasense",
		"https://linkedin.com/in/jane-doe",
	}, urls)
}
