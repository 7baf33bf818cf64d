// Package score implements the heuristic validation and scoring engine. All
// scorers are stateless functions of their inputs; the Engine only carries
// configuration.
package score

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agscout/agscout/internal/model"
)

// Result is the outcome of validating one candidate against the loose or
// strict gate.
type Result struct {
	Score       int      `json:"score"`
	IsValid     bool     `json:"is_valid"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// FieldScores breaks down the composite by scorer.
type FieldScores struct {
	Name        int `json:"name"`
	Description int `json:"description"`
	Website     int `json:"website"`
	DomainFocus int `json:"domain_focus"`
	Market      int `json:"market"`
	Technical   int `json:"technical"`
	Viability   int `json:"viability"`
}

// ComprehensiveResult is the full profile evaluation exposed to interactive
// validation.
type ComprehensiveResult struct {
	Score           int         `json:"score"`
	Category        string      `json:"category"`
	IsValid         bool        `json:"is_valid"`
	Fields          FieldScores `json:"fields"`
	Confidence      int         `json:"confidence"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// Engine computes candidate scores. Safe for concurrent use.
type Engine struct {
	weights    Weights
	thresholds Thresholds
}

// NewEngine creates an Engine; zero-value weights/thresholds get defaults.
func NewEngine(w Weights, t Thresholds) *Engine {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	return &Engine{weights: w, thresholds: t}
}

// Thresholds returns the engine's configured gates.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

var (
	problemRe  = regexp.MustCompile(`(?i)\b(problem|challenge|struggle|pain point|inefficien|waste|loss|shortage)`)
	solutionRe = regexp.MustCompile(`(?i)\b(solution|solve|enable|platform|tool|system|automate|optimi[sz]e)`)
	benefitRe  = regexp.MustCompile(`(?i)\b(increase|improve|reduce|save|boost|higher yield|lower cost|sustainab)`)

	customerValidationRe = regexp.MustCompile(`(?i)\b(customer validation|validated with|used by \d|trusted by)`)
	pilotRe              = regexp.MustCompile(`(?i)\b(pilot|mvp|beta|trial|proof of concept)`)
	revenueRe            = regexp.MustCompile(`(?i)\b(revenue|paying customer|arr|mrr|sales of)`)

	patentRe   = regexp.MustCompile(`(?i)\b(patent|proprietary|ip portfolio)`)
	rdRe       = regexp.MustCompile(`(?i)\b(r&d|research and development|phd|university)`)
	mlRe       = regexp.MustCompile(`(?i)\b(machine learning|deep learning|neural network|ai model)`)
	bizModelRe = regexp.MustCompile(`(?i)\b(business model|saas|subscription|licensing|per acre|per hectare)`)
	scaleRe    = regexp.MustCompile(`(?i)\b(scalab|expand|replicate|rollout|global)`)
	partnerRe  = regexp.MustCompile(`(?i)\b(partner|collaborat|alliance|joint venture)`)

	sentenceRe         = regexp.MustCompile(`[.!?]+\s`)
	disallowedSymbolRe = regexp.MustCompile(`[<>{}\[\]|\\^~@#$%*=]`)
)

// genericBuilderHosts are site-builder domains that score lower as a company
// website.
var genericBuilderHosts = []string{
	"wixsite.com", "weebly.com", "wordpress.com", "blogspot.com",
	"squarespace.com", "webflow.io", "godaddysites.com", "carrd.co",
	"sites.google.com", "notion.site",
}

// NameScore rates a company name. An empty name is worth nothing.
func NameScore(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	s := 50
	if l := len(name); l >= 2 && l <= 50 {
		s += 20
	}
	if name[0] >= 'A' && name[0] <= 'Z' {
		s += 10
	}
	if !disallowedSymbolRe.MatchString(name) {
		s += 10
	}
	if len(strings.Fields(name)) <= 4 {
		s += 10
	}
	return clamp(s)
}

// DescriptionScore rates a description on length, sentence structure, and
// problem/solution/benefit phrasing.
func DescriptionScore(desc string) int {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return 0
	}
	s := 30
	if len(desc) >= 100 {
		s += 15
	}
	if len(desc) >= 200 {
		s += 15
	}
	if len(desc) >= 300 {
		s += 10
	}
	if len(sentenceRe.FindAllString(desc+" ", -1)) >= 3 {
		s += 15
	}
	if problemRe.MatchString(desc) {
		s += 10
	}
	if solutionRe.MatchString(desc) {
		s += 10
	}
	if benefitRe.MatchString(desc) {
		s += 10
	}
	return clamp(s)
}

// WebsiteScore rates a website URL; absence scores zero.
func WebsiteScore(website string) int {
	website = strings.TrimSpace(website)
	if website == "" {
		return 0
	}
	s := 50
	if strings.HasPrefix(website, "https://") {
		s += 20
	}
	if !isGenericBuilder(website) {
		s += 15
	}
	if l := len(website); l >= 10 && l <= 70 {
		s += 15
	}
	return clamp(s)
}

func isGenericBuilder(website string) bool {
	lower := strings.ToLower(website)
	for _, h := range genericBuilderHosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// DomainFocusScore scans text against the category gazetteer. Each category
// contributes min(20, 5*matches); breadth across 2+ and 3+ categories adds
// 15 and 10 more.
func DomainFocusScore(text string) int {
	lower := strings.ToLower(text)
	total := 0
	matched := 0
	for _, keywords := range domainCategories {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		matched++
		catScore := 5 * hits
		if catScore > 20 {
			catScore = 20
		}
		total += catScore
	}
	if matched >= 2 {
		total += 15
	}
	if matched >= 3 {
		total += 10
	}
	return clamp(total)
}

// DomainKeywordHits counts gazetteer keywords present in text, used for the
// confidence estimate.
func DomainKeywordHits(text string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, keywords := range domainCategories {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
	}
	return hits
}

// MarketReadinessScore rates go-to-market signals.
func MarketReadinessScore(text string) int {
	lower := strings.ToLower(text)
	s := 40
	for _, kw := range marketIndicators {
		if strings.Contains(lower, kw) {
			s += 8
		}
	}
	if customerValidationRe.MatchString(text) {
		s += 10
	}
	if pilotRe.MatchString(text) {
		s += 8
	}
	if revenueRe.MatchString(text) {
		s += 12
	}
	return clamp(s)
}

// TechnicalFeasibilityScore rates engineering substance.
func TechnicalFeasibilityScore(text string) int {
	lower := strings.ToLower(text)
	s := 50
	for _, kw := range techIndicators {
		if strings.Contains(lower, kw) {
			s += 6
		}
	}
	if patentRe.MatchString(text) {
		s += 10
	}
	if rdRe.MatchString(text) {
		s += 8
	}
	if mlRe.MatchString(text) {
		s += 8
	}
	return clamp(s)
}

// BusinessViabilityScore rates team and business-quality signals.
func BusinessViabilityScore(text string) int {
	lower := strings.ToLower(text)
	s := 45
	for _, kw := range viabilityIndicators {
		if strings.Contains(lower, kw) {
			s += 7
		}
	}
	if bizModelRe.MatchString(text) {
		s += 10
	}
	if scaleRe.MatchString(text) {
		s += 8
	}
	if partnerRe.MatchString(text) {
		s += 7
	}
	return clamp(s)
}

// fields computes every per-field score for one profile.
func (e *Engine) fields(name, description, website, extra string) FieldScores {
	text := strings.TrimSpace(name + " " + description + " " + extra)
	return FieldScores{
		Name:        NameScore(name),
		Description: DescriptionScore(description),
		Website:     WebsiteScore(website),
		DomainFocus: DomainFocusScore(text),
		Market:      MarketReadinessScore(text),
		Technical:   TechnicalFeasibilityScore(text),
		Viability:   BusinessViabilityScore(text),
	}
}

// composite folds field scores into the weighted 0-100 composite.
func (e *Engine) composite(f FieldScores) int {
	w := e.weights
	s := float64(f.Name)*w.Name +
		float64(f.Description)*w.Description +
		float64(f.Website)*w.Website +
		float64(f.DomainFocus)*w.DomainFocus +
		float64(f.Market)*w.Market +
		float64(f.Technical)*w.Technical +
		float64(f.Viability)*w.Viability
	return clamp(int(s + 0.5))
}

// Validate scores a candidate against the loose accept gate used inside the
// orchestrator. The bar is deliberately low so low-signal sources still
// contribute candidates.
func (e *Engine) Validate(c *model.CandidateRecord) Result {
	f := e.fields(c.Name, c.Description, c.Website, "")
	composite := e.composite(f)

	issues, suggestions := e.findings(c.Name, c.Description, c.Website, f)

	return Result{
		Score:       composite,
		IsValid:     composite >= e.thresholds.AcceptScore,
		Issues:      issues,
		Suggestions: suggestions,
	}
}

// Comprehensive evaluates a full profile against the strict gate, producing
// field breakdown, confidence, and capped recommendations.
func (e *Engine) Comprehensive(name, description, website, extra string) ComprehensiveResult {
	f := e.fields(name, description, website, extra)
	composite := e.composite(f)

	text := name + " " + description + " " + extra
	confidence := 50 + len(description)/10 + 5*DomainKeywordHits(text)
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 50 {
		confidence = 50
	}

	_, suggestions := e.findings(name, description, website, f)
	recs := capRecommendations(suggestions, 6)
	if f.DomainFocus < 40 {
		recs = append(recs, "Strengthen the agritech positioning: the profile reads as generic tech rather than agriculture-focused.")
	}
	if f.Market < 55 {
		recs = append(recs, "Add market evidence: customers, pilots, or revenue signals are what moves investor-facing quality.")
	}

	return ComprehensiveResult{
		Score:           composite,
		Category:        categoryFor(composite),
		IsValid:         composite >= e.thresholds.ValidScore,
		Fields:          f,
		Confidence:      confidence,
		Recommendations: recs,
	}
}

// findings derives issues and suggestions from the field breakdown.
func (e *Engine) findings(name, description, website string, f FieldScores) (issues, suggestions []string) {
	if strings.TrimSpace(name) == "" {
		issues = append(issues, "name is missing")
	} else if f.Name < 70 {
		issues = append(issues, fmt.Sprintf("name quality is weak (score %d)", f.Name))
		suggestions = append(suggestions, "Use a short, capitalized company name without special symbols.")
	}

	switch {
	case strings.TrimSpace(description) == "":
		issues = append(issues, "description is missing")
		suggestions = append(suggestions, "Add a description of at least 100 characters covering problem, solution, and benefit.")
	case len(description) < 100:
		suggestions = append(suggestions, "Expand the description past 100 characters; longer descriptions score and rank higher.")
	case f.Description < 60:
		suggestions = append(suggestions, "Structure the description around the problem, the solution, and the measurable benefit.")
	}

	if strings.TrimSpace(website) == "" {
		issues = append(issues, "website is missing")
		suggestions = append(suggestions, "Add the company website, preferably on its own https domain.")
	} else if !strings.HasPrefix(website, "https://") {
		suggestions = append(suggestions, "Prefer an https website URL.")
	}

	if f.DomainFocus == 0 {
		issues = append(issues, "no agritech domain signals found")
	}

	return issues, suggestions
}

func capRecommendations(recs []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range recs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func clamp(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
