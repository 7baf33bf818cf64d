package score

// Weights are the composite weights for the seven field scorers. They sum to 1.
type Weights struct {
	Name        float64 `yaml:"name" mapstructure:"name"`
	Description float64 `yaml:"description" mapstructure:"description"`
	Website     float64 `yaml:"website" mapstructure:"website"`
	DomainFocus float64 `yaml:"domain_focus" mapstructure:"domain_focus"`
	Market      float64 `yaml:"market" mapstructure:"market"`
	Technical   float64 `yaml:"technical" mapstructure:"technical"`
	Viability   float64 `yaml:"viability" mapstructure:"viability"`
}

// DefaultWeights returns the standard composite weights.
func DefaultWeights() Weights {
	return Weights{
		Name:        0.10,
		Description: 0.20,
		Website:     0.10,
		DomainFocus: 0.25,
		Market:      0.15,
		Technical:   0.10,
		Viability:   0.10,
	}
}

// Thresholds holds the two-tier validity policy: a loose accept gate used by
// the orchestrator and a strict valid gate for interactive validation. Both
// are deliberate knobs, not constants.
type Thresholds struct {
	AcceptScore int `yaml:"accept_score" mapstructure:"accept_score"`
	ValidScore  int `yaml:"valid_score" mapstructure:"valid_score"`
}

// DefaultThresholds returns accept=30, valid=60.
func DefaultThresholds() Thresholds {
	return Thresholds{AcceptScore: 30, ValidScore: 60}
}

// Category bands for the composite score.
const (
	CategoryExcellent = "excellent"
	CategoryGood      = "good"
	CategoryFair      = "fair"
	CategoryPoor      = "poor"
)

func categoryFor(score int) string {
	switch {
	case score >= 85:
		return CategoryExcellent
	case score >= 70:
		return CategoryGood
	case score >= 55:
		return CategoryFair
	default:
		return CategoryPoor
	}
}
