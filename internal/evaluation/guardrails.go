package evaluation

import "fmt"

// GuardrailConfig sets the minimum quality bar an evaluation run must
// clear before a prompt or model change ships.
type GuardrailConfig struct {
	MinStatusAccuracy    float64
	MinCategoryRecall    float64
	MinCategoryPrecision float64
	MaxFailedNotes       int
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MinStatusAccuracy <= 0 {
		config.MinStatusAccuracy = 0.9
	}
	if config.MinCategoryRecall <= 0 {
		config.MinCategoryRecall = 0.8
	}
	if config.MinCategoryPrecision <= 0 {
		config.MinCategoryPrecision = 0.7
	}
	return &Guardrails{config: config}
}

// Violations returns one message per threshold the summary misses,
// empty when the run clears the bar.
func (g *Guardrails) Violations(summary *EvalSummary) []string {
	var violations []string
	if summary.StatusAccuracy < g.config.MinStatusAccuracy {
		violations = append(violations, fmt.Sprintf("status accuracy %.3f below minimum %.3f", summary.StatusAccuracy, g.config.MinStatusAccuracy))
	}
	if summary.AvgCategoryRecall < g.config.MinCategoryRecall {
		violations = append(violations, fmt.Sprintf("category recall %.3f below minimum %.3f", summary.AvgCategoryRecall, g.config.MinCategoryRecall))
	}
	if summary.AvgCategoryPrecision < g.config.MinCategoryPrecision {
		violations = append(violations, fmt.Sprintf("category precision %.3f below minimum %.3f", summary.AvgCategoryPrecision, g.config.MinCategoryPrecision))
	}
	if summary.NotesFailed > g.config.MaxFailedNotes {
		violations = append(violations, fmt.Sprintf("%d notes failed to audit, at most %d allowed", summary.NotesFailed, g.config.MaxFailedNotes))
	}
	return violations
}

// Passes reports whether the summary clears every threshold.
func (g *Guardrails) Passes(summary *EvalSummary) bool {
	return len(g.Violations(summary)) == 0
}
