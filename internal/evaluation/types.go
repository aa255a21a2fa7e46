package evaluation

import (
	"time"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// GoldenNote is one labeled note with the verdict a correct check set
// should produce for it.
type GoldenNote struct {
	ID                 string                `json:"id"`
	Note               entities.NoteDocument `json:"note"`
	ExpectedStatus     entities.CheckStatus  `json:"expected_status"`
	ExpectedCategories []string              `json:"expected_categories"`
	Difficulty         string                `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single golden note.
type EvalResult struct {
	NoteID            string
	Difficulty        string
	ExpectedStatus    entities.CheckStatus
	ActualStatus      entities.CheckStatus
	StatusMatch       bool
	CategoryPrecision float64
	CategoryRecall    float64
	FoundCategories   []string
	Latency           time.Duration
}

// EvalSummary holds aggregate metrics across all golden notes.
type EvalSummary struct {
	TotalNotes           int
	NotesFailed          int // audit calls that returned an error
	StatusAccuracy       float64
	AvgCategoryPrecision float64
	AvgCategoryRecall    float64
	AvgLatency           time.Duration
	ByDifficulty         map[string]*DifficultySummary
}

// DifficultySummary holds metrics grouped by difficulty tier.
type DifficultySummary struct {
	Count             int
	StatusAccuracy    float64
	AvgCategoryRecall float64
}
