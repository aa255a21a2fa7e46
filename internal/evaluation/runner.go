package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// NoteAuditProvider runs the documentation check set against one note.
type NoteAuditProvider interface {
	Audit(ctx context.Context, doc *entities.NoteDocument) (entities.CheckStatus, []entities.Issue, error)
}

// Runner scores the check set across a set of golden notes.
type Runner struct {
	auditor NoteAuditProvider
}

func NewRunner(auditor NoteAuditProvider) *Runner {
	return &Runner{auditor: auditor}
}

func (r *Runner) Run(ctx context.Context, notes []GoldenNote) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalNotes:   len(notes),
		ByDifficulty: make(map[string]*DifficultySummary),
	}

	for _, gn := range notes {
		start := time.Now()
		status, issues, err := r.auditor.Audit(ctx, &gn.Note)
		duration := time.Since(start)

		if err != nil {
			summary.NotesFailed++
			continue
		}

		found := distinctCategories(issues)
		result := EvalResult{
			NoteID:            gn.ID,
			Difficulty:        gn.Difficulty,
			ExpectedStatus:    gn.ExpectedStatus,
			ActualStatus:      status,
			StatusMatch:       status == gn.ExpectedStatus,
			CategoryPrecision: SetPrecision(gn.ExpectedCategories, found),
			CategoryRecall:    SetRecall(gn.ExpectedCategories, found),
			FoundCategories:   found,
			Latency:           duration,
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func distinctCategories(issues []entities.Issue) []string {
	var categories []string
	seen := make(map[entities.IssueCategory]bool)
	for _, issue := range issues {
		if !seen[issue.Category] {
			seen[issue.Category] = true
			categories = append(categories, string(issue.Category))
		}
	}
	return categories
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	if res.StatusMatch {
		s.StatusAccuracy++
	}
	s.AvgCategoryPrecision += res.CategoryPrecision
	s.AvgCategoryRecall += res.CategoryRecall
	s.AvgLatency += res.Latency

	if _, ok := s.ByDifficulty[res.Difficulty]; !ok {
		s.ByDifficulty[res.Difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[res.Difficulty]
	ds.Count++
	if res.StatusMatch {
		ds.StatusAccuracy++
	}
	ds.AvgCategoryRecall += res.CategoryRecall
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	scored := s.TotalNotes - s.NotesFailed
	if scored > 0 {
		n := float64(scored)
		s.StatusAccuracy /= n
		s.AvgCategoryPrecision /= n
		s.AvgCategoryRecall /= n
		s.AvgLatency /= time.Duration(scored)
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			n := float64(ds.Count)
			ds.StatusAccuracy /= n
			ds.AvgCategoryRecall /= n
		}
	}
}
