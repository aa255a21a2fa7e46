package services

import (
	"context"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
)

// NoteAuditor runs the documentation check set against an in-memory
// note without persistence, dedup, or upstream fetches. The offline
// evaluation harness uses it to score check quality on golden notes.
type NoteAuditor struct {
	checks []documentationCheck
}

// NewNoteAuditor creates an auditor bound to the given AI provider and
// models.
func NewNoteAuditor(completer providers.ChatCompleter, models CheckModels) *NoteAuditor {
	return &NoteAuditor{checks: buildCheckSet(completer, models)}
}

// Audit runs every check and returns the combined verdict.
func (a *NoteAuditor) Audit(ctx context.Context, doc *entities.NoteDocument) (entities.CheckStatus, []entities.Issue, error) {
	normalized := NormalizeNote(doc)

	outcomes, err := runCheckSet(ctx, a.checks, doc, normalized)
	if err != nil {
		return "", nil, err
	}

	var issues []entities.Issue
	for _, outcome := range outcomes {
		issues = append(issues, outcome.Issues...)
	}
	if len(issues) > 0 {
		return entities.CheckStatusCorrectionsNeeded, issues, nil
	}
	return entities.CheckStatusOK, nil, nil
}
