package evaluation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// LoadGoldenNotes reads and parses a golden note set from a JSON file.
func LoadGoldenNotes(path string) ([]GoldenNote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden notes file: %w", err)
	}

	var notes []GoldenNote
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("failed to parse golden notes: %w", err)
	}

	return notes, nil
}

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

var validCategories = map[string]bool{
	string(entities.IssueChronicityMismatch):      true,
	string(entities.IssueNoExplicitPlan):          true,
	string(entities.IssueUnclearDocumentation):    true,
	string(entities.IssueChiefComplaintStructure): true,
}

// ValidateGoldenNotes checks that all golden notes have required fields
// and internally consistent labels.
func ValidateGoldenNotes(notes []GoldenNote) error {
	seen := make(map[string]struct{}, len(notes))

	for i, n := range notes {
		if n.ID == "" {
			return fmt.Errorf("note at index %d: missing id", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("note at index %d: duplicate id %q", i, n.ID)
		}
		seen[n.ID] = struct{}{}

		if len(n.Note.Sections) == 0 {
			return fmt.Errorf("note %q: no sections", n.ID)
		}
		if !validDifficulties[n.Difficulty] {
			return fmt.Errorf("note %q: invalid difficulty %q (must be easy/medium/hard)", n.ID, n.Difficulty)
		}

		switch n.ExpectedStatus {
		case entities.CheckStatusOK:
			if len(n.ExpectedCategories) > 0 {
				return fmt.Errorf("note %q: expected status ok but categories listed", n.ID)
			}
		case entities.CheckStatusCorrectionsNeeded:
			if len(n.ExpectedCategories) == 0 {
				return fmt.Errorf("note %q: expected status corrections_needed but no categories listed", n.ID)
			}
		default:
			return fmt.Errorf("note %q: invalid expected status %q", n.ID, n.ExpectedStatus)
		}

		for _, c := range n.ExpectedCategories {
			if !validCategories[c] {
				return fmt.Errorf("note %q: unknown expected category %q", n.ID, c)
			}
		}
	}

	return nil
}
