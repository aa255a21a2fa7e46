package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
)

// CheckOutcome is the result of one documentation check. A check
// either passes (no issues) or contributes issues to the combined
// verdict; check failures that can be degraded gracefully (malformed
// AI output) surface as an unclear_documentation issue rather than an
// error.
type CheckOutcome struct {
	CheckName string
	Issues    []entities.Issue
}

// documentationCheck is one member of the fixed check set run against
// every analyzed note.
type documentationCheck interface {
	Name() string
	Run(ctx context.Context, doc *entities.NoteDocument, normalized string) (*CheckOutcome, error)
}

const chronicitySystemPrompt = `You are a clinical documentation auditor. You compare the HPI and the A&P of a dermatology note and flag assessments whose chronicity (acute vs chronic) in the A&P contradicts the history documented in the HPI.

Respond with JSON only, no prose, in this exact shape:
{"status": "ok"}
or
{"status": "corrections_needed", "issues": [{"assessment": "<assessment name>", "issue": "chronicity_mismatch", "details": {"HPI": "<supporting HPI excerpt>", "A&P": "<supporting A&P excerpt>", "correction": "<required correction>"}}]}

Only flag genuine contradictions. Quote the supporting excerpts verbatim.`

const planSystemPrompt = `You are a clinical documentation auditor. You read the A&P of a dermatology note and flag assessments that have no explicit plan: an assessment listed with no treatment, follow-up, monitoring, or disposition attached to it.

Respond with JSON only, no prose, in this exact shape:
{"status": "ok"}
or
{"status": "corrections_needed", "issues": [{"assessment": "<assessment name>", "issue": "no_explicit_plan", "details": {"A&P": "<supporting A&P excerpt>", "correction": "<required correction>"}}]}

"Continue current regimen" and "no treatment indicated" count as explicit plans. Only flag assessments with nothing at all.`

const structureSystemPrompt = `You are a clinical documentation auditor. You read the HPI of a dermatology note and check that the chief complaint is documented with a clear structure: what the complaint is, where it is, and how long it has been present.

Respond with JSON only, no prose, in this exact shape:
{"status": "ok"}
or
{"status": "corrections_needed", "issues": [{"assessment": "<chief complaint>", "issue": "chief_complaint_structure", "details": {"HPI": "<supporting HPI excerpt>", "correction": "<required correction>"}}]}

Flag only structural gaps, not stylistic preferences. If the HPI is too vague to evaluate, use issue "unclear_documentation" instead.`

// aiCheck runs one prompt pair against the AI provider and parses the
// JSON verdict. Malformed output degrades to corrections_needed with a
// single unclear_documentation issue instead of failing the analysis.
type aiCheck struct {
	name         string
	model        string
	systemPrompt string
	completer    providers.ChatCompleter
	buildInput   func(doc *entities.NoteDocument) string
}

func (c *aiCheck) Name() string { return c.name }

func (c *aiCheck) Run(ctx context.Context, doc *entities.NoteDocument, normalized string) (*CheckOutcome, error) {
	input := c.buildInput(doc)
	if strings.TrimSpace(input) == "" {
		// Nothing to audit; an absent section is the structure
		// check's concern, not this one's.
		return &CheckOutcome{CheckName: c.name}, nil
	}

	raw, err := c.completer.Complete(ctx, c.model, c.systemPrompt, input)
	if err != nil {
		return nil, err
	}

	issues, parseErr := parseCheckResponse(raw)
	if parseErr != nil {
		return &CheckOutcome{
			CheckName: c.name,
			Issues: []entities.Issue{{
				Assessment: "unparseable check output",
				Category:   entities.IssueUnclearDocumentation,
				Details: entities.IssueDetails{
					Correction: fmt.Sprintf("Automated %s review could not be completed; review this note manually.", c.name),
				},
			}},
		}, nil
	}

	return &CheckOutcome{CheckName: c.name, Issues: issues}, nil
}

func sectionText(doc *entities.NoteDocument, name string) string {
	section := doc.Section(name)
	if section == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(section.Text)
	for _, item := range section.PlanItems {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return b.String()
}

func chronicityInput(doc *entities.NoteDocument) string {
	hpi := sectionText(doc, entities.SectionHPI)
	ap := sectionText(doc, entities.SectionAP)
	if hpi == "" || ap == "" {
		return ""
	}
	return "HPI:\n" + hpi + "\n\nA&P:\n" + ap
}

func planInput(doc *entities.NoteDocument) string {
	ap := sectionText(doc, entities.SectionAP)
	if ap == "" {
		return ""
	}
	return "A&P:\n" + ap
}

func structureInput(doc *entities.NoteDocument) string {
	hpi := sectionText(doc, entities.SectionHPI)
	if hpi == "" {
		return ""
	}
	return "HPI:\n" + hpi
}

// vitalsCheck verifies locally that height and weight appear in the
// vitals section. No AI call: presence is a string check.
type vitalsCheck struct{}

func (c *vitalsCheck) Name() string { return "vitals" }

func (c *vitalsCheck) Run(ctx context.Context, doc *entities.NoteDocument, normalized string) (*CheckOutcome, error) {
	vitals := strings.ToLower(sectionText(doc, entities.SectionVitals))

	var missing []string
	if !strings.Contains(vitals, "height") && !strings.Contains(vitals, "ht:") {
		missing = append(missing, "height")
	}
	if !strings.Contains(vitals, "weight") && !strings.Contains(vitals, "wt:") {
		missing = append(missing, "weight")
	}
	if len(missing) == 0 {
		return &CheckOutcome{CheckName: c.Name()}, nil
	}

	return &CheckOutcome{
		CheckName: c.Name(),
		Issues: []entities.Issue{{
			Assessment: "vitals",
			Category:   entities.IssueUnclearDocumentation,
			Details: entities.IssueDetails{
				Correction: "Document " + strings.Join(missing, " and ") + " in the vitals section.",
			},
		}},
	}, nil
}

// buildCheckSet assembles the fixed check set run per analysis.
type CheckModels struct {
	Chronicity string
	Plan       string
	Structure  string
}

func buildCheckSet(completer providers.ChatCompleter, models CheckModels) []documentationCheck {
	return []documentationCheck{
		&aiCheck{
			name:         "chronicity",
			model:        models.Chronicity,
			systemPrompt: chronicitySystemPrompt,
			completer:    completer,
			buildInput:   chronicityInput,
		},
		&aiCheck{
			name:         "plan",
			model:        models.Plan,
			systemPrompt: planSystemPrompt,
			completer:    completer,
			buildInput:   planInput,
		},
		&aiCheck{
			name:         "structure",
			model:        models.Structure,
			systemPrompt: structureSystemPrompt,
			completer:    completer,
			buildInput:   structureInput,
		},
		&vitalsCheck{},
	}
}
