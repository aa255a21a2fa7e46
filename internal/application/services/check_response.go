package services

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// Model output occasionally drops the colon after a key or doubles it.
var (
	missingColonRe = regexp.MustCompile(`"(\w[\w&]*)"\s+(["{\[])`)
	doubledColonRe = regexp.MustCompile(`"\s*::`)
)

var errUnparseableResponse = errors.New("unparseable check response")

type rawIssue struct {
	Assessment string                 `json:"assessment"`
	Issue      string                 `json:"issue"`
	Category   string                 `json:"category"`
	Details    map[string]interface{} `json:"details"`
}

type rawCheckResponse struct {
	Status string          `json:"status"`
	Issues json.RawMessage `json:"issues"`
	// Some responses inline a single issue at the top level instead
	// of wrapping it in an issues array.
	Assessment string                 `json:"assessment"`
	Issue      string                 `json:"issue"`
	Details    map[string]interface{} `json:"details"`
}

// parseCheckResponse extracts and normalizes the JSON verdict from raw
// model output. It tolerates surrounding prose, markdown fences, and
// the known malformed-colon artifacts; anything beyond that returns
// errUnparseableResponse so the caller can degrade the check.
func parseCheckResponse(raw string) ([]entities.Issue, error) {
	extracted := extractJSONObject(raw)
	if extracted == "" {
		return nil, errUnparseableResponse
	}

	parsed, err := decodeResponse(extracted)
	if err != nil {
		repaired := repairJSON(extracted)
		parsed, err = decodeResponse(repaired)
		if err != nil {
			return nil, errUnparseableResponse
		}
	}

	if parsed.Status == "ok" {
		return nil, nil
	}

	issues, err := normalizeIssues(parsed)
	if err != nil || len(issues) == 0 {
		// corrections_needed with no usable issue payload. Returning
		// zero issues here would count the check as passed.
		return nil, errUnparseableResponse
	}
	return issues, nil
}

func decodeResponse(s string) (*rawCheckResponse, error) {
	var parsed rawCheckResponse
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// extractJSONObject returns the substring from the first '{' to the
// last '}', which strips prose and markdown fences in one cut.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func repairJSON(s string) string {
	s = doubledColonRe.ReplaceAllString(s, `":`)
	s = missingColonRe.ReplaceAllString(s, `"$1": $2`)
	return s
}

func normalizeIssues(parsed *rawCheckResponse) ([]entities.Issue, error) {
	var raws []rawIssue

	switch {
	case len(parsed.Issues) > 0:
		if err := json.Unmarshal(parsed.Issues, &raws); err != nil {
			// Single object where an array was expected.
			var one rawIssue
			if err := json.Unmarshal(parsed.Issues, &one); err != nil {
				// Bare assessment names as strings.
				var names []string
				if err := json.Unmarshal(parsed.Issues, &names); err != nil {
					return nil, err
				}
				for _, name := range names {
					raws = append(raws, rawIssue{Assessment: name})
				}
				break
			}
			raws = []rawIssue{one}
		}
	case parsed.Issue != "" || parsed.Assessment != "":
		raws = []rawIssue{{
			Assessment: parsed.Assessment,
			Issue:      parsed.Issue,
			Details:    parsed.Details,
		}}
	default:
		// corrections_needed with no issue payload at all.
		return nil, errUnparseableResponse
	}

	issues := make([]entities.Issue, 0, len(raws))
	for _, r := range raws {
		category := r.Issue
		if category == "" {
			category = r.Category
		}
		issue := entities.Issue{
			Assessment: r.Assessment,
			Category:   normalizeCategory(category),
			Details: entities.IssueDetails{
				HPI:        detailString(r.Details, "HPI", "hpi"),
				AP:         detailString(r.Details, "A&P", "ap", "a&p"),
				Correction: detailString(r.Details, "correction", "Correction"),
			},
		}
		if issue.Details.Correction == "" {
			issue.Details.Correction = "Review this assessment's documentation."
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// normalizeCategory maps free-form category text onto the closed set;
// anything unrecognized becomes unclear_documentation.
func normalizeCategory(category string) entities.IssueCategory {
	switch entities.IssueCategory(strings.TrimSpace(strings.ToLower(category))) {
	case entities.IssueChronicityMismatch:
		return entities.IssueChronicityMismatch
	case entities.IssueNoExplicitPlan:
		return entities.IssueNoExplicitPlan
	case entities.IssueChiefComplaintStructure:
		return entities.IssueChiefComplaintStructure
	default:
		return entities.IssueUnclearDocumentation
	}
}

func detailString(details map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := details[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
