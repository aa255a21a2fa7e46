package entities

import "time"

// CheckStatus is the combined verdict of all checks for one encounter.
type CheckStatus string

const (
	CheckStatusOK                CheckStatus = "ok"
	CheckStatusCorrectionsNeeded CheckStatus = "corrections_needed"
)

// LifecycleStatus tracks the processing state of a CheckResult row.
type LifecycleStatus string

const (
	LifecyclePending   LifecycleStatus = "pending"
	LifecycleCompleted LifecycleStatus = "completed"
	LifecycleError     LifecycleStatus = "error"
)

// IssueCategory is the closed set of documentation issue categories.
type IssueCategory string

const (
	IssueChronicityMismatch      IssueCategory = "chronicity_mismatch"
	IssueNoExplicitPlan          IssueCategory = "no_explicit_plan"
	IssueUnclearDocumentation    IssueCategory = "unclear_documentation"
	IssueChiefComplaintStructure IssueCategory = "chief_complaint_structure"
)

// IssueDetails carries the supporting excerpts and the required
// correction for one issue.
type IssueDetails struct {
	HPI        string `json:"HPI,omitempty"`
	AP         string `json:"A&P,omitempty"`
	Correction string `json:"correction"`
}

// Issue is one documentation problem found by a check. Issues are
// never mutated after creation; human reviewers override them through
// append-only IssueOverride records instead.
type Issue struct {
	Assessment string        `json:"assessment"`
	Category   IssueCategory `json:"issue"`
	Details    IssueDetails  `json:"details"`
}

// IssueOverride is an append-only human review record marking one
// issue of a result invalid.
type IssueOverride struct {
	ID            string    `json:"id"`
	CheckResultID string    `json:"check_result_id"`
	IssueIndex    int       `json:"issue_index"`
	Reviewer      string    `json:"reviewer"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// CheckResult is the stored outcome of analyzing one encounter's
// documentation. One row per encounter, upserted; a completed result
// may be reused verbatim for any encounter whose normalized content
// hashes to the same fingerprint.
type CheckResult struct {
	ID              string          `json:"id"`
	EncounterID     string          `json:"encounter_id"`
	Status          CheckStatus     `json:"status"`
	Summary         string          `json:"summary"`
	Issues          []Issue         `json:"issues"`
	Fingerprint     string          `json:"fingerprint"`
	Content         string          `json:"content"`
	LifecycleStatus LifecycleStatus `json:"lifecycle_status"`
	ErrorDetail     string          `json:"error_detail,omitempty"`
	CheckedBy       string          `json:"checked_by"`
	CheckedAt       time.Time       `json:"checked_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasIssues reports whether the result carries at least one issue.
func (r *CheckResult) HasIssues() bool {
	return len(r.Issues) > 0
}
