package entities

import "time"

// TaskCompletionStatus tracks the observed upstream state of a
// remediation task.
type TaskCompletionStatus string

const (
	TaskOpen      TaskCompletionStatus = "open"
	TaskCompleted TaskCompletionStatus = "completed"
	// TaskNotFound marks tasks that disappeared upstream; they are
	// never polled again.
	TaskNotFound TaskCompletionStatus = "not_found"
)

// DoneTaskStatuses is the closed set of upstream statuses treated as
// completion.
var DoneTaskStatuses = map[string]struct{}{
	"completed": {},
	"done":      {},
	"resolved":  {},
}

// RemediationTask records one task created upstream to resolve the
// issues found by a check. Created once per (encounter, check result)
// pair; never deleted, only appended-to by completion polling.
type RemediationTask struct {
	ID               string               `json:"id"`
	EncounterID      string               `json:"encounter_id"`
	PatientID        string               `json:"patient_id"`
	CheckResultID    string               `json:"check_result_id"`
	TaskID           string               `json:"task_id"`
	Assignee         string               `json:"assignee"`
	Watchers         []string             `json:"watchers"`
	Description      string               `json:"description"`
	IssueCount       int                  `json:"issue_count"`
	CompletionStatus TaskCompletionStatus `json:"completion_status"`
	LastPolledAt     *time.Time           `json:"last_polled_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}
