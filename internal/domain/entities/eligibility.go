package entities

import "time"

// EligibilityStatus is the outcome of one insurance eligibility check.
type EligibilityStatus string

const (
	EligibilityQueued   EligibilityStatus = "queued"
	EligibilityVerified EligibilityStatus = "verified"
	EligibilityInactive EligibilityStatus = "inactive"
	EligibilityError    EligibilityStatus = "error"
)

// EligibilityCheck records one coverage verification for an upcoming
// appointment. Upserted on (encounter_id, coverage_date) so a cycle
// never double-queues the same appointment day.
type EligibilityCheck struct {
	ID           string            `json:"id"`
	EncounterID  string            `json:"encounter_id"`
	PatientID    string            `json:"patient_id"`
	CoverageDate time.Time         `json:"coverage_date"`
	Status       EligibilityStatus `json:"status"`
	Detail       string            `json:"detail,omitempty"`
	CheckedAt    *time.Time        `json:"checked_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
