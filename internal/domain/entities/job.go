package entities

import "time"

// JobType tags a queue job payload.
type JobType string

const (
	JobTypeNoteCheck        JobType = "note_check"
	JobTypeEligibilityCheck JobType = "eligibility_check"
)

// Job is the envelope enqueued on the durable queue. AttemptsMade is
// carried explicitly in the payload so retry policy stays in the
// application: each backoff re-enqueue is a fresh job instance with
// the counter incremented, independent of broker-level delivery
// counting.
type Job struct {
	ID           string     `json:"id"`
	Type         JobType    `json:"type"`
	EncounterID  string     `json:"encounter_id"`
	PatientID    string     `json:"patient_id,omitempty"`
	CoverageDate *time.Time `json:"coverage_date,omitempty"`
	Force        bool       `json:"force"`
	TriggeredBy  string     `json:"triggered_by"`
	AttemptsMade int        `json:"attempts_made"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
}
