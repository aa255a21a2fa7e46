package entities

import "time"

// PipelineEventType tags lifecycle events published on the event bus
// for the monitoring surface.
type PipelineEventType string

const (
	EventCheckCompleted      PipelineEventType = "check.completed"
	EventTaskCreated         PipelineEventType = "task.created"
	EventTaskCompleted       PipelineEventType = "task.completed"
	EventEligibilityVerified PipelineEventType = "eligibility.verified"
)

// PipelineEvent is one lifecycle event emitted by the pipeline.
type PipelineEvent struct {
	ID          string            `json:"id"`
	Type        PipelineEventType `json:"type"`
	EncounterID string            `json:"encounter_id"`
	Data        map[string]string `json:"data,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}
