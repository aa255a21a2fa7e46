package entities

import "time"

// EncounterStatus is the upstream EHR status of an encounter.
type EncounterStatus string

const (
	EncounterStatusScheduled  EncounterStatus = "scheduled"
	EncounterStatusArrived    EncounterStatus = "arrived"
	EncounterStatusCheckedOut EncounterStatus = "checked_out"
	EncounterStatusUnsigned   EncounterStatus = "unsigned"
	EncounterStatusSigned     EncounterStatus = "signed"
	EncounterStatusCancelled  EncounterStatus = "cancelled"
)

// AwaitingFinalization reports whether the encounter is in a status
// where the note exists but has not been signed off yet. Only these
// encounters are candidates for documentation checks.
func (s EncounterStatus) AwaitingFinalization() bool {
	switch s {
	case EncounterStatusArrived, EncounterStatusCheckedOut, EncounterStatusUnsigned:
		return true
	}
	return false
}

// Encounter is one upstream visit considered for processing. Created
// by discovery, read-only to downstream stages.
type Encounter struct {
	ID              string          `json:"id"`
	PatientID       string          `json:"patient_id"`
	PatientName     string          `json:"patient_name"`
	ProviderID      string          `json:"provider_id"`
	ServiceDate     time.Time       `json:"service_date"`
	Status          EncounterStatus `json:"status"`
	AppointmentType string          `json:"appointment_type"`
	Telehealth      bool            `json:"telehealth"`
	PayerOnFile     bool            `json:"payer_on_file"`
}

// CareTeamRole is one member of an encounter's care team as reported
// by the upstream EHR.
type CareTeamRole struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// Care team role names used by assignee resolution.
const (
	RoleProvider          = "provider"
	RoleSecondaryProvider = "secondary_provider"
	RoleStaff             = "staff"
)
