package entities

// Section names in a clinical note. SectionOrder fixes the rendering
// order used when normalizing a note for fingerprinting.
const (
	SectionHPI    = "HPI"
	SectionROS    = "ROS"
	SectionVitals = "Vitals"
	SectionExam   = "Exam"
	SectionAP     = "A&P"
)

// SectionOrder is the canonical order of sections in the normalized
// rendering. Sections absent from a note are skipped.
var SectionOrder = []string{SectionHPI, SectionROS, SectionVitals, SectionExam, SectionAP}

// NoteSection is one structured section of a clinical note.
type NoteSection struct {
	Name      string   `json:"name"`
	Text      string   `json:"text"`
	PlanItems []string `json:"plan_items,omitempty"`
}

// NoteDocument is the full clinical note for one encounter, as fetched
// from the upstream EHR.
type NoteDocument struct {
	EncounterID string        `json:"encounter_id"`
	Sections    []NoteSection `json:"sections"`
}

// Section returns the named section, or nil when absent.
func (d *NoteDocument) Section(name string) *NoteSection {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i]
		}
	}
	return nil
}
