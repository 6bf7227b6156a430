package consultation

import (
	"time"

	"github.com/google/uuid"
)

// Consultation is one visit, opened when a practitioner takes a queue ticket
// into service and closed when the visit concludes. A ticket maps to at most
// one open consultation, and a practitioner has at most one open consultation
// at a time.
type Consultation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	TicketID       uuid.UUID `gorm:"column:ticket_id;type:uuid;not null;index"`
	PatientID      uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	PractitionerID uuid.UUID `gorm:"column:practitioner_id;type:uuid;not null;index"`

	StartedAt  time.Time  `gorm:"column:started_at;not null"`
	FinishedAt *time.Time `gorm:"column:finished_at"`

	Notes string `gorm:"column:notes;type:text"`
}

func (Consultation) TableName() string {
	return "clinical.consultations"
}

func (c *Consultation) IsOpen() bool {
	return c.FinishedAt == nil
}

func (c *Consultation) Finish(notes string, now time.Time) error {
	if !c.IsOpen() {
		return ErrAlreadyFinished
	}
	c.FinishedAt = &now
	if notes != "" {
		c.Notes = notes
	}
	return nil
}

type FinishCommand struct {
	Notes      string
	FinishedBy uuid.UUID
}
