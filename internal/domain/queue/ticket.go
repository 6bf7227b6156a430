package queue

import (
	"time"

	"github.com/google/uuid"
)

// State transitions possibilities:
//
//	waiting → called → in_service → done
//	waiting → no_show (patient left before being called)
//	called  → no_show (patient did not respond to the call)
//
// Done and no_show are terminal. A ticket never re-enters waiting once it has
// advanced, and terminal tickets are kept for the day's history.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusInService Status = "in_service"
	StatusDone      Status = "done"
	StatusNoShow    Status = "no_show"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusInService, StatusDone, StatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined out of s.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusNoShow
}

type Ticket struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// Code is the human-facing ticket number, sequential within the
	// operating day ("A-041"). Unique per day, reset at the day boundary.
	Code string `gorm:"column:code;type:varchar(20);not null;index"`

	PatientID   uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	PatientName string    `gorm:"column:patient_name;type:varchar(200);not null"`

	// PractitionerID is nil for walk-ins that any practitioner may claim.
	PractitionerID *uuid.UUID `gorm:"column:practitioner_id;type:uuid;index"`

	// AppointmentID links tickets created from an appointment arrival.
	AppointmentID *uuid.UUID `gorm:"column:appointment_id;type:uuid;index"`

	Status Status `gorm:"column:status;type:varchar(20);not null;default:'waiting';index"`

	CalledAt   *time.Time `gorm:"column:called_at"`
	StartedAt  *time.Time `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (Ticket) TableName() string {
	return "clinical.queue_tickets"
}

func (t *Ticket) CanTransitionTo(newStatus Status) bool {
	allowed := map[Status][]Status{
		StatusWaiting:   {StatusCalled, StatusNoShow},
		StatusCalled:    {StatusInService, StatusNoShow},
		StatusInService: {StatusDone},
		StatusDone:      {},
		StatusNoShow:    {},
	}

	for _, s := range allowed[t.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// Advance applies a validated transition and stamps the matching timestamp.
// The caller persists the change conditionally on the prior status.
func (t *Ticket) Advance(newStatus Status, now time.Time) error {
	if !newStatus.IsValid() {
		return ErrInvalidStatus
	}
	if !t.CanTransitionTo(newStatus) {
		return ErrInvalidStatusTransition
	}

	t.Status = newStatus
	switch newStatus {
	case StatusCalled:
		t.CalledAt = &now
	case StatusInService:
		t.StartedAt = &now
	case StatusDone, StatusNoShow:
		t.FinishedAt = &now
	}
	return nil
}

type CheckInCommand struct {
	PatientID      uuid.UUID
	PatientName    string
	PractitionerID *uuid.UUID
	AppointmentID  *uuid.UUID
}

// ListQuery scopes tickets to one operating day. With a practitioner id the
// result is that practitioner's tickets plus unassigned ones.
type ListQuery struct {
	PractitionerID *uuid.UUID
	DayStart       time.Time
	DayEnd         time.Time
}
