package appointment

import (
	"time"

	"github.com/google/uuid"
)

// State transitions possibilities:
//
//	scheduled → completed (linked visit concluded)
//	scheduled → cancelled
//
// Cancelled and completed are terminal. A cancelled appointment stays in the
// store for history but is excluded from conflict checks and listings.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PractitionerID uuid.UUID `gorm:"column:practitioner_id;type:uuid;not null;index"`
	PatientID      uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	// PatientName is denormalized so calendar views and the day sheet render
	// without a registry join.
	PatientName string `gorm:"column:patient_name;type:varchar(200);not null"`

	StartsAt time.Time `gorm:"column:starts_at;not null;index"`
	EndsAt   time.Time `gorm:"column:ends_at;not null"`
	Status   Status    `gorm:"column:status;type:varchar(30);not null;default:'scheduled';index"`
	Notes    string    `gorm:"column:notes;type:text"`

	// Cancellation tracking
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid"`

	CompletedAt *time.Time `gorm:"column:completed_at"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

// Overlaps reports whether the appointment's [StartsAt, EndsAt) interval
// intersects [start, end). Touching boundaries do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartsAt.Before(end) && a.EndsAt.After(start)
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	allowed := map[Status][]Status{
		StatusScheduled: {StatusCancelled, StatusCompleted},
		StatusCancelled: {},
		StatusCompleted: {},
	}

	for _, s := range allowed[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

func (a *Appointment) Cancel(reason string, cancelledBy uuid.UUID) error {
	if !a.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	a.CancelledBy = &cancelledBy
	return nil
}

func (a *Appointment) Complete() error {
	if !a.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return nil
}

type ScheduleCommand struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	PatientName    string
	StartsAt       time.Time
	EndsAt         time.Time
	Notes          string
	CreatedBy      uuid.UUID
}

type CancelCommand struct {
	Reason      string
	CancelledBy uuid.UUID
}

// ListQuery filters the calendar. From/To bound StartsAt inclusively on both
// ends. Cancelled appointments are always excluded.
type ListQuery struct {
	PractitionerID *uuid.UUID
	From           *time.Time
	To             *time.Time
}
