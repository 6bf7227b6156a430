package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// List returns non-cancelled appointments matching the query, sorted
	// ascending by StartsAt.
	List(ctx context.Context, q *ListQuery) ([]*Appointment, error)

	// HasConflict checks whether a practitioner already has a non-cancelled
	// appointment overlapping [start, end).
	HasConflict(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)

	// UpdateStatus persists a status change conditionally on the prior
	// status. Returns ErrInvalidStatusTransition if another writer moved the
	// row first.
	UpdateStatus(ctx context.Context, a *Appointment, from Status) error
}
