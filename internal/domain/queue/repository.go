package queue

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Ticket, error)

	// List returns the day's tickets ordered by code.
	List(ctx context.Context, q *ListQuery) ([]*Ticket, error)

	// UpdateStatus persists a transition conditionally on the prior status
	// (lost-update prevention). Returns ErrInvalidStatusTransition if the
	// row was moved by another writer in between.
	UpdateStatus(ctx context.Context, t *Ticket, from Status) error
}
