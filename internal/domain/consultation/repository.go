package consultation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)

	// GetOpenByPractitioner returns the practitioner's unfinished
	// consultation, or ErrConsultationNotFound when there is none.
	GetOpenByPractitioner(ctx context.Context, practitionerID uuid.UUID) (*Consultation, error)

	Update(ctx context.Context, c *Consultation) error
}
