package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, a *Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("loading appointment: %w", err)
	}
	return &a, nil
}

func (r *GormRepository) List(ctx context.Context, q *ListQuery) ([]*Appointment, error) {
	tx := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Where("status <> ?", StatusCancelled)

	if q.PractitionerID != nil {
		tx = tx.Where("practitioner_id = ?", *q.PractitionerID)
	}
	if q.From != nil {
		tx = tx.Where("starts_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("starts_at <= ?", *q.To)
	}

	var result []*Appointment
	if err := tx.Order("starts_at ASC").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	return result, nil
}

func (r *GormRepository) HasConflict(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("practitioner_id = ?", practitionerID).
		Where("deleted_at IS NULL").
		Where("status <> ?", StatusCancelled).
		Where("starts_at < ? AND ends_at > ?", end, start)

	if excludeID != nil {
		tx = tx.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking conflicts: %w", err)
	}
	return count > 0, nil
}

// UpdateStatus is a conditional update on the prior status so that two
// concurrent writers cannot both move the same row.
func (r *GormRepository) UpdateStatus(ctx context.Context, a *Appointment, from Status) error {
	res := r.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", a.ID, from).
		Updates(map[string]any{
			"status":              a.Status,
			"cancelled_at":        a.CancelledAt,
			"cancellation_reason": a.CancellationReason,
			"cancelled_by":        a.CancelledBy,
			"completed_at":        a.CompletedAt,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidStatusTransition
	}
	return nil
}
