package queue

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

func (r *GormRepository) Create(ctx context.Context, t *Ticket) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("inserting queue ticket: %w", err)
	}
	return nil
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var t Ticket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("loading queue ticket: %w", err)
	}
	return &t, nil
}

func (r *GormRepository) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Ticket, error) {
	var t Ticket
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("loading queue ticket by appointment: %w", err)
	}
	return &t, nil
}

func (r *GormRepository) List(ctx context.Context, q *ListQuery) ([]*Ticket, error) {
	tx := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", q.DayStart, q.DayEnd)

	if q.PractitionerID != nil {
		tx = tx.Where("practitioner_id = ? OR practitioner_id IS NULL", *q.PractitionerID)
	}

	var result []*Ticket
	if err := tx.Order("code ASC").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("listing queue tickets: %w", err)
	}
	return result, nil
}

func (r *GormRepository) UpdateStatus(ctx context.Context, t *Ticket, from Status) error {
	res := r.db.WithContext(ctx).
		Model(&Ticket{}).
		Where("id = ? AND status = ?", t.ID, from).
		Updates(map[string]any{
			"status":      t.Status,
			"called_at":   t.CalledAt,
			"started_at":  t.StartedAt,
			"finished_at": t.FinishedAt,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating queue ticket status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidStatusTransition
	}
	return nil
}
