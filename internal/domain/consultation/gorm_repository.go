package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, c *Consultation) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("inserting consultation: %w", err)
	}
	return nil
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	var c Consultation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultationNotFound
		}
		return nil, fmt.Errorf("loading consultation: %w", err)
	}
	return &c, nil
}

func (r *GormRepository) GetOpenByPractitioner(ctx context.Context, practitionerID uuid.UUID) (*Consultation, error) {
	var c Consultation
	err := r.db.WithContext(ctx).
		Where("practitioner_id = ? AND finished_at IS NULL", practitionerID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultationNotFound
		}
		return nil, fmt.Errorf("loading open consultation: %w", err)
	}
	return &c, nil
}

func (r *GormRepository) Update(ctx context.Context, c *Consultation) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("updating consultation: %w", err)
	}
	return nil
}
