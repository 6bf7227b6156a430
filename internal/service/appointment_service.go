package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medira/clinicflow/internal/config"
	"github.com/medira/clinicflow/internal/domain"
	"github.com/medira/clinicflow/internal/domain/appointment"
	"github.com/medira/clinicflow/internal/domain/patient"
	"github.com/medira/clinicflow/internal/domain/queue"
	"github.com/medira/clinicflow/pkg/metrics"
	"github.com/medira/clinicflow/pkg/redisclient"
)

// ErrCalendarBusy is returned when another booking for the same practitioner
// holds the calendar lock. The caller should simply retry.
var ErrCalendarBusy = errors.New("calendar is busy, please retry")

type AppointmentService struct {
	repo        appointment.Repository
	patientRepo patient.Repository
	queueSvc    *QueueService
	locker      redisclient.Locker
	auditSvc    *AuditService
	collector   *metrics.Collector
	clinical    config.ClinicalConfig
	log         *zap.Logger
}

func NewAppointmentService(
	repo appointment.Repository,
	patientRepo patient.Repository,
	queueSvc *QueueService,
	locker redisclient.Locker,
	auditSvc *AuditService,
	collector *metrics.Collector,
	clinical config.ClinicalConfig,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:        repo,
		patientRepo: patientRepo,
		queueSvc:    queueSvc,
		locker:      locker,
		auditSvc:    auditSvc,
		collector:   collector,
		clinical:    clinical,
		log:         log,
	}
}

// CheckConflict reports whether [start, end) overlaps any non-cancelled
// appointment of the practitioner. Pure query; safe to call concurrently.
func (s *AppointmentService) CheckConflict(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (bool, error) {
	return s.repo.HasConflict(ctx, practitionerID, start, end, nil)
}

// Schedule books an appointment. The conflict check and the insert run inside
// a per-practitioner lock so two concurrent bookings for overlapping
// intervals cannot both succeed.
func (s *AppointmentService) Schedule(ctx context.Context, cmd *appointment.ScheduleCommand, actor *domain.Claims, ip string) (*appointment.Appointment, error) {
	if !actor.Role.CanSchedule() {
		return nil, ErrForbidden
	}
	if !cmd.EndsAt.After(cmd.StartsAt) {
		return nil, appointment.ErrInvalidInterval
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return nil, patient.ErrPatientInactive
	}
	if cmd.PatientName == "" {
		cmd.PatientName = p.FullName()
	}

	var created *appointment.Appointment

	err = s.locker.WithCalendarLock(ctx, cmd.PractitionerID, func(lockCtx context.Context) error {
		conflict, err := s.repo.HasConflict(lockCtx, cmd.PractitionerID, cmd.StartsAt, cmd.EndsAt, nil)
		if err != nil {
			return fmt.Errorf("checking conflicts: %w", err)
		}
		if conflict {
			return appointment.ErrAppointmentConflict
		}

		a := &appointment.Appointment{
			PractitionerID: cmd.PractitionerID,
			PatientID:      cmd.PatientID,
			PatientName:    cmd.PatientName,
			StartsAt:       cmd.StartsAt,
			EndsAt:         cmd.EndsAt,
			Status:         appointment.StatusScheduled,
			Notes:          cmd.Notes,
			CreatedBy:      cmd.CreatedBy,
		}
		if err := s.repo.Create(lockCtx, a); err != nil {
			s.log.Error("failed to create appointment", zap.Error(err))
			return fmt.Errorf("creating appointment: %w", err)
		}

		created = a
		return nil
	})
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentConflict) {
			s.collector.BookingConflictsTotal.Inc()
		}
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.collector.AppointmentsTotal.WithLabelValues(string(appointment.StatusScheduled)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actor.UserID,
		UserRole:     string(actor.Role),
		Action:       "create",
		ResourceType: "appointment",
		ResourceID:   created.ID.String(),
		IPAddress:    ip,
	})

	return created, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Cancel soft-cancels an appointment. The record stays in the store and drops
// out of conflict checks and listings. When Clinical.CancelLinkedTicket is
// set, a checked-in ticket for this appointment is marked no-show too.
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID, cmd *appointment.CancelCommand, actor *domain.Claims, ip string) (*appointment.Appointment, error) {
	if !actor.Role.CanSchedule() {
		return nil, ErrForbidden
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prior := a.Status
	if err := a.Cancel(cmd.Reason, cmd.CancelledBy); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a, prior); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.collector.AppointmentsTotal.WithLabelValues(string(appointment.StatusCancelled)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actor.UserID, UserRole: string(actor.Role),
		Action: "update", ResourceType: "appointment", ResourceID: id.String(), IPAddress: ip,
		Changes: fmt.Sprintf(`{"status":"cancelled","reason":%q}`, cmd.Reason),
	})

	if s.clinical.CancelLinkedTicket && s.queueSvc != nil {
		if err := s.queueSvc.AbandonByAppointment(ctx, a.ID, actor); err != nil &&
			!errors.Is(err, queue.ErrTicketNotFound) {
			s.log.Warn("cancelled appointment but linked ticket was not released",
				zap.String("appointment_id", a.ID.String()), zap.Error(err))
		}
	}

	return a, nil
}

// Complete marks the appointment completed once its linked visit concludes.
func (s *AppointmentService) Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prior := a.Status
	if err := a.Complete(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a, prior); err != nil {
		return nil, err
	}

	s.collector.AppointmentsTotal.WithLabelValues(string(appointment.StatusCompleted)).Inc()
	return a, nil
}

// List returns non-cancelled appointments sorted ascending by start time.
// Doctors are scoped to their own calendar.
func (s *AppointmentService) List(ctx context.Context, q *appointment.ListQuery, actor *domain.Claims) ([]*appointment.Appointment, error) {
	if actor.Role == domain.RoleDoctor && actor.PractitionerID != nil {
		q.PractitionerID = actor.PractitionerID
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, &ValidationError{Fields: []string{"range end precedes range start"}}
	}
	return s.repo.List(ctx, q)
}
