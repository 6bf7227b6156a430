package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medira/clinicflow/internal/config"
	"github.com/medira/clinicflow/internal/domain"
	"github.com/medira/clinicflow/internal/domain/patient"
	"github.com/medira/clinicflow/internal/domain/queue"
	"github.com/medira/clinicflow/pkg/metrics"
	"github.com/medira/clinicflow/pkg/redisclient"
)

// QueueService owns ticket issuance and the waiting/serving state machine.
// The wall clock is injected so day scoping and ticket numbering stay
// deterministic under test.
type QueueService struct {
	repo        queue.Repository
	patientRepo patient.Repository
	counter     redisclient.TicketCounter
	auditSvc    *AuditService
	collector   *metrics.Collector
	clinical    config.ClinicalConfig
	now         func() time.Time
	log         *zap.Logger
}

func NewQueueService(
	repo queue.Repository,
	patientRepo patient.Repository,
	counter redisclient.TicketCounter,
	auditSvc *AuditService,
	collector *metrics.Collector,
	clinical config.ClinicalConfig,
	now func() time.Time,
	log *zap.Logger,
) *QueueService {
	if now == nil {
		now = time.Now
	}
	return &QueueService{
		repo:        repo,
		patientRepo: patientRepo,
		counter:     counter,
		auditSvc:    auditSvc,
		collector:   collector,
		clinical:    clinical,
		now:         now,
		log:         log,
	}
}

// operatingDay returns the day key tickets are numbered against and the
// [start, end) bounds of that day in the clinic's timezone.
func (s *QueueService) operatingDay() (string, time.Time, time.Time) {
	loc := s.clinical.Location()
	now := s.now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return now.Format("2006-01-02"), start, start.Add(24 * time.Hour)
}

// CheckIn admits a patient to today's queue and issues the next day-scoped
// ticket code. Concurrent check-ins get distinct codes; the counter is a
// single atomic increment per call.
func (s *QueueService) CheckIn(ctx context.Context, cmd *queue.CheckInCommand, actor *domain.Claims, ip string) (*queue.Ticket, error) {
	if !actor.Role.CanCheckIn() {
		return nil, ErrForbidden
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return nil, patient.ErrPatientInactive
	}
	name := cmd.PatientName
	if name == "" {
		name = p.FullName()
	}

	day, _, _ := s.operatingDay()
	seq, err := s.counter.Next(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("issuing ticket number: %w", err)
	}

	t := &queue.Ticket{
		Code:           fmt.Sprintf("%s-%03d", s.clinical.TicketPrefix, seq),
		PatientID:      cmd.PatientID,
		PatientName:    name,
		PractitionerID: cmd.PractitionerID,
		AppointmentID:  cmd.AppointmentID,
		Status:         queue.StatusWaiting,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		s.log.Error("failed to create queue ticket", zap.Error(err))
		return nil, fmt.Errorf("creating queue ticket: %w", err)
	}

	s.collector.TicketsIssuedTotal.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actor.UserID,
		UserRole:     string(actor.Role),
		Action:       "create",
		ResourceType: "queue_ticket",
		ResourceID:   t.ID.String(),
		IPAddress:    ip,
	})

	return t, nil
}

// ChangeStatus validates and applies one transition of the ticket state
// machine. The write is conditional on the prior status, so a concurrent
// actor moving the same ticket surfaces as ErrInvalidStatusTransition rather
// than a lost update.
func (s *QueueService) ChangeStatus(ctx context.Context, ticketID uuid.UUID, newStatus queue.Status, actor *domain.Claims, ip string) (*queue.Ticket, error) {
	if err := s.authorizeTransition(newStatus, actor.Role); err != nil {
		return nil, err
	}

	t, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	prior := t.Status
	if err := t.Advance(newStatus, s.now()); err != nil {
		s.collector.QueueTransitionsTotal.WithLabelValues(string(newStatus), "rejected").Inc()
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, t, prior); err != nil {
		s.collector.QueueTransitionsTotal.WithLabelValues(string(newStatus), "rejected").Inc()
		return nil, err
	}

	s.collector.QueueTransitionsTotal.WithLabelValues(string(newStatus), "applied").Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actor.UserID,
		UserRole:     string(actor.Role),
		Action:       "update",
		ResourceType: "queue_ticket",
		ResourceID:   t.ID.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"status":{"from":%q,"to":%q}}`, prior, newStatus),
	})

	return t, nil
}

// authorizeTransition re-validates the actor role even though the handler
// layer already gates routes: only doctors take patients into service.
func (s *QueueService) authorizeTransition(newStatus queue.Status, role domain.Role) error {
	switch newStatus {
	case queue.StatusInService:
		if role != domain.RoleDoctor {
			return ErrForbidden
		}
	case queue.StatusDone:
		if role != domain.RoleDoctor && role != domain.RoleAdmin {
			return ErrForbidden
		}
	case queue.StatusCalled, queue.StatusNoShow:
		if role != domain.RoleDoctor && !role.CanCheckIn() {
			return ErrForbidden
		}
	case queue.StatusWaiting:
		// Never a legal target; let the state machine reject it so the
		// caller sees an invalid transition, not a permission error.
	}
	return nil
}

// List returns today's tickets. With a practitioner id the result is that
// practitioner's assigned tickets plus unassigned walk-ins.
func (s *QueueService) List(ctx context.Context, practitionerID *uuid.UUID) ([]*queue.Ticket, error) {
	_, dayStart, dayEnd := s.operatingDay()
	return s.repo.List(ctx, &queue.ListQuery{
		PractitionerID: practitionerID,
		DayStart:       dayStart,
		DayEnd:         dayEnd,
	})
}

// BoardSnapshot is the waiting-room display projection. Consumers poll it
// periodically; no push contract.
type BoardSnapshot struct {
	Called  []*queue.Ticket `json:"called"`
	Waiting []*queue.Ticket `json:"waiting"`
}

func (s *QueueService) Board(ctx context.Context) (*BoardSnapshot, error) {
	tickets, err := s.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	s.collector.BoardRequestsTotal.Inc()

	snap := &BoardSnapshot{
		Called:  []*queue.Ticket{},
		Waiting: []*queue.Ticket{},
	}
	for _, t := range tickets {
		switch t.Status {
		case queue.StatusCalled:
			snap.Called = append(snap.Called, t)
		case queue.StatusWaiting:
			snap.Waiting = append(snap.Waiting, t)
		}
	}
	return snap, nil
}

// AbandonByAppointment releases the ticket linked to a cancelled appointment
// by marking it no-show, when that cascade is enabled. Tickets already in
// service or terminal are left alone.
func (s *QueueService) AbandonByAppointment(ctx context.Context, appointmentID uuid.UUID, actor *domain.Claims) error {
	t, err := s.repo.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !t.CanTransitionTo(queue.StatusNoShow) {
		return nil
	}

	prior := t.Status
	if err := t.Advance(queue.StatusNoShow, s.now()); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, t, prior); err != nil {
		return err
	}

	s.collector.QueueTransitionsTotal.WithLabelValues(string(queue.StatusNoShow), "applied").Inc()
	return nil
}
