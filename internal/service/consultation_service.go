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
	"github.com/medira/clinicflow/internal/domain/consultation"
	"github.com/medira/clinicflow/internal/domain/queue"
)

// ConsultationService coordinates the visit lifecycle with the queue engine:
// taking a ticket into service opens a consultation, finishing the
// consultation retires the ticket.
type ConsultationService struct {
	repo           consultation.Repository
	queueSvc       *QueueService
	appointmentSvc *AppointmentService
	auditSvc       *AuditService
	clinical       config.ClinicalConfig
	now            func() time.Time
	log            *zap.Logger
}

func NewConsultationService(
	repo consultation.Repository,
	queueSvc *QueueService,
	appointmentSvc *AppointmentService,
	auditSvc *AuditService,
	clinical config.ClinicalConfig,
	now func() time.Time,
	log *zap.Logger,
) *ConsultationService {
	if now == nil {
		now = time.Now
	}
	return &ConsultationService{
		repo:           repo,
		queueSvc:       queueSvc,
		appointmentSvc: appointmentSvc,
		auditSvc:       auditSvc,
		clinical:       clinical,
		now:            now,
		log:            log,
	}
}

// Start opens a consultation on a queue ticket. The ticket is driven to
// in_service before the consultation exists; a waiting ticket passes through
// called first. A ticket that cannot reach in_service fails the whole
// operation with no consultation created.
func (s *ConsultationService) Start(ctx context.Context, ticketID uuid.UUID, actor *domain.Claims, ip string) (*consultation.Consultation, error) {
	if actor.Role != domain.RoleDoctor || actor.PractitionerID == nil {
		return nil, ErrForbidden
	}
	practitionerID := *actor.PractitionerID

	if _, err := s.repo.GetOpenByPractitioner(ctx, practitionerID); err == nil {
		return nil, consultation.ErrPractitionerBusy
	} else if !errors.Is(err, consultation.ErrConsultationNotFound) {
		return nil, fmt.Errorf("checking open consultation: %w", err)
	}

	t, err := s.queueSvc.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	// Reject before touching the ticket so an illegal start leaves no trace.
	if t.Status != queue.StatusWaiting && t.Status != queue.StatusCalled {
		return nil, queue.ErrInvalidStatusTransition
	}

	if t.Status == queue.StatusWaiting {
		if t, err = s.queueSvc.ChangeStatus(ctx, ticketID, queue.StatusCalled, actor, ip); err != nil {
			return nil, err
		}
	}
	if t, err = s.queueSvc.ChangeStatus(ctx, ticketID, queue.StatusInService, actor, ip); err != nil {
		return nil, err
	}

	c := &consultation.Consultation{
		TicketID:       t.ID,
		PatientID:      t.PatientID,
		PractitionerID: practitionerID,
		StartedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		// The ticket is already in service; there is no legal transition
		// back, so surface the inconsistency instead of hiding it.
		s.log.Error("consultation insert failed after ticket entered service",
			zap.String("ticket_id", t.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("creating consultation: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actor.UserID,
		UserRole:     string(actor.Role),
		Action:       "create",
		ResourceType: "consultation",
		ResourceID:   c.ID.String(),
		IPAddress:    ip,
	})

	return c, nil
}

func (s *ConsultationService) GetConsultation(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// Finish closes the consultation and cascades the ticket to done. The
// consultation commit is never rolled back by a cascade failure; instead the
// failure is returned as a *TicketUpdateError alongside the finished
// consultation so the operator sees the stranded ticket.
func (s *ConsultationService) Finish(ctx context.Context, id uuid.UUID, cmd *consultation.FinishCommand, actor *domain.Claims, ip string) (*consultation.Consultation, error) {
	if actor.Role != domain.RoleDoctor && actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleDoctor &&
		(actor.PractitionerID == nil || *actor.PractitionerID != c.PractitionerID) {
		return nil, ErrForbidden
	}

	if err := c.Finish(cmd.Notes, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("finishing consultation: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actor.UserID,
		UserRole:     string(actor.Role),
		Action:       "update",
		ResourceType: "consultation",
		ResourceID:   c.ID.String(),
		IPAddress:    ip,
		Changes:      `{"finished":true}`,
	})

	ticket, err := s.retireTicket(ctx, c.TicketID, actor, ip)
	if err != nil {
		s.log.Error("consultation finished but ticket update failed",
			zap.String("consultation_id", c.ID.String()),
			zap.String("ticket_id", c.TicketID.String()),
			zap.Error(err))
		return c, &TicketUpdateError{TicketID: c.TicketID, Err: err}
	}

	if s.clinical.CompleteLinkedAppointment && ticket != nil && ticket.AppointmentID != nil {
		if _, err := s.appointmentSvc.Complete(ctx, *ticket.AppointmentID); err != nil {
			s.log.Warn("consultation finished but linked appointment was not completed",
				zap.String("appointment_id", ticket.AppointmentID.String()), zap.Error(err))
		}
	}

	return c, nil
}

func (s *ConsultationService) retireTicket(ctx context.Context, ticketID uuid.UUID, actor *domain.Claims, ip string) (*queue.Ticket, error) {
	t, err := s.queueSvc.ChangeStatus(ctx, ticketID, queue.StatusDone, actor, ip)
	if err != nil {
		return nil, err
	}
	return t, nil
}
