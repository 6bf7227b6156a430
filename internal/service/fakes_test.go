package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medira/clinicflow/internal/config"
	"github.com/medira/clinicflow/internal/domain"
	"github.com/medira/clinicflow/internal/domain/appointment"
	"github.com/medira/clinicflow/internal/domain/consultation"
	"github.com/medira/clinicflow/internal/domain/patient"
	"github.com/medira/clinicflow/internal/domain/queue"
	"github.com/medira/clinicflow/pkg/metrics"
)

// The collector registers against the default prometheus registry, so tests
// share a single instance.
var (
	testCollectorOnce sync.Once
	testCollector     *metrics.Collector
)

func sharedCollector() *metrics.Collector {
	testCollectorOnce.Do(func() {
		testCollector = metrics.NewCollector("clinicflow_test")
	})
	return testCollector
}

func testClinicalConfig() config.ClinicalConfig {
	return config.ClinicalConfig{
		TicketPrefix:              "A",
		DayLocation:               "UTC",
		CancelLinkedTicket:        false,
		CompleteLinkedAppointment: true,
	}
}

// fakeAppointmentRepo is a mutex-guarded in-memory appointment.Repository.
type fakeAppointmentRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*appointment.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{items: map[uuid.UUID]*appointment.Appointment{}}
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, q *appointment.ListQuery) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*appointment.Appointment
	for _, a := range r.items {
		if a.Status == appointment.StatusCancelled {
			continue
		}
		if q.PractitionerID != nil && a.PractitionerID != *q.PractitionerID {
			continue
		}
		if q.From != nil && a.StartsAt.Before(*q.From) {
			continue
		}
		if q.To != nil && a.StartsAt.After(*q.To) {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (r *fakeAppointmentRepo) HasConflict(_ context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.PractitionerID != practitionerID || a.Status == appointment.StatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAppointmentRepo) UpdateStatus(_ context.Context, a *appointment.Appointment, from appointment.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if existing.Status != from {
		return appointment.ErrInvalidStatusTransition
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

// fakeQueueRepo is a mutex-guarded in-memory queue.Repository with the same
// conditional-update contract as the real store.
type fakeQueueRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*queue.Ticket
	now   func() time.Time
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: map[uuid.UUID]*queue.Ticket{}, now: time.Now}
}

func (r *fakeQueueRepo) Create(_ context.Context, t *queue.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeQueueRepo) GetByID(_ context.Context, id uuid.UUID) (*queue.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, queue.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeQueueRepo) GetByAppointmentID(_ context.Context, appointmentID uuid.UUID) (*queue.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.AppointmentID != nil && *t.AppointmentID == appointmentID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, queue.ErrTicketNotFound
}

func (r *fakeQueueRepo) List(_ context.Context, q *queue.ListQuery) ([]*queue.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*queue.Ticket
	for _, t := range r.items {
		if t.CreatedAt.Before(q.DayStart) || !t.CreatedAt.Before(q.DayEnd) {
			continue
		}
		if q.PractitionerID != nil && t.PractitionerID != nil && *t.PractitionerID != *q.PractitionerID {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r *fakeQueueRepo) UpdateStatus(_ context.Context, t *queue.Ticket, from queue.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[t.ID]
	if !ok {
		return queue.ErrTicketNotFound
	}
	if existing.Status != from {
		return queue.ErrInvalidStatusTransition
	}
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

// force sets a ticket status directly, bypassing the state machine, to set up
// lost-update and cascade-failure scenarios.
func (r *fakeQueueRepo) force(id uuid.UUID, status queue.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.items[id]; ok {
		t.Status = status
	}
}

type fakePatientRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*patient.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{items: map[uuid.UUID]*patient.Patient{}}
}

func (r *fakePatientRepo) add(p *patient.Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = patient.StatusActive
	}
	r.items[p.ID] = p
}

func (r *fakePatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

type fakeConsultationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*consultation.Consultation
}

func newFakeConsultationRepo() *fakeConsultationRepo {
	return &fakeConsultationRepo{items: map[uuid.UUID]*consultation.Consultation{}}
}

func (r *fakeConsultationRepo) Create(_ context.Context, c *consultation.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeConsultationRepo) GetByID(_ context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, consultation.ErrConsultationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConsultationRepo) GetOpenByPractitioner(_ context.Context, practitionerID uuid.UUID) (*consultation.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.PractitionerID == practitionerID && c.FinishedAt == nil {
			cp := *c
			return &cp, nil
		}
	}
	return nil, consultation.ErrConsultationNotFound
}

func (r *fakeConsultationRepo) Update(_ context.Context, c *consultation.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return consultation.ErrConsultationNotFound
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// fakeLocker serializes critical sections with one mutex per practitioner,
// matching the exclusion the redis lock provides.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: map[uuid.UUID]*sync.Mutex{}}
}

func (l *fakeLocker) WithCalendarLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[practitionerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[practitionerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// fakeCounter is an atomic per-day sequence, like the redis INCR it stands
// in for.
type fakeCounter struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{seqs: map[string]int64{}}
}

func (c *fakeCounter) Next(_ context.Context, day string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqs[day]++
	return c.seqs[day], nil
}

func newTestAuditService() *AuditService {
	return NewAuditService(&fakeAuditRepo{}, sharedCollector(), zap.NewNop())
}

func doctorClaims(practitionerID uuid.UUID) *domain.Claims {
	return &domain.Claims{
		UserID:         uuid.New(),
		Role:           domain.RoleDoctor,
		PractitionerID: &practitionerID,
	}
}

func receptionistClaims() *domain.Claims {
	return &domain.Claims{UserID: uuid.New(), Role: domain.RoleReceptionist}
}
