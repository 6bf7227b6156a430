package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medira/clinicflow/internal/domain/appointment"
	"github.com/medira/clinicflow/internal/domain/patient"
)

func ts(hour, min int) time.Time {
	return time.Date(2026, 2, 21, hour, min, 0, 0, time.UTC)
}

type appointmentFixture struct {
	svc      *AppointmentService
	repo     *fakeAppointmentRepo
	patients *fakePatientRepo
	patient  *patient.Patient
}

func newAppointmentFixture(t *testing.T) *appointmentFixture {
	t.Helper()
	repo := newFakeAppointmentRepo()
	patients := newFakePatientRepo()
	p := &patient.Patient{FirstName: "Maya", LastName: "Okafor"}
	patients.add(p)

	svc := NewAppointmentService(
		repo, patients, nil, newFakeLocker(), newTestAuditService(),
		sharedCollector(), testClinicalConfig(), zap.NewNop(),
	)
	return &appointmentFixture{svc: svc, repo: repo, patients: patients, patient: p}
}

func (f *appointmentFixture) schedule(t *testing.T, practitionerID uuid.UUID, start, end time.Time) *appointment.Appointment {
	t.Helper()
	actor := receptionistClaims()
	a, err := f.svc.Schedule(context.Background(), &appointment.ScheduleCommand{
		PractitionerID: practitionerID,
		PatientID:      f.patient.ID,
		StartsAt:       start,
		EndsAt:         end,
		CreatedBy:      actor.UserID,
	}, actor, "10.0.0.1")
	require.NoError(t, err)
	return a
}

func TestScheduleRejectsOverlappingBooking(t *testing.T) {
	f := newAppointmentFixture(t)
	drID := uuid.New()

	f.schedule(t, drID, ts(9, 0), ts(9, 30))

	actor := receptionistClaims()
	_, err := f.svc.Schedule(context.Background(), &appointment.ScheduleCommand{
		PractitionerID: drID,
		PatientID:      f.patient.ID,
		StartsAt:       ts(9, 15),
		EndsAt:         ts(9, 45),
		CreatedBy:      actor.UserID,
	}, actor, "10.0.0.1")
	assert.ErrorIs(t, err, appointment.ErrAppointmentConflict)

	// Touching the previous booking's end is not an overlap.
	a := f.schedule(t, drID, ts(9, 30), ts(10, 0))
	assert.Equal(t, appointment.StatusScheduled, a.Status)
}

func TestScheduleAllowsSameSlotForOtherPractitioner(t *testing.T) {
	f := newAppointmentFixture(t)

	f.schedule(t, uuid.New(), ts(9, 0), ts(9, 30))
	a := f.schedule(t, uuid.New(), ts(9, 0), ts(9, 30))
	assert.NotNil(t, a)
}

func TestScheduleRejectsEmptyOrInvertedInterval(t *testing.T) {
	f := newAppointmentFixture(t)
	actor := receptionistClaims()

	for _, tt := range []struct {
		name       string
		start, end time.Time
	}{
		{"zero length", ts(9, 0), ts(9, 0)},
		{"end before start", ts(9, 30), ts(9, 0)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Schedule(context.Background(), &appointment.ScheduleCommand{
				PractitionerID: uuid.New(),
				PatientID:      f.patient.ID,
				StartsAt:       tt.start,
				EndsAt:         tt.end,
			}, actor, "")
			assert.ErrorIs(t, err, appointment.ErrInvalidInterval)
		})
	}
}

func TestScheduleForbiddenForDoctor(t *testing.T) {
	f := newAppointmentFixture(t)

	_, err := f.svc.Schedule(context.Background(), &appointment.ScheduleCommand{
		PractitionerID: uuid.New(),
		PatientID:      f.patient.ID,
		StartsAt:       ts(9, 0),
		EndsAt:         ts(9, 30),
	}, doctorClaims(uuid.New()), "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestScheduleRejectsInactivePatient(t *testing.T) {
	f := newAppointmentFixture(t)
	inactive := &patient.Patient{FirstName: "Jo", LastName: "Reyes", Status: patient.StatusInactive}
	f.patients.add(inactive)

	_, err := f.svc.Schedule(context.Background(), &appointment.ScheduleCommand{
		PractitionerID: uuid.New(),
		PatientID:      inactive.ID,
		StartsAt:       ts(9, 0),
		EndsAt:         ts(9, 30),
	}, receptionistClaims(), "")
	assert.ErrorIs(t, err, patient.ErrPatientInactive)
}

func TestScheduleDenormalizesPatientName(t *testing.T) {
	f := newAppointmentFixture(t)
	a := f.schedule(t, uuid.New(), ts(11, 0), ts(11, 30))
	assert.Equal(t, "Maya Okafor", a.PatientName)
}

// TestScheduleConcurrentSameSlot races many bookings for one slot through the
// calendar lock. Exactly one may win.
func TestScheduleConcurrentSameSlot(t *testing.T) {
	f := newAppointmentFixture(t)
	drID := uuid.New()
	actor := receptionistClaims()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Schedule(context.Background(), &appointment.ScheduleCommand{
				PractitionerID: drID,
				PatientID:      f.patient.ID,
				StartsAt:       ts(14, 0),
				EndsAt:         ts(14, 30),
				CreatedBy:      actor.UserID,
			}, actor, "")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, appointment.ErrAppointmentConflict)
		}
	}
	assert.Equal(t, 1, won)
}

func TestCheckConflict(t *testing.T) {
	f := newAppointmentFixture(t)
	drID := uuid.New()
	f.schedule(t, drID, ts(9, 0), ts(9, 30))

	conflict, err := f.svc.CheckConflict(context.Background(), drID, ts(9, 15), ts(9, 45))
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = f.svc.CheckConflict(context.Background(), drID, ts(9, 30), ts(10, 0))
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newAppointmentFixture(t)
	drID := uuid.New()
	actor := receptionistClaims()

	a := f.schedule(t, drID, ts(9, 0), ts(9, 30))

	cancelled, err := f.svc.Cancel(context.Background(), a.ID, &appointment.CancelCommand{
		Reason:      "patient rescheduled",
		CancelledBy: actor.UserID,
	}, actor, "")
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)

	// The record is out of conflict checks and listings, so the slot can be
	// booked again.
	conflict, err := f.svc.CheckConflict(context.Background(), drID, ts(9, 0), ts(9, 30))
	require.NoError(t, err)
	assert.False(t, conflict)

	listed, err := f.svc.List(context.Background(), &appointment.ListQuery{}, actor)
	require.NoError(t, err)
	assert.Empty(t, listed)

	f.schedule(t, drID, ts(9, 0), ts(9, 30))
}

func TestCancelCompletedAppointmentFails(t *testing.T) {
	f := newAppointmentFixture(t)
	a := f.schedule(t, uuid.New(), ts(9, 0), ts(9, 30))

	_, err := f.svc.Complete(context.Background(), a.ID)
	require.NoError(t, err)

	actor := receptionistClaims()
	_, err = f.svc.Cancel(context.Background(), a.ID, &appointment.CancelCommand{
		Reason: "too late", CancelledBy: actor.UserID,
	}, actor, "")
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestListFiltersByPractitionerAndRange(t *testing.T) {
	f := newAppointmentFixture(t)
	drA, drB := uuid.New(), uuid.New()

	f.schedule(t, drA, ts(9, 0), ts(9, 30))
	f.schedule(t, drA, ts(15, 0), ts(15, 30))
	f.schedule(t, drB, ts(10, 0), ts(10, 30))

	actor := receptionistClaims()
	from, to := ts(8, 0), ts(12, 0)

	listed, err := f.svc.List(context.Background(), &appointment.ListQuery{
		PractitionerID: &drA,
		From:           &from,
		To:             &to,
	}, actor)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, drA, listed[0].PractitionerID)
	assert.Equal(t, ts(9, 0), listed[0].StartsAt)
}

func TestListOrdersByStartTime(t *testing.T) {
	f := newAppointmentFixture(t)
	drID := uuid.New()

	f.schedule(t, drID, ts(15, 0), ts(15, 30))
	f.schedule(t, drID, ts(9, 0), ts(9, 30))
	f.schedule(t, drID, ts(11, 0), ts(11, 30))

	listed, err := f.svc.List(context.Background(), &appointment.ListQuery{PractitionerID: &drID}, receptionistClaims())
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.True(t, listed[0].StartsAt.Before(listed[1].StartsAt))
	assert.True(t, listed[1].StartsAt.Before(listed[2].StartsAt))
}

func TestListScopesDoctorToOwnCalendar(t *testing.T) {
	f := newAppointmentFixture(t)
	drA, drB := uuid.New(), uuid.New()

	f.schedule(t, drA, ts(9, 0), ts(9, 30))
	f.schedule(t, drB, ts(10, 0), ts(10, 30))

	listed, err := f.svc.List(context.Background(), &appointment.ListQuery{PractitionerID: &drB}, doctorClaims(drA))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, drA, listed[0].PractitionerID)
}

func TestListRejectsInvertedRange(t *testing.T) {
	f := newAppointmentFixture(t)
	from, to := ts(12, 0), ts(8, 0)

	_, err := f.svc.List(context.Background(), &appointment.ListQuery{From: &from, To: &to}, receptionistClaims())
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newAppointmentFixture(t)
	actor := receptionistClaims()

	_, err := f.svc.Cancel(context.Background(), uuid.New(), &appointment.CancelCommand{
		Reason: "x", CancelledBy: actor.UserID,
	}, actor, "")
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}
