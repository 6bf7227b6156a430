package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medira/clinicflow/internal/domain/appointment"
	"github.com/medira/clinicflow/internal/service"
)

type AppointmentHandler struct {
	svc *service.AppointmentService
}

func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type scheduleAppointmentRequest struct {
	PractitionerID uuid.UUID `json:"practitioner_id" binding:"required"`
	PatientID      uuid.UUID `json:"patient_id" binding:"required"`
	PatientName    string    `json:"patient_name"`
	StartsAt       time.Time `json:"starts_at" binding:"required"`
	EndsAt         time.Time `json:"ends_at" binding:"required"`
	Notes          string    `json:"notes"`
}

func (h *AppointmentHandler) Schedule(c *gin.Context) {
	var req scheduleAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := mustClaims(c)
	a, err := h.svc.Schedule(c.Request.Context(), &appointment.ScheduleCommand{
		PractitionerID: req.PractitionerID,
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Notes:          req.Notes,
		CreatedBy:      claims.UserID,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, a)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.GetAppointment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, a)
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req cancelAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := mustClaims(c)
	a, err := h.svc.Cancel(c.Request.Context(), id, &appointment.CancelCommand{
		Reason:      req.Reason,
		CancelledBy: claims.UserID,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, a)
}

func (h *AppointmentHandler) List(c *gin.Context) {
	q := &appointment.ListQuery{}

	if raw := c.Query("practitioner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid practitioner_id")
			return
		}
		q.PractitionerID = &id
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid from: must be RFC3339")
			return
		}
		q.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid to: must be RFC3339")
			return
		}
		q.To = &t
	}

	result, err := h.svc.List(c.Request.Context(), q, mustClaims(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, result)
}
