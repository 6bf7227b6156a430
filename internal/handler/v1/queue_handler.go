package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medira/clinicflow/internal/domain"
	"github.com/medira/clinicflow/internal/domain/queue"
	"github.com/medira/clinicflow/internal/service"
)

type QueueHandler struct {
	svc *service.QueueService
}

func NewQueueHandler(svc *service.QueueService) *QueueHandler {
	return &QueueHandler{svc: svc}
}

type checkInRequest struct {
	PatientID      uuid.UUID  `json:"patient_id" binding:"required"`
	PatientName    string     `json:"patient_name"`
	PractitionerID *uuid.UUID `json:"practitioner_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id"`
}

func (h *QueueHandler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := mustClaims(c)
	t, err := h.svc.CheckIn(c.Request.Context(), &queue.CheckInCommand{
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		PractitionerID: req.PractitionerID,
		AppointmentID:  req.AppointmentID,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, t)
}

type changeStatusRequest struct {
	Status queue.Status `json:"status" binding:"required"`
}

func (h *QueueHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Status.IsValid() {
		respondError(c, http.StatusBadRequest, "unknown queue status")
		return
	}

	claims := mustClaims(c)
	t, err := h.svc.ChangeStatus(c.Request.Context(), id, req.Status, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, t)
}

func (h *QueueHandler) List(c *gin.Context) {
	var practitionerID *uuid.UUID
	if raw := c.Query("practitioner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid practitioner_id")
			return
		}
		practitionerID = &id
	}

	// Doctors see their own tickets plus the unassigned pool.
	claims := mustClaims(c)
	if claims.Role == domain.RoleDoctor && claims.PractitionerID != nil {
		practitionerID = claims.PractitionerID
	}

	tickets, err := h.svc.List(c.Request.Context(), practitionerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, tickets)
}
