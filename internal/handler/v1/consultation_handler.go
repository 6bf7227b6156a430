package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medira/clinicflow/internal/domain/consultation"
	"github.com/medira/clinicflow/internal/service"
)

type ConsultationHandler struct {
	svc *service.ConsultationService
}

func NewConsultationHandler(svc *service.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{svc: svc}
}

type startConsultationRequest struct {
	TicketID uuid.UUID `json:"ticket_id" binding:"required"`
}

func (h *ConsultationHandler) Start(c *gin.Context) {
	var req startConsultationRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := mustClaims(c)
	cons, err := h.svc.Start(c.Request.Context(), req.TicketID, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, cons)
}

func (h *ConsultationHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	cons, err := h.svc.GetConsultation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, cons)
}

type finishConsultationRequest struct {
	Notes string `json:"notes"`
}

// Finish closes a consultation. When the cascaded queue-ticket update fails
// the consultation is still finished, so the response is a success with an
// explicit warning instead of a clean 200 or an error that suggests nothing
// was committed.
func (h *ConsultationHandler) Finish(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req finishConsultationRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := mustClaims(c)
	cons, err := h.svc.Finish(c.Request.Context(), id, &consultation.FinishCommand{
		Notes:      req.Notes,
		FinishedBy: claims.UserID,
	}, claims, c.ClientIP())
	if err != nil {
		var ticketErr *service.TicketUpdateError
		if errors.As(err, &ticketErr) {
			c.JSON(http.StatusOK, APIResponse[any]{
				Data:    cons,
				Warning: ticketErr.Error(),
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	respondOK(c, cons)
}
