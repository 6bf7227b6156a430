package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/medira/clinicflow/internal/service"
)

// BoardHandler serves the waiting-room display. The TV polls this endpoint
// every few seconds and renders the called and waiting subsets; slightly
// stale data is acceptable.
type BoardHandler struct {
	svc *service.QueueService
}

func NewBoardHandler(svc *service.QueueService) *BoardHandler {
	return &BoardHandler{svc: svc}
}

func (h *BoardHandler) Snapshot(c *gin.Context) {
	snap, err := h.svc.Board(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, snap)
}
