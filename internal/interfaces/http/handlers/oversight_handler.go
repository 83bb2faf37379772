package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/internal/application/oversight"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
)

// OversightHandler serves the operator console.
type OversightHandler struct {
	svc oversight.Service
}

func NewOversightHandler(svc oversight.Service) *OversightHandler {
	return &OversightHandler{svc: svc}
}

// ListIncidents handles GET /oversight/incidents?status=active&limit=100.
func (h *OversightHandler) ListIncidents(c *gin.Context) {
	status := incident.Status(c.DefaultQuery("status", string(incident.StatusActive)))
	limit := queryInt(c, "limit", 100)

	incidents, err := h.svc.ListIncidents(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}

// GetIncidentDetail handles GET /oversight/incidents/:incidentID.
func (h *OversightHandler) GetIncidentDetail(c *gin.Context) {
	detail, err := h.svc.GetIncidentDetail(c.Request.Context(), c.Param("incidentID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type forceTransitionRequest struct {
	Target string `json:"target" binding:"required"`
}

// ForceTransition handles POST /oversight/incidents/:incidentID/transition.
func (h *OversightHandler) ForceTransition(c *gin.Context) {
	var req forceTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "target is required")
		return
	}

	ev, err := h.svc.ForceTransition(c.Request.Context(), c.Param("incidentID"),
		middleware.OperatorID(c), incident.Status(req.Target))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type operatorNoteRequest struct {
	Note string `json:"note" binding:"required"`
}

// Annotate handles POST /oversight/incidents/:incidentID/notes.
func (h *OversightHandler) Annotate(c *gin.Context) {
	var req operatorNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "note is required")
		return
	}
	ev, err := h.svc.Annotate(c.Request.Context(), c.Param("incidentID"), middleware.OperatorID(c), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type broadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

// Broadcast handles POST /oversight/groups/:groupID/broadcast.
func (h *OversightHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "message is required")
		return
	}
	if err := h.svc.BroadcastMessage(c.Request.Context(), c.Param("groupID"), middleware.OperatorID(c), req.Message); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
