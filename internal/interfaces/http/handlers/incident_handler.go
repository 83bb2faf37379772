package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
	"github.com/havenloop/haven/pkg/types/geo"
)

// IncidentHandler serves the member-facing incident lifecycle.
type IncidentHandler struct {
	incidents   incident.Service
	escalations escalation.Service
}

func NewIncidentHandler(incidents incident.Service, escalations escalation.Service) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, escalations: escalations}
}

type triggerRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Trigger handles POST /incidents: the SOS button.  A retry inside the
// de-duplication window returns the existing event with 200 instead of 201.
func (h *IncidentHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "malformed trigger payload")
		return
	}

	before := time.Now().UTC()
	ev, err := h.incidents.Trigger(c.Request.Context(), middleware.MemberID(c), geo.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if ev.CreatedAt.Before(before) {
		status = http.StatusOK // deduplicated retry
	}
	c.JSON(status, ev)
}

// Get handles GET /incidents/:incidentID.
func (h *IncidentHandler) Get(c *gin.Context) {
	ev, err := h.incidents.Get(c.Request.Context(), c.Param("incidentID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Advance handles POST /incidents/:incidentID/advance (active → in_progress).
func (h *IncidentHandler) Advance(c *gin.Context) {
	ev, err := h.incidents.AdvanceToInProgress(c.Request.Context(), c.Param("incidentID"), middleware.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Resolve handles POST /incidents/:incidentID/resolve.
func (h *IncidentHandler) Resolve(c *gin.Context) {
	ev, err := h.incidents.Resolve(c.Request.Context(), c.Param("incidentID"), middleware.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Cancel handles POST /incidents/:incidentID/cancel (false alarm).
func (h *IncidentHandler) Cancel(c *gin.Context) {
	ev, err := h.incidents.Cancel(c.Request.Context(), c.Param("incidentID"), middleware.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type annotateRequest struct {
	Note string `json:"note" binding:"required"`
}

// Annotate handles POST /incidents/:incidentID/notes.
func (h *IncidentHandler) Annotate(c *gin.Context) {
	var req annotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "note is required")
		return
	}
	ev, err := h.incidents.Annotate(c.Request.Context(), c.Param("incidentID"), middleware.MemberID(c), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type appendLocationRequest struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Timestamp *time.Time `json:"timestamp"`
}

// AppendLocation handles POST /incidents/:incidentID/locations: one trail
// point from the subject's device during an open incident.
func (h *IncidentHandler) AppendLocation(c *gin.Context) {
	var req appendLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "malformed location sample")
		return
	}
	at := time.Now().UTC()
	if req.Timestamp != nil {
		at = req.Timestamp.UTC()
	}

	sample, err := h.incidents.AppendLocation(c.Request.Context(), c.Param("incidentID"), geo.Point{Lat: req.Lat, Lng: req.Lng}, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sample)
}

// Trail handles GET /incidents/:incidentID/trail.
func (h *IncidentHandler) Trail(c *gin.Context) {
	trail, err := h.incidents.LocationTrail(c.Request.Context(), c.Param("incidentID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trail": trail})
}

type acknowledgeRequest struct {
	Message string `json:"message"`
}

// Acknowledge handles POST /incidents/:incidentID/ack.  Idempotent per
// responder; the original acknowledgement is returned on repeats.
func (h *IncidentHandler) Acknowledge(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondValidation(c, "malformed acknowledgement")
		return
	}

	ack, err := h.escalations.Acknowledge(c.Request.Context(), c.Param("incidentID"), middleware.MemberID(c), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ack)
}

// Acknowledgements handles GET /incidents/:incidentID/acks.
func (h *IncidentHandler) Acknowledgements(c *gin.Context) {
	acks, err := h.escalations.Acknowledgements(c.Request.Context(), c.Param("incidentID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledgements": acks})
}
