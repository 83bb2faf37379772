package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/internal/domain/presence"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
	"github.com/havenloop/haven/pkg/types/geo"
)

// PresenceHandler serves presence ingestion and circle views.
type PresenceHandler struct {
	svc presence.Service
}

func NewPresenceHandler(svc presence.Service) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

type reportRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	Battery  int     `json:"battery"`
	IsPaused bool    `json:"is_paused"`
}

// Report handles POST /presence/report.  The caller reports their own
// position; the identity comes from the token, never the body.
func (h *PresenceHandler) Report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "malformed presence report")
		return
	}

	snap, err := h.svc.Report(c.Request.Context(), presence.Report{
		MemberID: middleware.MemberID(c),
		Location: geo.Point{Lat: req.Lat, Lng: req.Lng},
		Accuracy: req.Accuracy,
		Battery:  req.Battery,
		IsPaused: req.IsPaused,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Circle handles GET /presence/circle: everyone the caller may see, with
// freshness classification and redacted paused members.
func (h *PresenceHandler) Circle(c *gin.Context) {
	snapshots, err := h.svc.CircleSnapshot(c.Request.Context(), middleware.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": snapshots})
}
