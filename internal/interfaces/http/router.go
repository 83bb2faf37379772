// Package http assembles the gin route tree and the HTTP server lifecycle.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/internal/config"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/prometheus"
	"github.com/havenloop/haven/internal/interfaces/http/handlers"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
)

// RouterConfig aggregates everything the route tree needs.
type RouterConfig struct {
	Membership *handlers.MembershipHandler
	Presence   *handlers.PresenceHandler
	Incidents  *handlers.IncidentHandler
	Oversight  *handlers.OversightHandler
	Health     *handlers.HealthHandler
	WS         *handlers.WSHandler

	Auth             *middleware.AuthMiddleware
	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector

	Mode string // gin mode: "debug" | "release" | "test"
}

// NewRouter builds the complete route tree: public health and metrics,
// member-scoped API, operator-scoped oversight API, and the realtime
// websocket endpoint.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.Metrics))
	}

	// Public endpoints.
	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Liveness)
		r.GET("/readyz", cfg.Health.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	// Member-scoped API.
	api := r.Group("/api/v1", cfg.Auth.MemberAuth())
	{
		if h := cfg.Membership; h != nil {
			api.POST("/groups", h.CreateGroup)
			api.GET("/groups/:groupID", h.GetGroup)
			api.GET("/groups/:groupID/members", h.ListMembers)
			api.POST("/groups/:groupID/invites", h.CreateInvite)
			api.POST("/groups/:groupID/payment/confirm", h.ConfirmPayment)
			api.POST("/groups/:groupID/payment/lapse", h.LapsePayment)
			api.PUT("/groups/:groupID/quota", h.UpdateSeatQuota)
			api.POST("/invites/:inviteID/accept", h.AcceptInvite)
			api.DELETE("/invites/:inviteID", h.RevokeInvite)
			api.DELETE("/memberships/:membershipID", h.CancelMembership)
		}

		if h := cfg.Presence; h != nil {
			api.POST("/presence/report", h.Report)
			api.GET("/presence/circle", h.Circle)
		}

		if h := cfg.Incidents; h != nil {
			api.POST("/incidents", h.Trigger)
			api.GET("/incidents/:incidentID", h.Get)
			api.POST("/incidents/:incidentID/advance", h.Advance)
			api.POST("/incidents/:incidentID/resolve", h.Resolve)
			api.POST("/incidents/:incidentID/cancel", h.Cancel)
			api.POST("/incidents/:incidentID/notes", h.Annotate)
			api.POST("/incidents/:incidentID/locations", h.AppendLocation)
			api.GET("/incidents/:incidentID/trail", h.Trail)
			api.POST("/incidents/:incidentID/ack", h.Acknowledge)
			api.GET("/incidents/:incidentID/acks", h.Acknowledgements)
		}

		if h := cfg.WS; h != nil {
			api.GET("/ws", h.Subscribe)
		}
	}

	// Operator-scoped oversight API.
	if h := cfg.Oversight; h != nil {
		ops := r.Group("/api/v1/oversight", cfg.Auth.OperatorAuth())
		ops.GET("/incidents", h.ListIncidents)
		ops.GET("/incidents/:incidentID", h.GetIncidentDetail)
		ops.POST("/incidents/:incidentID/transition", h.ForceTransition)
		ops.POST("/incidents/:incidentID/notes", h.Annotate)
		ops.POST("/groups/:groupID/broadcast", h.Broadcast)
	}

	return r
}

// ModeFromConfig maps server config onto a gin mode.
func ModeFromConfig(cfg config.ServerConfig) string {
	switch cfg.Mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
