package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
	"github.com/havenloop/haven/internal/realtime"
)

// ChannelResolver supplies the groups a member belongs to, for scoping the
// subscription.  The membership registry satisfies it.
type ChannelResolver interface {
	GroupIDsOf(ctx context.Context, memberID string) ([]string, error)
}

// WSHandler upgrades authenticated members onto the realtime hub.
type WSHandler struct {
	hub      *realtime.Hub
	resolver ChannelResolver
	upgrader websocket.Upgrader
	log      logging.Logger
}

func NewWSHandler(hub *realtime.Hub, resolver ChannelResolver, log logging.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			// Token auth, not cookies; origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.Named("ws"),
	}
}

// Subscribe handles GET /ws.  The client receives every event for its own
// member channel and each of its group channels until it disconnects or
// falls too far behind.
func (h *WSHandler) Subscribe(c *gin.Context) {
	memberID := middleware.MemberID(c)

	groupIDs, err := h.resolver.GroupIDsOf(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	channels := make([]string, 0, len(groupIDs)+1)
	channels = append(channels, realtime.MemberChannel(memberID))
	for _, groupID := range groupIDs {
		channels = append(channels, realtime.GroupChannel(groupID))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	sub := h.hub.Subscribe(channels)
	h.log.Info("realtime subscriber connected",
		logging.String("member_id", memberID),
		logging.Int("channels", len(channels)))

	// Reader: we expect nothing from the client, but reading is what detects
	// the close frame.
	go func() {
		defer sub.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer: drain the subscription until the hub closes it.
	go func() {
		defer conn.Close()
		for ev := range sub.C() {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				sub.Close()
				return
			}
		}
		// Hub dropped us (slow consumer) or the reader closed the subscription.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"),
			time.Now().Add(time.Second))
	}()
}
