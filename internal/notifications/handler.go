package notifications

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

type Handler struct {
	svc      *Service
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(svc *Service, hub *Hub) *Handler {
	return &Handler{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Register mounts the notification routes on rg (/api/v1).
func (h *Handler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	n := rg.Group("/notifications", authn)
	n.GET("", h.List)
	n.GET("/unread-count", h.UnreadCount)
	n.PATCH("/:id/read", middleware.RequireCSRF(), h.MarkRead)
}

// RegisterSocket mounts the websocket endpoint. The access token cookie is
// checked before the upgrade.
func (h *Handler) RegisterSocket(r gin.IRoutes, authn gin.HandlerFunc) {
	r.GET("/ws", authn, h.Socket)
}

func (h *Handler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), middleware.UserID(c), c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": page.Items, "nextCursor": page.NextCursor})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if !primitive.IsValidObjectID(id) {
		apperr.Fail(c, apperr.Validation("id must be a valid id"))
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), middleware.UserID(c), id); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Socket upgrades the request and keeps the connection registered until
// the client goes away. Inbound frames are read only to detect closure.
func (h *Handler) Socket(c *gin.Context) {
	userID := middleware.UserID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		logger.Warnw("websocket upgrade failed", "userID", userID, "err", err)
		return
	}
	client := h.hub.Add(userID, conn)
	defer func() {
		h.hub.Remove(client)
		client.Close()
	}()
	go client.keepalive()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("websocket for user %s closed: %v", userID, err)
			}
			return
		}
	}
}
