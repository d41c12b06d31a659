// internal/handlers/websocket/websocket.go
package websocket

import (
	"net/http"
	"time"

	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"
	ws "billing-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub         *ws.Hub
	revocations middleware.RevocationChecker
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewWebSocketHandler serves /ws. A nil revocations skips the revoked-token
// check; an empty allowedOrigins accepts any Origin.
func NewWebSocketHandler(hub *ws.Hub, revocations middleware.RevocationChecker, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		revocations: revocations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// HandleConnection authenticates the token and upgrades to a websocket
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	auth, err := h.hub.AuthenticateClient(token)
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, http.StatusUnauthorized, "authentication failed", err)
		return
	}

	if h.revocations != nil {
		revoked, err := h.revocations.IsTokenBlacklisted(c.Request.Context(), auth.SessionID)
		if err != nil {
			response.Error(c, http.StatusServiceUnavailable, "failed to check token", err)
			return
		}
		if revoked {
			response.Unauthorized(c, "token has been revoked")
			return
		}
	}

	// Upgrade writes its own error response
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns connection statistics (admin only)
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now(),
	})
}
