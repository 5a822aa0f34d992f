package handler

import (
	"research-agent-be/internal/pkg/logger"
	internalWS "research-agent-be/internal/websocket"
	"research-agent-be/pkg/research"
	"research-agent-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SessionLookup resolves live sessions.
type SessionLookup interface {
	Get(sessionID uuid.UUID) (*store.Session, bool)
}

// StreamHandler upgrades session watchers to WebSocket connections.
type StreamHandler struct {
	hub      *internalWS.Hub
	sessions SessionLookup
	logger   logger.ILogger
}

func NewStreamHandler(hub *internalWS.Hub, sessions SessionLookup, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		hub:      hub,
		sessions: sessions,
		logger:   log,
	}
}

// ServeWs runs after the session token middleware, so session_id is trusted here.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	sessionID, ok := c.Locals("session_id").(uuid.UUID)
	if !ok {
		return fiber.ErrUnauthorized
	}
	// A token outlives its session; ended sessions get no stream.
	if session, found := h.sessions.Get(sessionID); !found || session.Ended() {
		return research.ErrSessionNotFound
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("StreamHandler", "Starting WebSocket stream", map[string]interface{}{"session_id": sessionID})
		internalWS.ServeWs(h.hub, conn, sessionID)
		h.logger.Info("StreamHandler", "WebSocket stream ended", map[string]interface{}{"session_id": sessionID})
	})(c)
}
