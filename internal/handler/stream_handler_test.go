package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/internal/repository/memory"
	internalWS "research-agent-be/internal/websocket"
	"research-agent-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamApp(sessions *memory.SessionRepository) *fiber.App {
	h := NewStreamHandler(internalWS.NewHub(nil, logger.NewNopLogger()), sessions, logger.NewNopLogger())

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	app.Get("/anon", h.ServeWs)
	app.Get("/ws/:id", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.ErrBadRequest
		}
		c.Locals("session_id", id)
		return c.Next()
	}, h.ServeWs)
	return app
}

func TestStreamHandler_Rejections(t *testing.T) {
	sessions := memory.NewSessionRepository(time.Hour)
	live := store.NewSession()
	sessions.Save(live)
	ended := store.NewSession()
	sessions.Save(ended)
	ended.End()

	app := newStreamApp(sessions)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"no session in token", "/anon", fiber.StatusUnauthorized},
		{"unknown session", "/ws/" + uuid.NewString(), fiber.StatusNotFound},
		{"ended session", "/ws/" + ended.ID.String(), fiber.StatusNotFound},
		{"live session without upgrade", "/ws/" + live.ID.String(), fiber.StatusUpgradeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
