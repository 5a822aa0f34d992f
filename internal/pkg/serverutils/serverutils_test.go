package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"research-agent-be/pkg/research"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: empty", research.ErrUserInput), fiber.StatusBadRequest},
		{research.ErrSessionNotFound, fiber.StatusNotFound},
		{research.ErrRunInProgress, fiber.StatusConflict},
		{&research.StageError{Stage: research.StageResearching, Err: research.ErrUpstreamUnavailable}, fiber.StatusBadGateway},
		{fmt.Errorf("report: %w", research.ErrSchemaViolation), fiber.StatusBadGateway},
		{fiber.NewError(fiber.StatusUnauthorized, "nope"), fiber.StatusUnauthorized},
		{errors.New("unknown"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/busy", func(c *fiber.Ctx) error { return research.ErrRunInProgress })
	app.Get("/upstream", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: tavily http 503", research.ErrUpstreamUnavailable)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/busy", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/upstream", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out Response
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Success)
	assert.Equal(t, fiber.StatusBadGateway, out.Code)
	assert.NotContains(t, out.Message, "tavily")
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Topic string `validate:"required,max=5"`
	}

	assert.NoError(t, ValidateRequest(req{Topic: "ok"}))

	err := ValidateRequest(req{})
	assert.ErrorIs(t, err, research.ErrUserInput)
	assert.Contains(t, err.Error(), "topic failed on required")

	assert.ErrorIs(t, ValidateRequest(req{Topic: "too long"}), research.ErrUserInput)
}

func TestSessionTokens_RoundTrip(t *testing.T) {
	tokens := NewSessionTokens("secret", time.Hour)
	id := uuid.New()

	signed, exp, err := tokens.Issue(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = NewSessionTokens("other", time.Hour).Parse(signed)
	assert.Error(t, err, "wrong secret")

	expired, _, err := NewSessionTokens("secret", -time.Minute).Issue(id)
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	assert.Error(t, err, "expired")
}

func TestSessionTokens_Middleware(t *testing.T) {
	tokens := NewSessionTokens("", time.Hour)
	id := uuid.New()
	signed, _, err := tokens.Issue(id)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/sessions/:id", tokens.Middleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("session_id").(uuid.UUID).String())
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "bearer header", path: "/sessions/" + id.String(), header: "Bearer " + signed, want: fiber.StatusOK},
		{name: "query token", path: "/sessions/" + id.String() + "?token=" + signed, want: fiber.StatusOK},
		{name: "missing", path: "/sessions/" + id.String(), want: fiber.StatusUnauthorized},
		{name: "garbage", path: "/sessions/" + id.String(), header: "Bearer abc", want: fiber.StatusUnauthorized},
		{name: "other session", path: "/sessions/" + uuid.NewString(), header: "Bearer " + signed, want: fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.want == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, id.String(), string(body))
			}
		})
	}
}
