package serverutils

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTokens signs and checks the bearer token tying a client to its session.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionTokens(secret string, ttl time.Duration) *SessionTokens {
	if secret == "" {
		// Tokens then only survive until restart, same as the sessions they guard.
		secret = uuid.NewString() + uuid.NewString()
	}
	return &SessionTokens{secret: []byte(secret), ttl: ttl}
}

func (t *SessionTokens) Issue(sessionID uuid.UUID) (string, time.Time, error) {
	exp := time.Now().Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": sessionID.String(),
		"exp":        exp.Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t *SessionTokens) Parse(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid claims")
	}
	idStr, ok := claims["session_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("token missing session_id")
	}
	return uuid.Parse(idStr)
}

// Middleware requires a token for the :id route param. The token is read from
// the Authorization header, or the "token" query param for browser WebSockets.
func (t *SessionTokens) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := ctx.Query("token")
		if authHeader := ctx.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
		if tokenStr == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing session token")
		}

		sessionID, err := t.Parse(tokenStr)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid session token")
		}
		if ctx.Params("id") != sessionID.String() {
			return fiber.NewError(fiber.StatusForbidden, "Token does not match session")
		}

		ctx.Locals("session_id", sessionID)
		return ctx.Next()
	}
}
