package serverutils

import (
	"errors"

	"research-agent-be/pkg/research"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors onto HTTP codes.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, research.ErrUserInput):
		return fiber.StatusBadRequest
	case errors.Is(err, research.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, research.ErrRunInProgress):
		return fiber.StatusConflict
	case errors.Is(err, research.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway
	case errors.Is(err, research.ErrSchemaViolation):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns handler errors into the JSON envelope with a
// message fit for end users.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		message := research.UserMessage(err)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			message = fe.Message
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
