package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"go.uber.org/zap"
)

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := StatusCode(err)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Route().Path),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			message = "internal server error"
		}
		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

// StatusCode maps domain errors to HTTP status codes.
func StatusCode(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
