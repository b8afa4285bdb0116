package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/users-api/webserver/internal/common"
	"github.com/users-api/webserver/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// requestLogger logs one line per request once the handler chain (and the error handler, if it ran) is done.
func requestLogger(logger *log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(http.StatusInternalServerError)
			}
		}

		logger.Infow("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
			"ip", c.IP(),
			"request_id", requestID(c),
		)
		return nil
	}
}

// errorHandler renders errors that escape a handler (unknown routes, recovered panics) as JSON.
// Only fiber's own client errors keep their message; everything else becomes a generic 500.
func errorHandler(logger *log.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code < http.StatusInternalServerError {
			return c.Status(fe.Code).JSON(common.ErrorResponse{Error: fe.Message})
		}

		logger.Errorw("Unhandled error", "error", err, "path", c.Path(), "request_id", requestID(c))
		return c.Status(http.StatusInternalServerError).JSON(common.ErrorResponse{Error: "Internal server error"})
	}
}
