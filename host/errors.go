package host

import (
	"errors"
	"fmt"
	"html"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/profiler"
)

// ErrorHandler answers failed requests with JSON for API clients and a
// small HTML page otherwise. Error details are only shown in development.
func ErrorHandler(logger webprofiler.Logger, isDev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.Is(err, profiler.ErrProfileNotFound):
			code = fiber.StatusNotFound
		}

		logger.Error("request failed",
			"error", err,
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
		)

		if c.Accepts(fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
			return c.Status(code).JSON(fiber.Map{
				"error":   ErrorCodeName(code),
				"message": err.Error(),
			})
		}

		details := ""
		if isDev {
			details = fmt.Sprintf("<pre>%s</pre>", html.EscapeString(err.Error()))
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Status(code).SendString(fmt.Sprintf(
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%d - %s</title></head><body><h1>%d</h1><h2>%s</h2>%s</body></html>`,
			code, ErrorCodeName(code), code, ErrorCodeName(code), details))
	}
}

// ErrorCodeName returns a human-readable name for common HTTP status codes.
func ErrorCodeName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusTooManyRequests:
		return "Too Many Requests"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}
