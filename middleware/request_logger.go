package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/webprofiler"
)

// Logger is the logging interface middleware writes to.
type Logger = webprofiler.Logger

// RequestLogger emits one structured line per request. Paths under any of
// skip are not logged.
func RequestLogger(logger Logger, skip ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		stop := time.Since(start)

		path := c.Path()
		for _, prefix := range skip {
			if strings.HasPrefix(path, prefix) {
				return err
			}
		}

		kv := []any{
			"method", c.Method(),
			"path", path,
			"status", c.Response().StatusCode(),
			"duration", stop,
			"ip", c.IP(),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			kv = append(kv, "request_id", id)
		}
		if token := c.GetRespHeader("X-Debug-Token"); token != "" {
			kv = append(kv, "token", token)
		}

		logger.Info("http request", kv...)
		return err
	}
}
