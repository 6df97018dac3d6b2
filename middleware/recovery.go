package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
)

// Recover turns panics raised by pages into errors for the error handler.
// Stack traces are logged through logger.
func Recover(logger Logger) fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error("page panicked",
				"panic", fmt.Sprint(e),
				"method", c.Method(),
				"path", c.Path(),
			)
		},
	})
}
