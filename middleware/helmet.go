package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

// Helmet sets security headers. The profiler toolbar links back to the same
// origin, so the referrer policy stays same-origin.
func Helmet() fiber.Handler {
	return helmet.New(helmet.Config{
		ReferrerPolicy: "same-origin",
		// Legacy pages are framed by old admin panels.
		XFrameOptions: "SAMEORIGIN",
	})
}
