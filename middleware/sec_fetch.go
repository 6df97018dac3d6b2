package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// SecFetchSiteConfig configures SecFetchSite.
type SecFetchSiteConfig struct {
	// AllowedValues defaults to "same-origin" and "none".
	AllowedValues []string

	// Methods defaults to POST, PUT, DELETE and PATCH.
	Methods []string

	Next func(c *fiber.Ctx) bool
}

// DefaultSecFetchSiteConfig returns the default configuration.
func DefaultSecFetchSiteConfig() SecFetchSiteConfig {
	return SecFetchSiteConfig{
		AllowedValues: []string{"same-origin", "none"},
		Methods:       []string{fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodPatch},
	}
}

// SecFetchSite rejects state-changing requests whose Sec-Fetch-Site header is
// missing or not allowed. The host puts it in front of profile purging so a
// third-party page cannot wipe collected profiles.
func SecFetchSite(config ...SecFetchSiteConfig) fiber.Handler {
	cfg := DefaultSecFetchSiteConfig()
	if len(config) > 0 {
		cfg = config[0]
		if cfg.AllowedValues == nil {
			cfg.AllowedValues = DefaultSecFetchSiteConfig().AllowedValues
		}
		if cfg.Methods == nil {
			cfg.Methods = DefaultSecFetchSiteConfig().Methods
		}
	}

	methods := make(map[string]bool, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods[m] = true
	}
	allowed := make(map[string]bool, len(cfg.AllowedValues))
	for _, v := range cfg.AllowedValues {
		allowed[v] = true
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		if !methods[c.Method()] {
			return c.Next()
		}

		switch site := c.Get("Sec-Fetch-Site"); {
		case site == "":
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "browser requests only",
			})
		case !allowed[site]:
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "cross-site request blocked",
			})
		}
		return c.Next()
	}
}
