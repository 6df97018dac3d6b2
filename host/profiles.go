package host

import (
	"github.com/gofiber/fiber/v2"
)

const defaultProfileLimit = 20

func (s *Server) listProfiles(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultProfileLimit)
	if limit <= 0 {
		limit = defaultProfileLimit
	}

	profiles, err := s.storage.Find(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profiles": profiles})
}

func (s *Server) showProfile(c *fiber.Ctx) error {
	p, err := s.storage.Read(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) purgeProfiles(c *fiber.Ctx) error {
	if err := s.storage.Purge(c.UserContext()); err != nil {
		return err
	}
	s.logger.Info("profiles purged", "ip", c.IP())
	return c.SendStatus(fiber.StatusNoContent)
}
