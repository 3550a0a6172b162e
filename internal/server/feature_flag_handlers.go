package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags lists every configured flag evaluated for the calling admin.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	var userID uint
	if user := caller(c); user != nil {
		userID = user.ID
	}
	flags := s.featureFlags.Evaluate(userID)
	return c.JSON(fiber.Map{"flags": flags, "count": len(flags)})
}
