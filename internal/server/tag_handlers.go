package server

import (
	"stackit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListTags handles GET /api/tags
func (s *Server) ListTags(c *fiber.Ctx) error {
	tags, err := s.tags.ListTags(c.UserContext())
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(tags)
}

// CreateTag handles POST /api/tags (admin)
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req service.CreateTagInput
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	tag, err := s.tags.CreateTag(c.UserContext(), req, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}
