package server

import (
	"github.com/gofiber/fiber/v2"
)

// ModerateQuestion handles PATCH /api/admin/questions/:id/status
// Body: {"status": "open" | "pending" | "rejected"}
func (s *Server) ModerateQuestion(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondWithAppError(c, err)
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}

	q, err := s.questions.Moderate(c.UserContext(), id, req.Status, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(q)
}
