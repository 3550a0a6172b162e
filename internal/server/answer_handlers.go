package server

import (
	"github.com/gofiber/fiber/v2"
)

// VoteAnswer handles POST /api/answers/:id/vote
func (s *Server) VoteAnswer(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondWithAppError(c, err)
	}
	var req voteRequest
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	a, err := s.workflow.VoteAnswer(c.UserContext(), id, req.Direction, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(a)
}

// ToggleAccept handles POST /api/answers/:id/accept. Calling it on the
// accepted answer un-accepts it.
func (s *Server) ToggleAccept(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondWithAppError(c, err)
	}
	a, err := s.workflow.ToggleAccept(c.UserContext(), id, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(a)
}

// CreateComment handles POST /api/answers/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondWithAppError(c, err)
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	comment, err := s.workflow.AddComment(c.UserContext(), id, req.Content, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}
