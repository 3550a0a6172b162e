package server

import (
	"strconv"
	"strings"

	"stackit/internal/models"
	"stackit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListQuestions handles GET /api/questions
// Query: tag, search, author (username or id), status, unanswered, sort, limit, offset.
func (s *Server) ListQuestions(c *fiber.Ctx) error {
	page := pageParams(c)
	in := service.ListQuestionsInput{
		Tag:        c.Query("tag"),
		Search:     c.Query("search"),
		Status:     c.Query("status"),
		Unanswered: c.QueryBool("unanswered", false),
		Sort:       c.Query("sort"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}

	if author := strings.TrimSpace(c.Query("author")); author != "" {
		if id, err := strconv.ParseUint(author, 10, 64); err == nil && id > 0 {
			in.AuthorID = uint(id)
		} else {
			user, err := s.users.GetUserByUsername(c.UserContext(), author)
			if err != nil {
				return respondWithAppError(c, err)
			}
			in.AuthorID = user.ID
		}
	}

	result, err := s.questions.ListQuestions(c.UserContext(), in, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(result)
}

// CreateQuestion handles POST /api/questions
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req service.QuestionInput
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	q, err := s.workflow.SubmitQuestion(c.UserContext(), req, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// GetQuestion handles GET /api/questions/:slug. The parameter may also be
// a numeric id. Every successful read counts as a view.
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	detail, err := s.questions.GetQuestionDetail(c.UserContext(), c.Params("slug"), caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(detail)
}

type voteRequest struct {
	Direction models.VoteDirection `json:"direction"`
}

// VoteQuestion handles POST /api/questions/:id/vote
func (s *Server) VoteQuestion(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondWithAppError(c, err)
	}
	var req voteRequest
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	q, err := s.workflow.VoteQuestion(c.UserContext(), id, req.Direction, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(q)
}

// CreateAnswer handles POST /api/questions/:id/answers. The parameter may be
// the question id or slug.
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	a, err := s.workflow.SubmitAnswer(c.UserContext(), c.Params("id"), req.Content, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}
