package server

import (
	"errors"
	"strconv"
	"strings"

	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is the limit/offset window of a list request.
type Page struct {
	Limit  int
	Offset int
}

// pageParams reads ?limit and ?offset. Missing or unparsable values take the
// defaults; limit is capped at maxPageSize.
func pageParams(c *fiber.Ctx) Page {
	p := Page{Limit: c.QueryInt("limit", defaultPageSize), Offset: c.QueryInt("offset")}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultPageSize
	case p.Limit > maxPageSize:
		p.Limit = maxPageSize
	}
	p.Offset = max(p.Offset, 0)
	return p
}

// pathID parses a positive integer route parameter.
func pathID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 0)
	if err != nil || id == 0 {
		return 0, models.NewValidationError(param + " must be a positive integer")
	}
	return uint(id), nil
}

func bindJSON(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return &models.AppError{Code: models.CodeValidation, Message: "Invalid request body", Err: err}
	}
	return nil
}

// respondWithAppError writes err with the status of its code. Errors that
// are not AppErrors become internal errors; only those and other 5xx are
// logged.
func respondWithAppError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	status := models.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			"route", c.Route().Path, "error", err)
	}
	return models.RespondWithError(c, status, err)
}

func caller(c *fiber.Ctx) *models.User {
	return session.IdentityFrom(c.UserContext())
}

// bearerToken reads "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
