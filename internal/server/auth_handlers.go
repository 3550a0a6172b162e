package server

import (
	"stackit/internal/service"
	"stackit/internal/session"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req session.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}

	user, token, err := s.sessions.Register(c.UserContext(), req)
	if err != nil {
		return respondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      token.AccessToken,
		"expires_at": token.ExpiresAt,
		"user":       user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req session.Credentials
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}

	user, token, err := s.sessions.Login(c.UserContext(), req)
	if err != nil {
		return respondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":      token.AccessToken,
		"expires_at": token.ExpiresAt,
		"user":       user,
	})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.sessions.Logout(c.UserContext(), bearerToken(c)); err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is the
// same whether or not the address is registered.
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	if err := s.sessions.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If the email is registered, a reset link is on its way",
	})
}

// ResetPassword handles POST /api/auth/reset-password
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	if err := s.sessions.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// GetMe handles GET /api/auth/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	return c.JSON(caller(c))
}

// UpdateMe handles PUT /api/auth/me
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := bindJSON(c, &req); err != nil {
		return respondWithAppError(c, err)
	}
	user, err := s.users.UpdateProfile(c.UserContext(), caller(c), req)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(user)
}
