package server

import (
	"stackit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
// Newest first, with the unread count so clients can render a badge from one call.
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	user := caller(c)
	page := pageParams(c)

	list, err := s.notes.List(c.UserContext(), user.ID, page.Limit, page.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	unread, err := s.notes.UnreadCount(c.UserContext(), user.ID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	if list == nil {
		list = []models.Notification{}
	}

	return c.JSON(fiber.Map{
		"notifications": list,
		"unread_count":  unread,
		"limit":         page.Limit,
		"offset":        page.Offset,
	})
}

// UnreadCount handles GET /api/notifications/unread-count
func (s *Server) UnreadCount(c *fiber.Ctx) error {
	unread, err := s.notes.UnreadCount(c.UserContext(), caller(c).ID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": unread})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondWithAppError(c, err)
	}
	n, err := s.workflow.MarkRead(c.UserContext(), id, caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(n)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	updated, err := s.workflow.MarkAllRead(c.UserContext(), caller(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"updated":      updated,
		"unread_count": 0,
	})
}
