package server

import (
	"feedsync/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateNotification handles POST /api/notifications. The sender defaults
// to the caller and may not be anyone else.
func (s *Server) CreateNotification(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return nil
	}

	var req models.NotificationPayload
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.SenderID == 0 {
		req.SenderID = userID
	}
	if req.SenderID != userID {
		return respondError(c, models.NewForbiddenError("You can only send notifications as yourself"))
	}

	n, err := s.notificationService.Enqueue(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

// GetNotifications handles GET /api/notifications, the caller's inbox.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return nil
	}

	inbox, err := s.notificationService.Inbox(c.UserContext(), userID, parsePagination(c).Limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inbox)
}
