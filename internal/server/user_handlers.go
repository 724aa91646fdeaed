package server

import (
	"feedsync/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetUser handles GET /api/users/:id and returns the author summary.
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	author, err := s.userService.GetAuthor(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(author)
}

// GetUsers handles GET /api/users?ids=1,2,3. Unknown ids are left out.
func (s *Server) GetUsers(c *fiber.Ctx) error {
	ids, err := models.ParseIDList(c.Query("ids"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ids"))
	}

	authors, err := s.userService.GetAuthors(c.UserContext(), ids)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(authors)
}
