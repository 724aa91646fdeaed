package server

import (
	"errors"
	"strings"
	"unicode"

	"feedsync/internal/middleware"
	"feedsync/internal/models"
	"feedsync/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseLimit reads the named query parameter. Missing or invalid values fall
// back to def; the services clamp the rest.
func parseLimit(c *fiber.Ctx, name string, def int) int {
	limit := c.QueryInt(name, def)
	if limit < 0 {
		return def
	}
	return limit
}

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset. Limits above
// service.MaxPageSize are clamped by the services, so callers that want a
// wider window step through it with offset.
func parsePagination(c *fiber.Ctx) Pagination {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return Pagination{
		Limit:  parseLimit(c, "limit", service.DefaultPageSize),
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive id.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (models.ID, error) {
	id, err := models.ParseID(c.Params(param))
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// respondError writes err with the status its AppError code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// requireUser returns the authenticated user. Routes behind AuthRequired
// always have one.
func requireUser(c *fiber.Ctx) (models.ID, error) {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return 0, errResponseWritten
	}
	return userID, nil
}
