package server

import (
	"feedsync/internal/models"
	"feedsync/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?limit=n&offset=m
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id?comment_limit=n
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, parseLimit(c, "comment_limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c)
	posts, err := s.postService.ListUserPosts(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return nil
	}

	var req struct {
		Body string `json:"body"`
		File string `json:"file"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID: userID,
		Body:   req.Body,
		File:   req.File,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id. Only the author may edit.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return nil
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Body string `json:"body"`
		File string `json:"file"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID: userID,
		PostID: postID,
		Body:   req.Body,
		File:   req.File,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return nil
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if _, err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{UserID: userID, PostID: postID}); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/likes. Liking twice is not an error.
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.toggleLike(c, true)
}

// UnlikePost handles DELETE /api/posts/:id/likes
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.toggleLike(c, false)
}

func (s *Server) toggleLike(c *fiber.Ctx, like bool) error {
	userID, err := requireUser(c)
	if err != nil {
		return nil
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	in := service.LikeInput{UserID: userID, PostID: postID}
	if like {
		_, err = s.postService.LikePost(ctx, in)
	} else {
		_, err = s.postService.UnlikePost(ctx, in)
	}
	if err != nil {
		return respondError(c, err)
	}

	// Return updated post
	post, err := s.postService.GetPost(ctx, postID, 0)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}
