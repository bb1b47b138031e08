package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AdminListPosts handles GET /api/admin/posts
// @Summary Moderation list of posts
// @Tags admin
// @Produce json
// @Param is_active query bool false "Filter by is_active"
// @Param is_show query bool false "Filter by is_show"
// @Param category query int false "Category ID"
// @Success 200 {array} models.Post
// @Security BearerAuth
// @Router /admin/posts [get]
func (s *Server) AdminListPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	isActive, err := queryBool(c, "is_active")
	if err != nil {
		return mapServiceError(c, err)
	}
	isShow, err := queryBool(c, "is_show")
	if err != nil {
		return mapServiceError(c, err)
	}
	category, err := queryUint(c, "category")
	if err != nil {
		return mapServiceError(c, err)
	}

	posts, err := s.adminService.ListPosts(c.UserContext(), service.AdminPostFilter{
		IsActive:   isActive,
		IsShow:     isShow,
		CategoryID: category,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(posts)
}

// AdminSetPostActive handles PATCH /api/admin/posts/:id/active
// @Summary Activate or deactivate a post
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{is_active=bool} true "State"
// @Success 200 {object} models.Post
// @Security BearerAuth
// @Router /admin/posts/{id}/active [patch]
func (s *Server) AdminSetPostActive(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if req.IsActive == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("is_active is required"))
	}

	post, err := s.adminService.SetPostActive(c.UserContext(), currentUserID(c), id, *req.IsActive)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(post)
}

// AdminListComments handles GET /api/admin/comments
// @Summary Recent comments with content snippets
// @Tags admin
// @Produce json
// @Success 200 {array} service.CommentSnippet
// @Security BearerAuth
// @Router /admin/comments [get]
func (s *Server) AdminListComments(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	snippets, err := s.adminService.ListComments(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(snippets)
}
