package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profile
// @Summary Get the caller's profile
// @Tags profiles
// @Produce json
// @Success 200 {object} models.Profile
// @Security BearerAuth
// @Router /profile [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetMyProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PATCH and PUT /api/profile
// @Summary Update the caller's profile
// @Description Partial update; an empty image string removes the image
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body object{bio=string,profile_image=string,background_image=string,first_name=string,last_name=string,email=string} true "Changes"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /profile [patch]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Bio             *string `json:"bio"`
		ProfileImage    *string `json:"profile_image"`
		BackgroundImage *string `json:"background_image"`
		FirstName       *string `json:"first_name"`
		LastName        *string `json:"last_name"`
		Email           *string `json:"email"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:          currentUserID(c),
		Bio:             req.Bio,
		ProfileImage:    req.ProfileImage,
		BackgroundImage: req.BackgroundImage,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:username
// @Summary Get a profile with its visible posts
// @Tags profiles
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} service.ProfileView
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{username} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	view, err := s.profileService.GetProfile(c.UserContext(), c.Params("username"), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(view)
}

// ToggleFollow handles POST /api/profiles/:username/follow
// @Summary Follow or unfollow a profile
// @Tags profiles
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} service.FollowResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /profiles/{username}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	res, err := s.profileService.ToggleFollow(c.UserContext(), currentUserID(c), c.Params("username"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// GetFollowers handles GET /api/profiles/:username/followers
// @Summary List followers
// @Tags profiles
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.Profile
// @Router /profiles/{username}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	profiles, err := s.profileService.ListFollowers(c.UserContext(), c.Params("username"), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profiles)
}

// GetFollowing handles GET /api/profiles/:username/following
// @Summary List followed profiles
// @Tags profiles
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.Profile
// @Router /profiles/{username}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	profiles, err := s.profileService.ListFollowing(c.UserContext(), c.Params("username"), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profiles)
}
