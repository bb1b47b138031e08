package service

import (
	"context"
	"errors"
	"time"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
)

const commentSnippetLen = 50

type AdminService struct {
	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
}

// AdminPostFilter narrows the moderation listing of posts.
type AdminPostFilter struct {
	IsActive   *bool
	IsShow     *bool
	CategoryID *uint
	Limit      int
	Offset     int
}

// CommentSnippet is the moderation view of a comment.
type CommentSnippet struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	Author    string    `json:"author"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAdminService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
) *AdminService {
	return &AdminService{userRepo: userRepo, postRepo: postRepo, commentRepo: commentRepo}
}

// IsAdmin reports whether userID holds the administrator flag.
func (s *AdminService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

// ListPosts returns posts of any visibility matching filter.
func (s *AdminService) ListPosts(ctx context.Context, filter AdminPostFilter) ([]*models.Post, error) {
	return s.postRepo.List(ctx, models.PostFilter{
		IsActive:   filter.IsActive,
		IsShow:     filter.IsShow,
		CategoryID: filter.CategoryID,
	}, filter.Limit, filter.Offset, 0)
}

// SetPostActive is the only way is_active changes.
func (s *AdminService) SetPostActive(ctx context.Context, adminID, postID uint, active bool) (*models.Post, error) {
	if err := s.postRepo.SetActive(ctx, postID, active); err != nil {
		return nil, err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	observability.Audit().Moderation(ctx, adminID, action, "post", postID)
	return s.postRepo.GetByID(ctx, postID, 0)
}

// ListComments returns recent comments truncated for moderation.
func (s *AdminService) ListComments(ctx context.Context, limit, offset int) ([]CommentSnippet, error) {
	comments, err := s.commentRepo.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]CommentSnippet, 0, len(comments))
	for i := range comments {
		c := &comments[i]
		out = append(out, CommentSnippet{
			ID:        c.ID,
			PostID:    c.PostID,
			Author:    c.Author,
			Snippet:   c.Snippet(commentSnippetLen),
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}

// SetAdminByUsername grants or revokes administrator rights.
func (s *AdminService) SetAdminByUsername(ctx context.Context, username string, admin bool) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetAdmin(ctx, user.ID, admin); err != nil {
		return nil, err
	}
	user.IsAdmin = admin
	action := "demote"
	if admin {
		action = "promote"
	}
	observability.Audit().Moderation(ctx, 0, action, "user", user.ID)
	return user, nil
}

// ListAdmins returns every administrator.
func (s *AdminService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}
