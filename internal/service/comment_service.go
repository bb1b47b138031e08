package service

import (
	"context"
	"strings"

	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/validation"
)

const maxCommentLen = 2000

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
	events      EventPublisher
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
	events EventPublisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		isAdmin:     isAdmin,
		events:      events,
	}
}

func validateCommentContent(content string) error {
	if err := validation.ValidateLength("Content", content, true, maxCommentLen); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// visiblePost loads a post the viewer is allowed to see.
func (s *CommentService) visiblePost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(post.Visible(), post.UserID, viewerID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateCommentContent(in.Content); err != nil {
		return nil, err
	}
	post, err := s.visiblePost(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: in.Content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		publish(ctx, s.events, notifications.NewEvent(notifications.EventPostCommented, post.UserID, notifications.EventPayload{
			ActorID:   in.UserID,
			Actor:     created.Author,
			PostID:    post.ID,
			CommentID: created.ID,
			Title:     post.Title,
		}))
	}
	return created, nil
}

// ListComments returns the comments of a post the viewer can see, oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint) ([]models.Comment, error) {
	if _, err := s.visiblePost(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

// UpdateComment edits the caller's own comment while its post is still
// visible to them.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You cannot edit someone else's comment")
	}
	if _, err := s.visiblePost(ctx, comment.PostID, in.UserID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	if err := validateCommentContent(content); err != nil {
		return nil, err
	}
	if err := s.commentRepo.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment removes a comment; its author and administrators may do so.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}

	if comment.UserID != in.UserID {
		if s.isAdmin == nil {
			return models.NewForbiddenError("You cannot delete someone else's comment")
		}
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You cannot delete someone else's comment")
		}
	}

	return s.commentRepo.Delete(ctx, in.CommentID)
}
