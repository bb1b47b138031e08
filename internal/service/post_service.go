package service

import (
	"context"
	"net/http"
	"strings"

	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxTitleLen   = 100
	maxContentLen = 50000
)

// Like toggle results.
const (
	LikeStatusLiked   = "liked"
	LikeStatusUnliked = "unliked"
)

type PostService struct {
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	userRepo     repository.UserRepository
	images       *ImageService
	events       EventPublisher
}

type CreatePostInput struct {
	UserID     uint
	Title      string
	Content    string
	CategoryID *uint
	Image      *string
	IsShow     *bool
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
	CategoryID    *uint
}

// UpdatePostInput carries a partial update; nil fields are left unchanged.
// A CategoryID of 0 removes the category and an empty Image removes the image.
type UpdatePostInput struct {
	UserID     uint
	PostID     uint
	Title      *string
	Content    *string
	CategoryID *uint
	Image      *string
	IsShow     *bool
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// LikeResult reports the state of a like after a toggle.
type LikeResult struct {
	Status     string `json:"status"`
	LikesCount int64  `json:"likes_count"`
}

func NewPostService(
	postRepo repository.PostRepository,
	categoryRepo repository.CategoryRepository,
	userRepo repository.UserRepository,
	images *ImageService,
	events EventPublisher,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
		images:       images,
		events:       events,
	}
}

func validatePostText(title, content string) error {
	if err := validation.ValidateLength("Title", title, true, maxTitleLen); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("Content", content, true, maxContentLen); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// checkCategory turns an unknown category into a validation error.
func (s *PostService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil || *id == 0 {
		return nil
	}
	if _, err := s.categoryRepo.GetByID(ctx, *id); err != nil {
		if models.StatusFor(err) == http.StatusNotFound {
			return models.NewValidationError("Unknown category")
		}
		return err
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (_ *models.Post, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer end(&err)

	in.Title = strings.TrimSpace(in.Title)
	if err := validatePostText(in.Title, in.Content); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	image, err := s.images.NormalizeOptional(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		UserID:   in.UserID,
		Image:    image,
		IsShow:   true,
		IsActive: true,
	}
	if in.CategoryID != nil && *in.CategoryID != 0 {
		post.CategoryID = in.CategoryID
	}
	if in.IsShow != nil {
		post.IsShow = *in.IsShow
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	observability.PostsCreated.Inc()

	created, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	if created.Visible() {
		publish(ctx, s.events, notifications.NewEvent(notifications.EventPostCreated, 0, notifications.EventPayload{
			ActorID: created.UserID,
			Actor:   created.Author,
			PostID:  created.ID,
			Title:   created.Title,
		}))
	}
	return created, nil
}

// ListPosts returns the public feed: visible posts only, newest first.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.List(ctx, models.PostFilter{
		OnlyVisible: true,
		CategoryID:  in.CategoryID,
	}, in.Limit, in.Offset, in.CurrentUserID)
}

// ListMyPosts returns every post of userID regardless of visibility.
func (s *PostService) ListMyPosts(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.List(ctx, models.PostFilter{AuthorID: userID}, limit, offset, userID)
}

// ListVisibleByAuthor returns the publicly visible posts of authorID.
func (s *PostService) ListVisibleByAuthor(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.postRepo.List(ctx, models.PostFilter{OnlyVisible: true, AuthorID: authorID}, limit, offset, currentUserID)
}

// GetPost returns a visible post, or a hidden one to its author.
func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, currentUserID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(post.Visible(), post.UserID, currentUserID) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (_ *models.Post, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "PostService", "UpdatePost",
		attribute.Int("post.id", int(in.PostID)))
	defer end(&err)

	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You cannot edit someone else's post")
	}

	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if err := validatePostText(post.Title, post.Content); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
		if *in.CategoryID == 0 {
			post.CategoryID = nil
		} else {
			post.CategoryID = in.CategoryID
		}
		post.Category = nil
	}
	if in.Image != nil {
		image, err := s.images.NormalizeOptional(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = image
	}
	if in.IsShow != nil {
		post.IsShow = *in.IsShow
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if post.UserID != in.UserID {
		return models.NewForbiddenError("You cannot delete someone else's post")
	}
	return s.postRepo.Delete(ctx, in.PostID)
}

// ToggleLike adds userID to the likers of a visible post, or removes them
// when they already like it.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (_ *LikeResult, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "PostService", "ToggleLike",
		attribute.Int("post.id", int(postID)))
	defer end(&err)

	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !post.Visible() {
		return nil, models.NewNotFoundError("Post", postID)
	}

	liked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	status := LikeStatusLiked
	if liked {
		status = LikeStatusUnliked
		err = s.postRepo.Unlike(ctx, userID, postID)
	} else {
		err = s.postRepo.Like(ctx, userID, postID)
	}
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues(status).Inc()

	count, err := s.postRepo.CountLikes(ctx, postID)
	if err != nil {
		return nil, err
	}

	if status == LikeStatusLiked && post.UserID != userID {
		publish(ctx, s.events, notifications.NewEvent(notifications.EventPostLiked, post.UserID, notifications.EventPayload{
			ActorID: userID,
			Actor:   s.username(ctx, userID),
			PostID:  postID,
			Title:   post.Title,
		}))
	}
	return &LikeResult{Status: status, LikesCount: count}, nil
}

// username resolves a display name for event payloads; lookups that fail
// leave it blank.
func (s *PostService) username(ctx context.Context, userID uint) string {
	if s.userRepo == nil {
		return ""
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}
