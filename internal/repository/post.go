package repository

import (
	"context"
	"strconv"

	"agora/internal/cache"
	"agora/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, filter models.PostFilter, limit, offset int, viewerID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	Like(ctx context.Context, userID, postID uint) error
	Unlike(ctx context.Context, userID, postID uint) error
	CountLikes(ctx context.Context, postID uint) (int64, error)
}

// postUpdatableColumns never contains user_id or is_active: authors are
// fixed at creation and activation belongs to moderators.
var postUpdatableColumns = []string{"title", "content", "category_id", "image", "is_show", "updated_at"}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	// The visibility flags carry no gorm default tag, so an explicit false is written as false.
	err := r.db.WithContext(ctx).
		Select("title", "content", "image", "user_id", "category_id", "is_show", "is_active", "created_at", "updated_at").
		Create(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("Category").
		Preload("Comments", preloadComments).
		Where("posts.id = ?", id).
		Take(&post).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

// List returns posts matching filter, newest first. Anonymous first pages of
// the public feed are served from cache.
func (r *postRepository) List(ctx context.Context, filter models.PostFilter, limit, offset int, viewerID uint) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)

	query := func(dest *[]*models.Post) error {
		q := applyPostDetails(r.db.WithContext(ctx), viewerID).
			Preload("Category").
			Preload("Comments", preloadComments)
		q = applyPostFilter(q, filter)
		return q.Order("posts.created_at DESC").
			Order("posts.id DESC").
			Limit(limit).
			Offset(offset).
			Find(dest).Error
	}

	var posts []*models.Post
	var err error
	if cacheable(filter, viewerID) {
		category := ""
		if filter.CategoryID != nil {
			category = strconv.FormatUint(uint64(*filter.CategoryID), 10)
		}
		err = cache.Aside(ctx, cache.FeedKey(limit, offset, category), &posts, cache.FeedTTL, func() error {
			return query(&posts)
		})
	} else {
		err = query(&posts)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func cacheable(filter models.PostFilter, viewerID uint) bool {
	return viewerID == 0 && filter.OnlyVisible && filter.AuthorID == 0 && filter.IsShow == nil && filter.IsActive == nil
}

func applyPostFilter(q *gorm.DB, filter models.PostFilter) *gorm.DB {
	if filter.OnlyVisible {
		q = q.Where("posts.is_show = ? AND posts.is_active = ?", true, true)
	}
	if filter.AuthorID != 0 {
		q = q.Where("posts.user_id = ?", filter.AuthorID)
	}
	if filter.CategoryID != nil {
		q = q.Where("posts.category_id = ?", *filter.CategoryID)
	}
	if filter.IsShow != nil {
		q = q.Where("posts.is_show = ?", *filter.IsShow)
	}
	if filter.IsActive != nil {
		q = q.Where("posts.is_active = ?", *filter.IsActive)
	}
	return q
}

// applyPostDetails adds subqueries to fetch author, counts and liked status in a single query.
func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT username FROM users WHERE users.id = posts.user_id) AS author, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) AS comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count"

	db = db.Model(&models.Post{})
	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func preloadComments(db *gorm.DB) *gorm.DB {
	return db.Select("comments.*, (SELECT username FROM users WHERE users.id = comments.user_id) AS author").
		Order("comments.created_at ASC").
		Order("comments.id ASC")
}

// Update writes the author-editable columns of post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Model(post).Select(postUpdatableColumns).Updates(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) Like(ctx context.Context, userID, postID uint) error {
	// ON CONFLICT keeps concurrent toggles from producing duplicate key errors.
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO likes (user_id, post_id, created_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		userID, postID,
	).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
