package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles and the follow graph.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID, viewerID uint) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string, viewerID uint) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	IsFollowing(ctx context.Context, profileID, targetID uint) (bool, error)
	Follow(ctx context.Context, profileID, targetID uint) error
	Unfollow(ctx context.Context, profileID, targetID uint) error
	CountFollowers(ctx context.Context, profileID uint) (int64, error)
	ListFollowers(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error)
	ListFollowing(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// withProfileDetails joins the owning user and derives the follow counters.
// viewerID 0 means anonymous, for whom is_following is always false.
func withProfileDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "profiles.*, users.username, users.first_name, users.last_name, users.email, " +
		"(SELECT COUNT(*) FROM profile_following f WHERE f.following_id = profiles.id) AS followers_count, " +
		"(SELECT COUNT(*) FROM profile_following f WHERE f.profile_id = profiles.id) AS following_count"

	db = db.Model(&models.Profile{}).
		Joins("JOIN users ON users.id = profiles.user_id AND users.deleted_at IS NULL")

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM profile_following f JOIN profiles vp ON vp.id = f.profile_id "+
			"WHERE vp.user_id = ? AND f.following_id = profiles.id) AS is_following", viewerID)
	}
	return db.Select(selectQuery + ", false AS is_following")
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID, viewerID uint) (*models.Profile, error) {
	var profile models.Profile
	err := withProfileDetails(r.db.WithContext(ctx), viewerID).
		Where("profiles.user_id = ?", userID).
		Take(&profile).Error
	if err != nil {
		return nil, notFoundOr(err, "Profile", userID)
	}
	return &profile, nil
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string, viewerID uint) (*models.Profile, error) {
	var profile models.Profile
	err := withProfileDetails(r.db.WithContext(ctx), viewerID).
		Where("users.username = ?", username).
		Take(&profile).Error
	if err != nil {
		return nil, notFoundOr(err, "Profile", username)
	}
	return &profile, nil
}

// Update writes the presentation fields of the profile.
func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	err := r.db.WithContext(ctx).
		Model(profile).
		Select("bio", "profile_image", "background_image", "updated_at").
		Updates(profile).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) IsFollowing(ctx context.Context, profileID, targetID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("profile_id = ? AND following_id = ?", profileID, targetID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *profileRepository) Follow(ctx context.Context, profileID, targetID uint) error {
	// Concurrent duplicate follows collapse into one edge.
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO profile_following (profile_id, following_id, created_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (profile_id, following_id) DO NOTHING`,
		profileID, targetID,
	).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) Unfollow(ctx context.Context, profileID, targetID uint) error {
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND following_id = ?", profileID, targetID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) CountFollowers(ctx context.Context, profileID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", profileID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *profileRepository) ListFollowers(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error) {
	return r.listEdge(ctx, "profile_following.profile_id = profiles.id AND profile_following.following_id = ?", profileID, limit, offset)
}

func (r *profileRepository) ListFollowing(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error) {
	return r.listEdge(ctx, "profile_following.following_id = profiles.id AND profile_following.profile_id = ?", profileID, limit, offset)
}

func (r *profileRepository) listEdge(ctx context.Context, joinCond string, profileID uint, limit, offset int) ([]models.Profile, error) {
	limit, offset = clampPage(limit, offset)
	var profiles []models.Profile
	err := withProfileDetails(r.db.WithContext(ctx), 0).
		Joins("JOIN profile_following ON "+joinCond, profileID).
		Order("profile_following.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}
