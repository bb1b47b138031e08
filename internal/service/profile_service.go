package service

import (
	"context"
	"strings"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxBioLen  = 500
	maxNameLen = 150
)

// Follow toggle results.
const (
	FollowStatusFollowed   = "followed"
	FollowStatusUnfollowed = "unfollowed"
)

type ProfileService struct {
	profileRepo repository.ProfileRepository
	userRepo    repository.UserRepository
	posts       *PostService
	images      *ImageService
	events      EventPublisher
}

// UpdateProfileInput carries a partial update of the caller's profile and
// account; nil fields are left unchanged and empty images are cleared.
type UpdateProfileInput struct {
	UserID          uint
	Bio             *string
	ProfileImage    *string
	BackgroundImage *string
	FirstName       *string
	LastName        *string
	Email           *string
}

// ProfileView is a public profile together with its visible posts.
type ProfileView struct {
	Profile *models.Profile `json:"profile"`
	Posts   []*models.Post  `json:"posts"`
}

// FollowResult reports the state of a follow after a toggle.
type FollowResult struct {
	Status         string `json:"status"`
	FollowersCount int64  `json:"followers_count"`
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	userRepo repository.UserRepository,
	posts *PostService,
	images *ImageService,
	events EventPublisher,
) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		userRepo:    userRepo,
		posts:       posts,
		images:      images,
		events:      events,
	}
}

// GetMyProfile returns the caller's own profile, email included.
func (s *ProfileService) GetMyProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.profileRepo.GetByUserID(ctx, userID, userID)
}

// GetProfile returns username's profile as seen by viewerID along with their
// visible posts. Anonymous profile lookups are served from cache.
func (s *ProfileService) GetProfile(ctx context.Context, username string, viewerID uint, limit, offset int) (*ProfileView, error) {
	var profile *models.Profile
	var err error
	if viewerID == 0 {
		var cached models.Profile
		err = cache.Aside(ctx, cache.ProfileKey(username), &cached, cache.ProfileTTL, func() error {
			p, fetchErr := s.profileRepo.GetByUsername(ctx, username, 0)
			if fetchErr != nil {
				return fetchErr
			}
			p.Email = ""
			cached = *p
			return nil
		})
		profile = &cached
	} else {
		profile, err = s.profileRepo.GetByUsername(ctx, username, viewerID)
	}
	if err != nil {
		return nil, err
	}
	if profile.UserID != viewerID {
		profile.Email = ""
	}

	posts, err := s.posts.ListVisibleByAuthor(ctx, profile.UserID, limit, offset, viewerID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{Profile: profile, Posts: posts}, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (_ *models.Profile, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "ProfileService", "UpdateProfile")
	defer end(&err)

	profile, err := s.profileRepo.GetByUserID(ctx, in.UserID, in.UserID)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Bio != nil {
		if err := validation.ValidateLength("Bio", *in.Bio, false, maxBioLen); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.Bio = *in.Bio
	}
	if in.ProfileImage != nil {
		if profile.ProfileImage, err = s.images.NormalizeOptional(ctx, in.ProfileImage); err != nil {
			return nil, err
		}
	}
	if in.BackgroundImage != nil {
		if profile.BackgroundImage, err = s.images.NormalizeOptional(ctx, in.BackgroundImage); err != nil {
			return nil, err
		}
	}

	accountChanged := false
	if in.FirstName != nil {
		if err := validation.ValidateLength("first_name", *in.FirstName, false, maxNameLen); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.FirstName = strings.TrimSpace(*in.FirstName)
		accountChanged = true
	}
	if in.LastName != nil {
		if err := validation.ValidateLength("last_name", *in.LastName, false, maxNameLen); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.LastName = strings.TrimSpace(*in.LastName)
		accountChanged = true
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Email = email
		accountChanged = true
	}

	if accountChanged {
		if err := s.userRepo.UpdateAccount(ctx, user); err != nil {
			return nil, err
		}
	}
	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}
	cache.InvalidateProfile(ctx, user.Username)

	return s.profileRepo.GetByUserID(ctx, in.UserID, in.UserID)
}

// ToggleFollow makes userID follow username, or unfollow when already following.
func (s *ProfileService) ToggleFollow(ctx context.Context, userID uint, username string) (_ *FollowResult, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "ProfileService", "ToggleFollow",
		attribute.String("profile.username", username))
	defer end(&err)

	me, err := s.profileRepo.GetByUserID(ctx, userID, userID)
	if err != nil {
		return nil, err
	}
	target, err := s.profileRepo.GetByUsername(ctx, username, userID)
	if err != nil {
		return nil, err
	}
	if target.ID == me.ID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	following, err := s.profileRepo.IsFollowing(ctx, me.ID, target.ID)
	if err != nil {
		return nil, err
	}

	status := FollowStatusFollowed
	if following {
		status = FollowStatusUnfollowed
		err = s.profileRepo.Unfollow(ctx, me.ID, target.ID)
	} else {
		err = s.profileRepo.Follow(ctx, me.ID, target.ID)
	}
	if err != nil {
		return nil, err
	}
	observability.FollowToggles.WithLabelValues(status).Inc()
	cache.InvalidateProfile(ctx, target.Username)
	cache.InvalidateProfile(ctx, me.Username)

	count, err := s.profileRepo.CountFollowers(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	if status == FollowStatusFollowed {
		publish(ctx, s.events, notifications.NewEvent(notifications.EventProfileFollowed, target.UserID, notifications.EventPayload{
			ActorID: userID,
			Actor:   me.Username,
		}))
	}
	return &FollowResult{Status: status, FollowersCount: count}, nil
}

// ListFollowers returns the profiles following username.
func (s *ProfileService) ListFollowers(ctx context.Context, username string, limit, offset int) ([]models.Profile, error) {
	target, err := s.profileRepo.GetByUsername(ctx, username, 0)
	if err != nil {
		return nil, err
	}
	return redactEmails(s.profileRepo.ListFollowers(ctx, target.ID, limit, offset))
}

// ListFollowing returns the profiles username follows.
func (s *ProfileService) ListFollowing(ctx context.Context, username string, limit, offset int) ([]models.Profile, error) {
	target, err := s.profileRepo.GetByUsername(ctx, username, 0)
	if err != nil {
		return nil, err
	}
	return redactEmails(s.profileRepo.ListFollowing(ctx, target.ID, limit, offset))
}

func redactEmails(profiles []models.Profile, err error) ([]models.Profile, error) {
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		return []models.Profile{}, nil
	}
	for i := range profiles {
		profiles[i].Email = ""
	}
	return profiles, nil
}
