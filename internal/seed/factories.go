// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password every generated account logs in with.
const DefaultPassword = "agora-demo-pass"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	// #nosec G404: acceptable for seeding
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) passwordHash() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hash == "" {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		f.hash = string(hashed)
	}
	return f.hash
}

func (f *Factory) dryRun(kind string, args ...any) uint {
	f.nextID++
	middleware.Logger.Debug("[dry-run] "+kind, append([]any{slog.Uint64("id", uint64(f.nextID))}, args...)...)
	return f.nextID
}

// CreateUser constructs and persists a sample user together with its profile.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, gofakeit.Number(100, 999)))
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: first,
		LastName:  last,
		Password:  f.passwordHash(),
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		user.ID = f.dryRun("CreateUser", slog.String("username", user.Username))
		return user, nil
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(user).Error; err != nil {
			return err
		}
		profile := &models.Profile{UserID: user.ID, Bio: gofakeit.Sentence(10)}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateCategory returns the category with name, creating it when missing.
func (f *Factory) CreateCategory(name string) (*models.Category, error) {
	category := &models.Category{Name: name}
	if f.opts.DryRun {
		category.ID = f.dryRun("CreateCategory", slog.String("name", name))
		return category, nil
	}
	if err := f.db.Where(models.Category{Name: name}).FirstOrCreate(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// BuildPost constructs a post without persisting it. Creation times are
// spread over the last MaxDays days.
func (f *Factory) BuildPost(user *models.User, category *models.Category, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:    strings.TrimSuffix(gofakeit.Sentence(5), "."),
		Content:  gofakeit.Paragraph(1, 3, 5, "\n"),
		UserID:   user.ID,
		IsShow:   f.rng.Float32() >= f.opts.hiddenRatio(),
		IsActive: true,
	}
	if category != nil {
		post.CategoryID = &category.ID
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	post.CreatedAt = time.Now().Add(-back)

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample post for the given user.
func (f *Factory) CreatePost(user *models.User, category *models.Category, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, category, overrides...)
	if f.opts.DryRun {
		post.ID = f.dryRun("CreatePost", slog.Uint64("user_id", uint64(user.ID)), slog.String("title", post.Title))
		return post, nil
	}
	if err := f.db.Omit("Category", "User", "Comments").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			p.ID = f.dryRun("CreatePostsBatch")
		}
		return nil
	}
	return f.db.Omit("Category", "User", "Comments").CreateInBatches(&posts, 200).Error
}

// CreateComment constructs and persists a sample comment on post by user.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: gofakeit.Sentence(8),
		UserID:  user.ID,
		PostID:  post.ID,
	}
	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		comment.ID = f.dryRun("CreateComment", slog.Uint64("post_id", uint64(post.ID)))
		return comment, nil
	}
	if err := f.db.Omit("User").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post. Existing likes are kept.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		f.dryRun("CreateLike", slog.Uint64("user_id", uint64(user.ID)), slog.Uint64("post_id", uint64(post.ID)))
		return nil
	}
	like := &models.Like{UserID: user.ID, PostID: post.ID}
	return f.db.Omit("User", "Post").Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error
}

// CreateFollow makes follower follow target. Self-follows are rejected.
func (f *Factory) CreateFollow(follower, target *models.User) error {
	if follower.ID == target.ID {
		return fmt.Errorf("user %q cannot follow themselves", follower.Username)
	}
	if f.opts.DryRun {
		f.dryRun("CreateFollow", slog.String("from", follower.Username), slog.String("to", target.Username))
		return nil
	}

	var from, to models.Profile
	if err := f.db.Where("user_id = ?", follower.ID).First(&from).Error; err != nil {
		return fmt.Errorf("profile of %q: %w", follower.Username, err)
	}
	if err := f.db.Where("user_id = ?", target.ID).First(&to).Error; err != nil {
		return fmt.Errorf("profile of %q: %w", target.Username, err)
	}
	edge := &models.Follow{ProfileID: from.ID, FollowingID: to.ID}
	return f.db.Omit("Profile", "Following").Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error
}
