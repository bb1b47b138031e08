package seed

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	PostsPerUser    int
	CommentsPerPost int
	LikesPerPost    int
	FollowsPerUser  int
	// HiddenRatio is the share of generated posts with IsShow false.
	HiddenRatio float32
	// MaxDays bounds how far back post creation times are spread.
	MaxDays     int
	ShouldClean bool
	DryRun      bool
	SkipBcrypt  bool
	RandSeed    int64
}

// DefaultOptions is a small, browsable dataset.
func DefaultOptions() Options {
	return Options{
		NumUsers:        20,
		PostsPerUser:    5,
		CommentsPerPost: 3,
		LikesPerPost:    4,
		FollowsPerUser:  5,
		HiddenRatio:     0.1,
		MaxDays:         90,
	}
}

func (o Options) hiddenRatio() float32 {
	if o.HiddenRatio < 0 {
		return 0
	}
	return o.HiddenRatio
}

// DefaultCategories are created by every seed run.
var DefaultCategories = []string{
	"General", "Technology", "Programming", "Music", "Movies", "Books",
	"Travel", "Food", "Sports", "Science",
}

// Summary counts what a seed run created.
type Summary struct {
	Users      int
	Categories int
	Posts      int
	Comments   int
	Likes      int
	Follows    int
}

// Seed populates the database with generated data.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	log := middleware.Logger.With(slog.String("component", "seed"))
	log.InfoContext(ctx, "starting database seeding",
		slog.Int("users", opts.NumUsers), slog.Int("posts_per_user", opts.PostsPerUser))

	if opts.ShouldClean && !opts.DryRun {
		if err := ClearData(ctx, db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	f := NewFactory(db.WithContext(ctx), opts)
	sum := &Summary{}

	categories := make([]*models.Category, 0, len(DefaultCategories))
	for _, name := range DefaultCategories {
		c, err := f.CreateCategory(name)
		if err != nil {
			return nil, fmt.Errorf("create category %q: %w", name, err)
		}
		categories = append(categories, c)
	}
	sum.Categories = len(categories)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			log.WarnContext(ctx, "skipping user", slog.String("error", err.Error()))
			continue
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	posts := make([]*models.Post, 0, len(users)*opts.PostsPerUser)
	for _, u := range users {
		for j := 0; j < opts.PostsPerUser; j++ {
			var category *models.Category
			// leave roughly one in five posts uncategorised
			if f.rng.Intn(5) > 0 {
				category = categories[f.rng.Intn(len(categories))]
			}
			posts = append(posts, f.BuildPost(u, category))
		}
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)

	for _, p := range posts {
		for j := 0; j < opts.CommentsPerPost; j++ {
			if _, err := f.CreateComment(users[f.rng.Intn(len(users))], p); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
		for _, idx := range f.rng.Perm(len(users))[:max(0, min(opts.LikesPerPost, len(users)))] {
			if err := f.CreateLike(users[idx], p); err != nil {
				return nil, fmt.Errorf("create like: %w", err)
			}
			sum.Likes++
		}
	}

	for _, u := range users {
		followed := 0
		for _, idx := range f.rng.Perm(len(users)) {
			if followed >= opts.FollowsPerUser {
				break
			}
			if users[idx].ID == u.ID {
				continue
			}
			if err := f.CreateFollow(u, users[idx]); err != nil {
				return nil, fmt.Errorf("create follow: %w", err)
			}
			followed++
		}
		sum.Follows += followed
	}

	log.InfoContext(ctx, "database seeding completed",
		slog.Int("users", sum.Users), slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments), slog.Int("likes", sum.Likes), slog.Int("follows", sum.Follows))
	return sum, nil
}

// seedTables lists every seeded table, children first.
var seedTables = []string{"likes", "comments", "profile_following", "posts", "profiles", "categories", "users"}

// ClearData removes all seeded rows.
func ClearData(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.WarnContext(ctx, "clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.WithContext(ctx).Exec("TRUNCATE TABLE likes, comments, profile_following, posts, profiles, categories, users RESTART IDENTITY CASCADE").Error
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range seedTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
