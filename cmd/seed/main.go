// Command main runs the database seeder for Agora.
package main

import (
	"context"
	"flag"
	"log"

	"agora/internal/bootstrap"
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Comments per post")
	likes := flag.Int("likes", defaults.LikesPerPost, "Likes per post")
	follows := flag.Int("follows", defaults.FollowsPerUser, "Profiles each user follows")
	hidden := flag.Float64("hidden", float64(defaults.HiddenRatio), "Share of posts created with is_show=false")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing to the database")
	fast := flag.Bool("fast", false, "Skip bcrypt when creating users (accounts cannot log in)")
	scenario := flag.String("scenario", "", "Apply a YAML scenario instead of generated data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	opts := defaults
	opts.NumUsers = *numUsers
	opts.PostsPerUser = *postsPerUser
	opts.CommentsPerPost = *comments
	opts.LikesPerPost = *likes
	opts.FollowsPerUser = *follows
	opts.HiddenRatio = float32(*hidden)
	opts.ShouldClean = *shouldClean
	opts.DryRun = *dryRun
	opts.SkipBcrypt = *fast

	var sum *seed.Summary
	if *scenario != "" {
		sc, err := seed.LoadScenarioFile(*scenario)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
		if opts.ShouldClean {
			if err := seed.ClearData(ctx, db); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		sum, err = sc.Apply(ctx, db, opts)
		if err != nil {
			log.Fatalf("Scenario seeding failed: %v", err)
		}
	} else {
		sum, err = seed.Seed(ctx, db, opts)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	// cached feeds and profiles predate the new rows
	cache.InvalidateFeed(ctx)
	cache.InvalidateCategories(ctx)

	log.Printf("seeded users=%d categories=%d posts=%d comments=%d likes=%d follows=%d",
		sum.Users, sum.Categories, sum.Posts, sum.Comments, sum.Likes, sum.Follows)
	if !*fast && *scenario == "" {
		log.Printf("generated users log in with the password %q", seed.DefaultPassword)
	}
}
