package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	CategoriesKey    = "categories:all"
	ProfileKeyPrefix = "profile:%s"
	FeedKeyPrefix    = "feed:visible:%d:%d:%s"
	feedKeyPattern   = "feed:visible:*"
)

const (
	CategoriesTTL = 30 * time.Minute
	ProfileTTL    = 5 * time.Minute
	FeedTTL       = time.Minute
)

// ProfileKey caches the anonymous view of a profile by username.
func ProfileKey(username string) string {
	return fmt.Sprintf(ProfileKeyPrefix, username)
}

// FeedKey caches one anonymous page of the public feed. category is "" for all.
func FeedKey(limit, offset int, category string) string {
	return fmt.Sprintf(FeedKeyPrefix, limit, offset, category)
}

// Invalidate deletes the given keys, ignoring errors.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateCategories drops the cached category list.
func InvalidateCategories(ctx context.Context) {
	Invalidate(ctx, CategoriesKey)
}

// InvalidateProfile drops the cached anonymous view of username's profile.
func InvalidateProfile(ctx context.Context, username string) {
	Invalidate(ctx, ProfileKey(username))
}

// InvalidateFeed drops every cached public feed page.
func InvalidateFeed(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, feedKeyPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	Invalidate(ctx, keys...)
}
