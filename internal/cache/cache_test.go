package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type item struct {
	Name string `json:"name"`
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *[]item) func() error {
		return func() error {
			calls++
			*dest = []item{{Name: "go"}}
			return nil
		}
	}

	var first []item
	require.NoError(t, Aside(ctx, CategoriesKey, &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(CategoriesKey))

	var second []item
	require.NoError(t, Aside(ctx, CategoriesKey, &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls, "second read must come from cache")
	assert.Equal(t, []item{{Name: "go"}}, second)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupRedis(t)
	var dest []item
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error { return errors.New("db down") })
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("k"))
}

func TestAside_NoClient(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dest item
	require.NoError(t, Aside(context.Background(), "k", &dest, time.Minute, func() error {
		calls++
		dest.Name = "x"
		return nil
	}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "x", dest.Name)
}

func TestInvalidateFeed(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, FeedKey(20, 0, ""), []item{}, time.Minute))
	require.NoError(t, SetJSON(ctx, FeedKey(20, 20, "3"), []item{}, time.Minute))
	require.NoError(t, SetJSON(ctx, ProfileKey("alice"), item{}, time.Minute))

	InvalidateFeed(ctx)

	assert.False(t, mr.Exists(FeedKey(20, 0, "")))
	assert.False(t, mr.Exists(FeedKey(20, 20, "3")))
	assert.True(t, mr.Exists(ProfileKey("alice")))

	InvalidateProfile(ctx, "alice")
	assert.False(t, mr.Exists(ProfileKey("alice")))
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = ParseOptions("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
}

func TestInitRedis_Unreachable(t *testing.T) {
	assert.Nil(t, InitRedis("127.0.0.1:1"))
	assert.Nil(t, GetClient())
}

func TestInitRedis_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	c := InitRedis(mr.Addr())
	require.NotNil(t, c)
	t.Cleanup(func() { SetClient(nil); _ = c.Close() })
	assert.Same(t, c, GetClient())
}
